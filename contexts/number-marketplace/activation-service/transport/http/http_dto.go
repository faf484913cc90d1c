package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type ActivationDTO struct {
	ActivationID string    `json:"activationId"`
	UserID       string    `json:"userId"`
	ProviderID   string    `json:"providerId"`
	PriceCents   int64     `json:"priceCents"`
	State        string    `json:"state"`
	UpstreamID   string    `json:"upstreamId,omitempty"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type HistoryEntryDTO struct {
	FromState string    `json:"fromState"`
	ToState   string    `json:"toState"`
	Reason    string    `json:"reason"`
	TraceID   string    `json:"traceId"`
	CreatedAt time.Time `json:"createdAt"`
}

type HistoryResponse struct {
	ActivationID string            `json:"activationId"`
	Entries      []HistoryEntryDTO `json:"entries"`
}
