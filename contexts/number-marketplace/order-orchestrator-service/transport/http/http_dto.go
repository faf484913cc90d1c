package http

type ErrorResponse struct {
	Error string `json:"error"`
}

type PurchaseRequest struct {
	UserID         string `json:"userId"`
	ProviderID     string `json:"providerId"`
	CountryCode    string `json:"countryCode"`
	ServiceCode    string `json:"serviceCode"`
	PriceCents     int64  `json:"priceCents"`
	ServiceName    string `json:"serviceName,omitempty"`
	CountryName    string `json:"countryName,omitempty"`
	OperatorID     string `json:"operatorId,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type PurchaseResponse struct {
	OK           bool   `json:"ok"`
	ActivationID string `json:"orderId,omitempty"`
	Phone        string `json:"phone,omitempty"`
	UpstreamID   string `json:"upstreamId,omitempty"`
	ErrCode      string `json:"errCode,omitempty"`
	Err          string `json:"err,omitempty"`
}

type MessageDTO struct {
	Code       string `json:"code,omitempty"`
	Content    string `json:"content"`
	ReceivedAt string `json:"receivedAt"`
}

type OrderStatusResponse struct {
	State            string       `json:"state"`
	Phone            string       `json:"phone,omitempty"`
	SmsCount         int          `json:"smsCount"`
	Messages         []MessageDTO `json:"messages"`
	CreatedAt        string       `json:"createdAt"`
	ExpiresAt        string       `json:"expiresAt,omitempty"`
	CanCancel        bool         `json:"canCancel"`
	CanRequestResend bool         `json:"canRequestResend"`
}

type OKResponse struct {
	OK  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}
