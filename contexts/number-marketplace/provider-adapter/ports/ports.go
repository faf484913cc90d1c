package ports

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoNumbers  = errors.New("provider has no numbers available for this service/country")
	ErrNoBalance  = errors.New("provider account balance is insufficient")
	ErrBadService = errors.New("provider does not recognize this service code")
	ErrTransport  = errors.New("provider transport error")
)

type Country struct {
	ID   string
	Name string
}

type Service struct {
	ID      string
	Name    string
	IconURL string
}

type AcquireOptions struct {
	MaxPriceCents int64
	OperatorID    string
}

type Acquisition struct {
	UpstreamID string
	Phone      string
	ExpiresAt  time.Time
	PriceCents int64
}

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusReceived  MessageStatus = "received"
	MessageStatusCancelled MessageStatus = "cancelled"
	MessageStatusExpired   MessageStatus = "expired"
	MessageStatusError     MessageStatus = "error"
)

type Message struct {
	ID         string
	Sender     string
	Content    string
	Code       string
	ReceivedAt time.Time
}

type StatusResult struct {
	Status   MessageStatus
	Messages []Message
}

// Adapter is the capability set every provider translator must expose
// (spec.md §4.4). Adapters are pure translators; they hold no durable state.
type Adapter interface {
	ID() string
	ListCountries(ctx context.Context) ([]Country, error)
	ListServices(ctx context.Context, country string) ([]Service, error)
	Acquire(ctx context.Context, country, service string, opts AcquireOptions) (Acquisition, error)
	Status(ctx context.Context, upstreamID string) (StatusResult, error)
	Cancel(ctx context.Context, upstreamID string) error
}

// BalanceCapable is the optional balance() capability of spec.md §4.4.
type BalanceCapable interface {
	Balance(ctx context.Context) (float64, error)
}

// BatchStatusCapable is the optional statusBatch capability that enables
// batched polling in the Unified Poll Manager (spec.md §4.5).
type BatchStatusCapable interface {
	StatusBatch(ctx context.Context, upstreamIDs []string) (map[string]StatusResult, error)
}

// ResendCapable is the optional "request another SMS" capability behind
// the order orchestrator's resendSms operation. An adapter that does not
// implement it cannot service a resend request.
type ResendCapable interface {
	RequestResend(ctx context.Context, upstreamID string) error
}
