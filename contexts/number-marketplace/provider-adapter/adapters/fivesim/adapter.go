package fivesim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"solomon/contexts/number-marketplace/provider-adapter/ports"
)

const providerID = "fivesim"

// Adapter translates a 5sim-style wire protocol. Unlike smsactivate it
// exposes no batch status or resend capability, so the poll manager and
// the orchestrator fall back to per-item polling and NOT_SUPPORTED
// respectively for this provider.
type Adapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Adapter{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

func (a *Adapter) ID() string { return providerID }

func (a *Adapter) ListCountries(ctx context.Context) ([]ports.Country, error) {
	var raw []struct {
		ID   string `json:"iso"`
		Name string `json:"text_en"`
	}
	if err := a.get(ctx, "/guest/countries", &raw); err != nil {
		return nil, err
	}
	countries := make([]ports.Country, 0, len(raw))
	for _, entry := range raw {
		countries = append(countries, ports.Country{ID: entry.ID, Name: entry.Name})
	}
	return countries, nil
}

func (a *Adapter) ListServices(ctx context.Context, country string) ([]ports.Service, error) {
	var raw []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := a.get(ctx, "/guest/products/"+country, &raw); err != nil {
		return nil, err
	}
	services := make([]ports.Service, 0, len(raw))
	for _, entry := range raw {
		services = append(services, ports.Service{ID: entry.ID, Name: entry.Name})
	}
	return services, nil
}

func (a *Adapter) Acquire(ctx context.Context, country, service string, opts ports.AcquireOptions) (ports.Acquisition, error) {
	var resp struct {
		ID      int64  `json:"id"`
		Phone   string `json:"phone"`
		Price   int64  `json:"price"`
		ErrCode string `json:"error"`
	}
	if err := a.post(ctx, fmt.Sprintf("/user/buy/activation/%s/%s", country, service), &resp); err != nil {
		return ports.Acquisition{}, err
	}
	switch resp.ErrCode {
	case "no_free_phones":
		return ports.Acquisition{}, ports.ErrNoNumbers
	case "not_enough_user_balance":
		return ports.Acquisition{}, ports.ErrNoBalance
	case "bad_service":
		return ports.Acquisition{}, ports.ErrBadService
	}
	return ports.Acquisition{
		UpstreamID: fmt.Sprintf("%d", resp.ID),
		Phone:      resp.Phone,
		ExpiresAt:  time.Now().UTC().Add(10 * time.Minute),
		PriceCents: resp.Price * 100,
	}, nil
}

func (a *Adapter) Status(ctx context.Context, upstreamID string) (ports.StatusResult, error) {
	var resp struct {
		Status string `json:"status"`
		SMS    []struct {
			Sender string `json:"sender"`
			Text   string `json:"text"`
			Code   string `json:"code"`
			Date   string `json:"date"`
		} `json:"sms"`
	}
	if err := a.get(ctx, "/user/check/"+upstreamID, &resp); err != nil {
		return ports.StatusResult{}, err
	}

	messages := make([]ports.Message, 0, len(resp.SMS))
	for _, sms := range resp.SMS {
		receivedAt, _ := time.Parse(time.RFC3339, sms.Date)
		messages = append(messages, ports.Message{
			Sender:     sms.Sender,
			Content:    sms.Text,
			Code:       sms.Code,
			ReceivedAt: receivedAt,
		})
	}
	return ports.StatusResult{Status: translateStatus(resp.Status), Messages: messages}, nil
}

func (a *Adapter) Cancel(ctx context.Context, upstreamID string) error {
	var resp struct {
		Status string `json:"status"`
	}
	return a.post(ctx, "/user/cancel/"+upstreamID, &resp)
}

func (a *Adapter) get(ctx context.Context, path string, out any) error {
	return a.do(ctx, http.MethodGet, path, out)
}

func (a *Adapter) post(ctx context.Context, path string, out any) error {
	return a.do(ctx, http.MethodPost, path, out)
}

func (a *Adapter) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ports.ErrTransport, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ports.ErrTransport, err)
	}
	return nil
}

func translateStatus(status string) ports.MessageStatus {
	switch status {
	case "RECEIVED":
		return ports.MessageStatusReceived
	case "CANCELED":
		return ports.MessageStatusCancelled
	case "TIMEOUT", "EXPIRED":
		return ports.MessageStatusExpired
	case "PENDING":
		return ports.MessageStatusPending
	default:
		return ports.MessageStatusError
	}
}

var _ ports.Adapter = (*Adapter)(nil)
