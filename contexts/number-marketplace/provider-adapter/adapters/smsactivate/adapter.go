package smsactivate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"solomon/contexts/number-marketplace/provider-adapter/ports"
)

const providerID = "smsactivate"

// Adapter translates the sms-activate.org wire protocol into the provider
// capability set of spec.md §4.4. It holds no durable state of its own.
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
	var raw map[string]struct {
		EngName string `json:"eng"`
	}
	if err := a.call(ctx, "getCountries", nil, &raw); err != nil {
		return nil, err
	}
	countries := make([]ports.Country, 0, len(raw))
	for id, entry := range raw {
		countries = append(countries, ports.Country{ID: id, Name: entry.EngName})
	}
	return countries, nil
}

func (a *Adapter) ListServices(ctx context.Context, country string) ([]ports.Service, error) {
	var raw map[string]string
	params := url.Values{}
	if country != "" {
		params.Set("country", country)
	}
	if err := a.call(ctx, "getServicesList", params, &raw); err != nil {
		return nil, err
	}
	services := make([]ports.Service, 0, len(raw))
	for id, name := range raw {
		services = append(services, ports.Service{ID: id, Name: name})
	}
	return services, nil
}

func (a *Adapter) Acquire(ctx context.Context, country, service string, opts ports.AcquireOptions) (ports.Acquisition, error) {
	params := url.Values{}
	params.Set("service", service)
	params.Set("country", country)
	if opts.OperatorID != "" {
		params.Set("operator", opts.OperatorID)
	}
	if opts.MaxPriceCents > 0 {
		params.Set("maxPrice", strconv.FormatFloat(float64(opts.MaxPriceCents)/100, 'f', 2, 64))
	}

	var resp struct {
		ActivationID string `json:"activationId"`
		Phone        string `json:"phoneNumber"`
		ActivationCost string `json:"activationCost"`
	}
	if err := a.call(ctx, "getNumberV2", params, &resp); err != nil {
		return ports.Acquisition{}, err
	}
	if resp.ActivationID == "" || resp.Phone == "" {
		return ports.Acquisition{}, ports.ErrNoNumbers
	}

	priceCents := parsePriceCents(resp.ActivationCost)
	return ports.Acquisition{
		UpstreamID: resp.ActivationID,
		Phone:      resp.Phone,
		ExpiresAt:  time.Now().UTC().Add(10 * time.Minute),
		PriceCents: priceCents,
	}, nil
}

func (a *Adapter) Status(ctx context.Context, upstreamID string) (ports.StatusResult, error) {
	params := url.Values{}
	params.Set("id", upstreamID)

	var resp struct {
		Status string `json:"status"`
		Code   string `json:"code"`
		Text   string `json:"text"`
	}
	if err := a.call(ctx, "getStatus", params, &resp); err != nil {
		return ports.StatusResult{}, err
	}
	return translateStatus(resp.Status, resp.Code, resp.Text), nil
}

func (a *Adapter) StatusBatch(ctx context.Context, upstreamIDs []string) (map[string]ports.StatusResult, error) {
	params := url.Values{}
	for _, id := range upstreamIDs {
		params.Add("ids[]", id)
	}

	var resp map[string]struct {
		Status string `json:"status"`
		Code   string `json:"code"`
		Text   string `json:"text"`
	}
	if err := a.call(ctx, "getStatusV2", params, &resp); err != nil {
		return nil, err
	}
	results := make(map[string]ports.StatusResult, len(resp))
	for id, entry := range resp {
		results[id] = translateStatus(entry.Status, entry.Code, entry.Text)
	}
	return results, nil
}

func (a *Adapter) Cancel(ctx context.Context, upstreamID string) error {
	params := url.Values{}
	params.Set("id", upstreamID)
	params.Set("status", "8")
	var resp struct {
		Status string `json:"status"`
	}
	return a.call(ctx, "setStatus", params, &resp)
}

func (a *Adapter) RequestResend(ctx context.Context, upstreamID string) error {
	params := url.Values{}
	params.Set("id", upstreamID)
	params.Set("status", "3")
	var resp struct {
		Status string `json:"status"`
	}
	return a.call(ctx, "setStatus", params, &resp)
}

func (a *Adapter) Balance(ctx context.Context) (float64, error) {
	var resp struct {
		Balance string `json:"balance"`
	}
	if err := a.call(ctx, "getBalance", nil, &resp); err != nil {
		return 0, err
	}
	balance, err := strconv.ParseFloat(resp.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse balance %q", ports.ErrTransport, resp.Balance)
	}
	return balance, nil
}

func (a *Adapter) call(ctx context.Context, action string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", a.apiKey)
	params.Set("action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrTransport, err)
	}
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

func translateStatus(status, code, text string) ports.StatusResult {
	switch status {
	case "STATUS_OK":
		return ports.StatusResult{
			Status: ports.MessageStatusReceived,
			Messages: []ports.Message{{
				ID:      code,
				Code:    code,
				Content: text,
			}},
		}
	case "STATUS_CANCEL":
		return ports.StatusResult{Status: ports.MessageStatusCancelled}
	case "STATUS_WAIT_CODE", "STATUS_WAIT_RETRY":
		return ports.StatusResult{Status: ports.MessageStatusPending}
	default:
		return ports.StatusResult{Status: ports.MessageStatusError}
	}
}

func parsePriceCents(raw string) int64 {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int64(value * 100)
}

var (
	_ ports.Adapter            = (*Adapter)(nil)
	_ ports.BalanceCapable     = (*Adapter)(nil)
	_ ports.BatchStatusCapable = (*Adapter)(nil)
	_ ports.ResendCapable      = (*Adapter)(nil)
)
