package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"esupervision/internal/notification/models"
	"esupervision/pkg/platform/retry"
	"esupervision/pkg/platform/sentinel"
)

// HTTPClient talks to the delivery provider's REST API. A local token
// limiter gates every send so the provider's requests-per-minute ceiling is
// respected; the wait blocks the sending goroutine only, which is fine
// because the orchestrator sends sequentially per batch.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
}

func NewHTTP(baseURL, apiKey string, httpClient *http.Client, ratePerMinute int) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	perSecond := rate.Limit(float64(ratePerMinute) / 60.0)
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
		limiter: rate.NewLimiter(perSecond, 1),
		policy:  retry.DefaultPolicy(),
	}
}

func (c *HTTPClient) Send(ctx context.Context, req SendRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	path := "/v2/notifications/email"
	body := map[string]any{
		"template_id":     req.TemplateID,
		"reference":       req.Reference,
		"personalisation": req.Personalisation,
	}
	switch req.Channel.Kind() {
	case models.KindSMS:
		path = "/v2/notifications/sms"
		body["phone_number"] = req.Channel.Recipient()
	case models.KindEmail:
		body["email_address"] = req.Channel.Recipient()
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *HTTPClient) Statuses(ctx context.Context, reference, cursor string) (StatusPage, error) {
	query := url.Values{"reference": {reference}}
	if cursor != "" {
		query.Set("older_than", cursor)
	}

	var resp struct {
		Notifications []struct {
			ID        string `json:"id"`
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"notifications"`
		Links struct {
			Next string `json:"next"`
		} `json:"links"`
	}
	if err := c.call(ctx, http.MethodGet, "/v2/notifications?"+query.Encode(), nil, &resp); err != nil {
		return StatusPage{}, err
	}

	page := StatusPage{}
	for _, item := range resp.Notifications {
		page.Items = append(page.Items, DeliveryStatus{
			ProviderID: item.ID,
			Reference:  item.Reference,
			Status:     item.Status,
		})
	}
	if next := resp.Links.Next; next != "" {
		page.HasNextPage = true
		page.NextCursor = cursorFrom(next)
	}
	return page, nil
}

// cursorFrom pulls the older_than id out of the provider's next-page link.
func cursorFrom(next string) string {
	parsed, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("older_than")
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body, out any) error {
	return retry.Do(ctx, c.policy, func() error {
		return c.doOnce(ctx, method, path, body, out)
	})
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("encode request: %w", err))
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent(sentinel.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("notify %s %s: status %d: %w", method, path, resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("notify %s %s: status %d", method, path, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
