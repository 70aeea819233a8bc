package casedirectory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/circuit"
	"esupervision/pkg/platform/retry"
	"esupervision/pkg/platform/sentinel"
)

// HTTPClient calls the directory's REST API. Every request runs through the
// injected breaker and the retry policy; 4xx responses are permanent (no
// retry), 5xx and transport errors are retried then surface as
// sentinel.ErrUnavailable.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	policy  retry.Policy
}

func NewHTTP(baseURL string, httpClient *http.Client, breaker *circuit.Breaker) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    httpClient,
		breaker: breaker,
		policy:  retry.DefaultPolicy(),
	}
}

type contactDetailsPayload struct {
	CaseReference     string `json:"caseReference"`
	Name              string `json:"name"`
	PhoneNumber       string `json:"phoneNumber"`
	Email             string `json:"email"`
	DateOfBirth       string `json:"dateOfBirth"`
	PractitionerEmail string `json:"practitionerEmail"`
}

func (p contactDetailsPayload) toModel() ContactDetails {
	return ContactDetails{
		CaseReference:     id.CaseReference(p.CaseReference),
		Name:              p.Name,
		PhoneNumber:       p.PhoneNumber,
		Email:             p.Email,
		DateOfBirth:       p.DateOfBirth,
		PractitionerEmail: p.PractitionerEmail,
	}
}

func (c *HTTPClient) Get(ctx context.Context, ref id.CaseReference) (ContactDetails, error) {
	var payload contactDetailsPayload
	err := c.call(ctx, http.MethodGet, "/cases/"+url.PathEscape(ref.String()), nil, &payload)
	if err != nil {
		return ContactDetails{}, err
	}
	return payload.toModel(), nil
}

func (c *HTTPClient) Validate(ctx context.Context, ref id.CaseReference, details PersonalDetails) (bool, error) {
	body := map[string]string{
		"name":        details.Name,
		"dateOfBirth": details.DateOfBirth,
	}
	var result struct {
		Valid bool `json:"valid"`
	}
	err := c.call(ctx, http.MethodPost, "/cases/"+url.PathEscape(ref.String())+"/validate", body, &result)
	if err != nil {
		return false, err
	}
	return result.Valid, nil
}

func (c *HTTPClient) GetBatch(ctx context.Context, refs []id.CaseReference) (map[id.CaseReference]ContactDetails, error) {
	if len(refs) > BatchLimit {
		return nil, fmt.Errorf("batch of %d exceeds directory limit of %d", len(refs), BatchLimit)
	}
	strs := make([]string, len(refs))
	for i, ref := range refs {
		strs[i] = ref.String()
	}
	var payload struct {
		Cases []contactDetailsPayload `json:"cases"`
	}
	err := c.call(ctx, http.MethodPost, "/cases/batch", map[string]any{"caseReferences": strs}, &payload)
	if err != nil {
		return nil, err
	}
	out := make(map[id.CaseReference]ContactDetails, len(payload.Cases))
	for _, p := range payload.Cases {
		out[id.CaseReference(p.CaseReference)] = p.toModel()
	}
	return out, nil
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body, out any) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.policy, func() error {
			return c.doOnce(ctx, method, path, body, out)
		})
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

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("case directory %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent(sentinel.ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("case directory %s %s: status %d: %w", method, path, resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("case directory %s %s: status %d", method, path, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
