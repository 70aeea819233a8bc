// Package gateway wraps the third-party delivery provider: one send per
// call, status lookup paginated by provider-side cursor.
package gateway

import (
	"context"

	"esupervision/internal/notification/models"
)

// SendRequest is one delivery instruction for the provider.
type SendRequest struct {
	Channel         models.Channel
	TemplateID      string
	Personalisation map[string]string
	// Reference tags the provider-side notification for later status lookup.
	Reference string
}

// DeliveryStatus is one item of a provider status page.
type DeliveryStatus struct {
	ProviderID string
	Reference  string
	Status     string
}

// StatusPage is one page of the provider's status listing. Callers keep
// paging while HasNextPage is set and a cursor comes back.
type StatusPage struct {
	Items       []DeliveryStatus
	HasNextPage bool
	NextCursor  string
}

// Client is the delivery provider surface the orchestrator and the
// reconciliation workers depend on.
type Client interface {
	// Send delivers one notification and returns the provider's id for it.
	Send(ctx context.Context, req SendRequest) (string, error)
	// Statuses lists delivery statuses for a reference, one page at a time.
	// An empty cursor requests the first page.
	Statuses(ctx context.Context, reference, cursor string) (StatusPage, error)
}
