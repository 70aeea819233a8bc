// Package casedirectory wraps the external case-management directory that
// owns contact details for people on probation. All calls go through retry
// with backoff and a circuit breaker; when the breaker is open, callers on
// worker paths treat the failure as "no data" and skip the affected items.
package casedirectory

import (
	"context"

	id "esupervision/pkg/domain"
)

// BatchLimit is the directory's hard cap on refs per batched lookup.
const BatchLimit = 500

// ContactDetails are the deliverable coordinates for a case reference. Any
// field may be blank when the directory holds no value. PractitionerEmail is
// the responsible officer's address on the case record.
type ContactDetails struct {
	CaseReference     id.CaseReference
	Name              string
	PhoneNumber       string
	Email             string
	DateOfBirth       string
	PractitionerEmail string
}

// PersonalDetails are the facts an offender supplies to prove identity at the
// start of a check-in; the directory validates them against its records.
type PersonalDetails struct {
	Name        string
	DateOfBirth string
}

// Client is the directory capability surface.
type Client interface {
	// Get returns the contact details for one reference.
	// Returns sentinel.ErrNotFound when the reference is unknown.
	Get(ctx context.Context, ref id.CaseReference) (ContactDetails, error)
	// Validate checks supplied personal details against the directory.
	// A mismatch is a false return, not an error.
	Validate(ctx context.Context, ref id.CaseReference, details PersonalDetails) (bool, error)
	// GetBatch resolves up to BatchLimit references in one call. Unknown
	// references are simply absent from the result, never an error.
	GetBatch(ctx context.Context, refs []id.CaseReference) (map[id.CaseReference]ContactDetails, error)
}

// Chunk splits refs into BatchLimit-sized groups for batched lookups.
func Chunk(refs []id.CaseReference) [][]id.CaseReference {
	if len(refs) == 0 {
		return nil
	}
	var chunks [][]id.CaseReference
	for start := 0; start < len(refs); start += BatchLimit {
		end := min(start+BatchLimit, len(refs))
		chunks = append(chunks, refs[start:end])
	}
	return chunks
}
