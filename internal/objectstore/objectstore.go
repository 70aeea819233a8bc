// Package objectstore provides existence checks and presigned URL issuance
// for the media objects referenced by the check-in workflow (reference
// photos, submission videos, identity snapshots).
//
// Keys follow the scheme "{entityType}-{uuid}", with a numeric index suffix
// for multi-snapshot keys. This scheme is the only addressing contract
// between the service and storage and must remain stable.
package objectstore

import (
	"context"
	"fmt"
	"time"

	id "esupervision/pkg/domain"
)

// Gateway is the capability surface the domain needs from object storage.
type Gateway interface {
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ReferencePhotoKey addresses the offender's reference photo.
func ReferencePhotoKey(offenderID id.OffenderID) string {
	return fmt.Sprintf("offender-%s", offenderID)
}

// VideoKey addresses the submitted check-in video.
func VideoKey(checkinID id.CheckinID) string {
	return fmt.Sprintf("checkin-%s", checkinID)
}

// SnapshotKey addresses the nth identity snapshot captured during a check-in.
func SnapshotKey(checkinID id.CheckinID, index int) string {
	return fmt.Sprintf("checkin-%s-%d", checkinID, index)
}
