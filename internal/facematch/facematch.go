// Package facematch bridges the check-in workflow to the facial comparison
// provider. Preconditions (reference photo and snapshots present in storage)
// are checked locally before any external call; provider failures after
// retries degrade to an ERROR result rather than an error return, since the
// comparison outcome is recorded on the check-in either way.
package facematch

import (
	"context"

	"esupervision/internal/objectstore"
	id "esupervision/pkg/domain"
	dErrors "esupervision/pkg/domain-errors"
)

// Result is the outcome of one facial verification run.
type Result string

const (
	ResultMatch          Result = "MATCH"
	ResultNoMatch        Result = "NO_MATCH"
	ResultNoFaceDetected Result = "NO_FACE_DETECTED"
	ResultError          Result = "ERROR"
)

// Comparer compares one reference image against one snapshot, both addressed
// by storage key.
type Comparer interface {
	Compare(ctx context.Context, referenceKey, snapshotKey string) (Result, error)
}

// Verifier runs the full verification for a check-in: precondition checks,
// one comparison per snapshot, aggregation into a single result.
type Verifier struct {
	comparer Comparer
	storage  objectstore.Gateway
}

func NewVerifier(comparer Comparer, storage objectstore.Gateway) *Verifier {
	return &Verifier{comparer: comparer, storage: storage}
}

// Verify compares the offender's reference photo against the requested
// snapshot indices. Missing objects are a validation failure; the caller
// should not have asked before the uploads completed.
func (v *Verifier) Verify(ctx context.Context, offenderID id.OffenderID, checkinID id.CheckinID, snapshots []int) (Result, error) {
	if len(snapshots) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "no snapshot indices supplied")
	}

	referenceKey := objectstore.ReferencePhotoKey(offenderID)
	if err := v.requireObject(ctx, referenceKey, "reference photo"); err != nil {
		return "", err
	}
	snapshotKeys := make([]string, len(snapshots))
	for i, index := range snapshots {
		snapshotKeys[i] = objectstore.SnapshotKey(checkinID, index)
		if err := v.requireObject(ctx, snapshotKeys[i], "snapshot"); err != nil {
			return "", err
		}
	}

	// Any matching snapshot verifies the person. NO_FACE_DETECTED only
	// stands when every snapshot lacked a face; a single provider error
	// taints the whole run as ERROR so a human reviews it.
	aggregate := ResultNoFaceDetected
	for _, key := range snapshotKeys {
		result, err := v.comparer.Compare(ctx, referenceKey, key)
		if err != nil {
			return ResultError, nil
		}
		switch result {
		case ResultMatch:
			return ResultMatch, nil
		case ResultNoMatch:
			aggregate = ResultNoMatch
		case ResultError:
			return ResultError, nil
		}
	}
	return aggregate, nil
}

func (v *Verifier) requireObject(ctx context.Context, key, kind string) error {
	exists, err := v.storage.Exists(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstream, "object storage check failed")
	}
	if !exists {
		return dErrors.Newf(dErrors.CodeValidation, "%s %s not found in storage", kind, key)
	}
	return nil
}
