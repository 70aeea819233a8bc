package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "esupervision/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseOffenderID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCheckinID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseOffenderID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseOffenderID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, OffenderID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	offenderID := OffenderID(uuid.New())
	checkinID := CheckinID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ OffenderID = checkinID   // compile error
	// var _ CheckinID = offenderID   // compile error

	// Verify they're distinct at runtime too
	assert.NotEqual(t, uuid.UUID(offenderID), uuid.UUID(checkinID))
}

func TestCaseReference_Valid(t *testing.T) {
	assert.True(t, CaseReference("X123456").Valid())
	assert.False(t, CaseReference("").Valid())
	assert.False(t, CaseReference("   ").Valid())
}
