//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esupervision/internal/offender/models"
	"esupervision/internal/offender/store"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
	"esupervision/pkg/testutil/containers"
)

func offender(ref string, status models.Status, first time.Time, interval int) models.Offender {
	now := time.Now().UTC()
	return models.Offender{
		ID:             id.NewOffenderID(),
		CaseReference:  id.CaseReference(ref),
		PractitionerID: "officer-1",
		Status:         status,
		FirstCheckin:   models.DateOf(first),
		IntervalDays:   interval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPostgresStoreListDueOn(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.NewPostgresContainer(t)
	s := store.NewPostgres(pg.DB)
	ctx := context.Background()

	first := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	weekly := offender("X000001", models.StatusVerified, first, 7)
	daily := offender("X000002", models.StatusVerified, first, 1)
	unverified := offender("X000003", models.StatusInitial, first, 7)
	future := offender("X000004", models.StatusVerified, first.AddDate(0, 0, 30), 7)
	for _, o := range []models.Offender{weekly, daily, unverified, future} {
		require.NoError(t, s.Save(ctx, o))
	}

	due, err := s.ListDueOn(ctx, first.AddDate(0, 0, 14))
	require.NoError(t, err)
	ids := make(map[id.OffenderID]bool, len(due))
	for _, o := range due {
		ids[o.ID] = true
	}
	// Weekly hits the 14-day mark, daily hits every day; INITIAL and
	// not-yet-started schedules stay out.
	assert.True(t, ids[weekly.ID])
	assert.True(t, ids[daily.ID])
	assert.False(t, ids[unverified.ID])
	assert.False(t, ids[future.ID])

	due, err = s.ListDueOn(ctx, first.AddDate(0, 0, 10))
	require.NoError(t, err)
	for _, o := range due {
		assert.NotEqual(t, weekly.ID, o.ID, "day 10 is off the weekly cadence")
	}
}

func TestPostgresStoreUniqueCaseReference(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.NewPostgresContainer(t)
	s := store.NewPostgres(pg.DB)
	ctx := context.Background()

	first := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, offender("X000010", models.StatusInitial, first, 7)))

	err := s.Save(ctx, offender("X000010", models.StatusInitial, first, 7))
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	got, err := s.FindByCaseReference(ctx, "X000010")
	require.NoError(t, err)
	assert.Equal(t, id.CaseReference("X000010"), got.CaseReference)

	_, err = s.FindByID(ctx, id.NewOffenderID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
