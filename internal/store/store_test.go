package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_DATABASE_URL, skipping when it is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStore_InsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 1, 14, 13, 0, 0, 0, time.UTC)
	b := &Booking{
		EventID:    "evt-" + uuid.NewString(),
		CalendarID: "primary",
		Title:      "Intro call",
		StartAtUTC: start,
		EndAtUTC:   start.Add(time.Hour),
		Attendees:  []string{"contato@kodano.com.br"},
	}
	require.NoError(t, s.InsertBooking(ctx, b))
	assert.NotEmpty(t, b.ID)
	assert.False(t, b.CreatedAt.IsZero())

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.EventID, got.EventID)
	assert.Equal(t, b.Attendees, got.Attendees)
	assert.True(t, start.Equal(got.StartAtUTC))

	list, err := s.ListBookings(ctx, start.Add(-time.Minute), start.Add(time.Minute), true)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, l := range list {
		ids = append(ids, l.ID)
	}
	assert.Contains(t, ids, b.ID)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBooking(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetBooking(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, ErrNotFound))
}
