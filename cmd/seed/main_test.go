package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-slot-booking/internal/booking"
)

func TestGenerateAvailability(t *testing.T) {
	now := time.Date(2025, 9, 14, 18, 0, 0, 0, time.UTC)

	slots := generateAvailability(now, 2)
	require.Len(t, slots, 10)
	assert.Equal(t, booking.Slot{Date: "2025-09-15", Time: "09:00", Available: true}, slots[0])
	assert.Equal(t, booking.Slot{Date: "2025-09-16", Time: "15:30", Available: true}, slots[9])
}

func TestUniqueNameAddsSuffix(t *testing.T) {
	ctx := context.Background()
	repo := booking.NewMemoryRepository()

	name, err := uniqueName(ctx, repo, "Dr. Kavya Rao")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Kavya Rao", name)

	_, err = repo.CreateDoctor(ctx, booking.Doctor{Name: "Dr. Kavya Rao"})
	require.NoError(t, err)
	_, err = repo.CreateDoctor(ctx, booking.Doctor{Name: "Dr. Kavya Rao (2)"})
	require.NoError(t, err)

	name, err = uniqueName(ctx, repo, "Dr. Kavya Rao")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Kavya Rao (3)", name)
}

func TestSeedDoctors(t *testing.T) {
	ctx := context.Background()
	repo := booking.NewMemoryRepository()

	created, err := seedDoctors(ctx, repo, 3, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	doctors, err := repo.ListDoctors(ctx, "")
	require.NoError(t, err)
	require.Len(t, doctors, 3)

	specs := map[string]bool{}
	for _, d := range doctors {
		assert.Len(t, d.Availability, len(slotTimes))
		specs[d.Specialization] = true
	}
	assert.Equal(t, map[string]bool{"Cardiologist": true, "Dermatologist": true, "Orthopedic": true}, specs)
}
