package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryClaimSlot(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	d := seedDoctor(repo, "Dr. Mehta", "Cardiologist", openSlot("2025-01-10", "09:00"), openSlot("2025-01-10", "10:30"))

	res, err := repo.ClaimSlot(ctx, d.ID, "2025-01-10", "09:00")
	require.NoError(t, err)
	assert.Equal(t, Claimed, res)

	res, err = repo.ClaimSlot(ctx, d.ID, "2025-01-10", "09:00")
	require.NoError(t, err)
	assert.Equal(t, SlotUnavailable, res)

	// unknown slot and unknown doctor
	res, err = repo.ClaimSlot(ctx, d.ID, "2025-01-10", "23:00")
	require.NoError(t, err)
	assert.Equal(t, SlotUnavailable, res)

	res, err = repo.ClaimSlot(ctx, "nope", "2025-01-10", "10:30")
	require.NoError(t, err)
	assert.Equal(t, DoctorNotFound, res)

	slots, err := repo.GetAvailableSlots(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []Slot{{Date: "2025-01-10", Time: "10:30", Available: true}}, slots)
}

func TestMemoryRepositoryClaimHonoursCancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	d := seedDoctor(repo, "Dr. Mehta", "Cardiologist", openSlot("2025-01-10", "09:00"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ClaimSlot(ctx, d.ID, "2025-01-10", "09:00")
	require.ErrorIs(t, err, context.Canceled)

	slots, err := repo.GetAvailableSlots(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestMemoryRepositoryConcurrentClaimsHaveOneWinner(t *testing.T) {
	repo := NewMemoryRepository()
	d := seedDoctor(repo, "Dr. Mehta", "Cardiologist", openSlot("2025-01-10", "09:00"))

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[ClaimResult]int{}
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := repo.ClaimSlot(context.Background(), d.ID, "2025-01-10", "09:00")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			results[res]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, results[Claimed])
	assert.Equal(t, workers-1, results[SlotUnavailable])
}

func TestMemoryRepositoryGetDoctor(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	d := seedDoctor(repo, "Dr. Sara Khan", "Dermatologist", openSlot("2025-01-10", "09:00"))

	got, err := repo.GetDoctor(ctx, DoctorSelector{ID: d.ID})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sara Khan", got.Name)

	got, err = repo.GetDoctor(ctx, DoctorSelector{ID: "stale-id", Name: "dr. sara khan"})
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = repo.GetDoctor(ctx, DoctorSelector{Name: "Dr. Nobody"})
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	// a resolvable id wins over a name naming someone else
	other := seedDoctor(repo, "Dr. Ben Ortiz", "Cardiologist", openSlot("2025-01-10", "10:30"))
	got, err = repo.GetDoctor(ctx, DoctorSelector{ID: d.ID, Name: other.Name})
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "Dr. Sara Khan", got.Name)

	// returned doctors are copies
	got.Availability[0].Available = false
	again, err := repo.GetDoctor(ctx, DoctorSelector{ID: d.ID})
	require.NoError(t, err)
	assert.True(t, again.Availability[0].Available)
}

func TestMemoryRepositoryListDoctors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedDoctor(repo, "Dr. Zed", "Cardiologist")
	seedDoctor(repo, "Dr. Amy", "Cardiologist")
	seedDoctor(repo, "Dr. Bob", "Dentist")

	all, err := repo.ListDoctors(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Dr. Amy", all[0].Name)

	cardio, err := repo.ListDoctors(ctx, "Cardiologist")
	require.NoError(t, err)
	require.Len(t, cardio, 2)
	assert.Equal(t, "Dr. Zed", cardio[1].Name)

	exists, err := repo.DoctorNameExists(ctx, "DR. BOB")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryRepositoryLedger(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@x.test", "b@x.test", "A@x.test"} {
		_, err := repo.RecordAppointment(ctx, Appointment{
			DoctorID:     "doc-1",
			Date:         "2025-01-10",
			Time:         []string{"09:00", "10:30", "12:00"}[i],
			PatientEmail: email,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	appts, err := repo.ListAppointments(ctx, AppointmentFilter{PatientEmail: "a@x.test"})
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "12:00", appts[0].Time, "newest first")

	page, err := repo.ListAppointments(ctx, AppointmentFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "10:30", page[0].Time)

	none, err := repo.ListAppointments(ctx, AppointmentFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)

	ok, err := repo.HasAppointment(ctx, "doc-1", "2025-01-10", "10:30")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasAppointment(ctx, "doc-1", "2025-01-10", "14:00")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRepositoryListClaimedSlots(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	claimedAt := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return claimedAt }

	d := seedDoctor(repo, "Dr. Mehta", "Cardiologist", openSlot("2025-01-10", "09:00"), openSlot("2025-01-10", "10:30"))
	_, err := repo.ClaimSlot(ctx, d.ID, "2025-01-10", "09:00")
	require.NoError(t, err)

	claimed, err := repo.ListClaimedSlots(ctx, claimedAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, ClaimedSlot{DoctorID: d.ID, DoctorName: "Dr. Mehta", Date: "2025-01-10", Time: "09:00", ClaimedAt: claimedAt}, claimed[0])

	claimed, err = repo.ListClaimedSlots(ctx, claimedAt)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}
