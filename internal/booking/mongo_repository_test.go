package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func doctorDoc(id primitive.ObjectID, name, spec string, slots ...bson.D) bson.D {
	avail := bson.A{}
	for _, s := range slots {
		avail = append(avail, s)
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: name},
		{Key: "specialization", Value: spec},
		{Key: "availability", Value: avail},
	}
}

func countResponse(ns string, n int64) bson.D {
	if n == 0 {
		return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch)
	}
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	doctorsNS := "test." + DoctorsCollection
	apptsNS := "test." + AppointmentsCollection
	id := primitive.NewObjectID()

	mt.Run("claim wins", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		res, err := repo.ClaimSlot(ctx, id.Hex(), "2025-01-10", "09:00")
		require.NoError(mt, err)
		assert.Equal(mt, Claimed, res)
	})

	mt.Run("claim loses to an earlier claim", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			countResponse(doctorsNS, 1),
		)

		res, err := repo.ClaimSlot(ctx, id.Hex(), "2025-01-10", "09:00")
		require.NoError(mt, err)
		assert.Equal(mt, SlotUnavailable, res)
	})

	mt.Run("claim for unknown doctor", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			countResponse(doctorsNS, 0),
		)

		res, err := repo.ClaimSlot(ctx, id.Hex(), "2025-01-10", "09:00")
		require.NoError(mt, err)
		assert.Equal(mt, DoctorNotFound, res)

		res, err = repo.ClaimSlot(ctx, "not-an-object-id", "2025-01-10", "09:00")
		require.NoError(mt, err)
		assert.Equal(mt, DoctorNotFound, res)
	})

	mt.Run("claim surfaces server errors", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad value",
			Name:    "BadValue",
		}))

		_, err := repo.ClaimSlot(ctx, id.Hex(), "2025-01-10", "09:00")
		assert.Error(mt, err)
	})

	mt.Run("get doctor treats a missing flag as available", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch, doctorDoc(id, "Dr. Mehta", "Cardiologist",
			bson.D{{Key: "date", Value: "2025-01-10"}, {Key: "time", Value: "09:00"}},
			bson.D{{Key: "date", Value: "2025-01-10"}, {Key: "time", Value: "10:30"}, {Key: "available", Value: false}},
		)))

		d, err := repo.GetDoctor(ctx, DoctorSelector{ID: id.Hex()})
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), d.ID)
		require.Len(mt, d.Availability, 2)
		assert.True(mt, d.Availability[0].Available)
		assert.False(mt, d.Availability[1].Available)
	})

	mt.Run("get doctor falls back to name", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch),
			mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch, doctorDoc(id, "Dr. Mehta", "Cardiologist")),
		)

		d, err := repo.GetDoctor(ctx, DoctorSelector{ID: primitive.NewObjectID().Hex(), Name: "dr. mehta"})
		require.NoError(mt, err)
		assert.Equal(mt, "Dr. Mehta", d.Name)
	})

	mt.Run("get doctor prefers id over a different name", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		other := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch, doctorDoc(id, "Dr. Mehta", "Cardiologist")),
			mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch, doctorDoc(other, "Dr. Ortiz", "Dermatologist")),
		)

		d, err := repo.GetDoctor(ctx, DoctorSelector{ID: id.Hex(), Name: "Dr. Ortiz"})
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), d.ID)
		assert.Equal(mt, "Dr. Mehta", d.Name)
	})

	mt.Run("get doctor not found", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch))

		_, err := repo.GetDoctor(ctx, DoctorSelector{Name: "Dr. Who"})
		assert.ErrorIs(mt, err, ErrDoctorNotFound)
	})

	mt.Run("available slots", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch, doctorDoc(id, "Dr. Mehta", "Cardiologist",
			bson.D{{Key: "date", Value: "2025-01-10"}, {Key: "time", Value: "09:00"}, {Key: "available", Value: false}},
			bson.D{{Key: "date", Value: "2025-01-10"}, {Key: "time", Value: "10:30"}, {Key: "available", Value: true}},
		)))

		slots, err := repo.GetAvailableSlots(ctx, id.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, []Slot{{Date: "2025-01-10", Time: "10:30", Available: true}}, slots)
	})

	mt.Run("list doctors", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch,
			doctorDoc(id, "Dr. Amy", "Cardiologist"),
			doctorDoc(primitive.NewObjectID(), "Dr. Zed", "Cardiologist"),
		))

		doctors, err := repo.ListDoctors(ctx, "Cardiologist")
		require.NoError(mt, err)
		require.Len(mt, doctors, 2)
		assert.Equal(mt, "Dr. Amy", doctors[0].Name)
	})

	mt.Run("list claimed slots", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		claimedAt := time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Dr. Mehta"},
			{Key: "date", Value: "2025-01-10"},
			{Key: "time", Value: "09:00"},
			{Key: "claimedAt", Value: claimedAt},
		}))

		claimed, err := repo.ListClaimedSlots(ctx, claimedAt.Add(time.Hour))
		require.NoError(mt, err)
		require.Len(mt, claimed, 1)
		assert.Equal(mt, id.Hex(), claimed[0].DoctorID)
		assert.True(mt, claimed[0].ClaimedAt.Equal(claimedAt))
	})

	mt.Run("record appointment", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		appt, err := repo.RecordAppointment(ctx, Appointment{
			DoctorID:     id.Hex(),
			DoctorName:   "Dr. Mehta",
			Date:         "2025-01-10",
			Time:         "09:00",
			PatientEmail: "patient@example.com",
		})
		require.NoError(mt, err)
		assert.NotEmpty(mt, appt.ID)
		assert.False(mt, appt.CreatedAt.IsZero())
	})

	mt.Run("record appointment write error", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		_, err := repo.RecordAppointment(ctx, Appointment{DoctorID: id.Hex(), Date: "2025-01-10", Time: "09:00"})
		assert.Error(mt, err)
	})

	mt.Run("list appointments and ledger check", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		created := time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, apptsNS, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "doctorId", Value: id.Hex()},
				{Key: "doctor", Value: "Dr. Mehta"},
				{Key: "date", Value: "2025-01-10"},
				{Key: "time", Value: "09:00"},
				{Key: "patient_email", Value: "patient@example.com"},
				{Key: "createdAt", Value: created},
			}),
			countResponse(apptsNS, 1),
		)

		appts, err := repo.ListAppointments(ctx, AppointmentFilter{PatientEmail: "Patient@example.com", Limit: 10})
		require.NoError(mt, err)
		require.Len(mt, appts, 1)
		assert.Equal(mt, "Dr. Mehta", appts[0].DoctorName)

		ok, err := repo.HasAppointment(ctx, id.Hex(), "2025-01-10", "09:00")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("create doctor", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(), countResponse(doctorsNS, 1))

		d, err := repo.CreateDoctor(ctx, Doctor{
			Name:           "Dr. Mehta",
			Specialization: "Cardiologist",
			Availability:   []Slot{openSlot("2025-01-10", "09:00")},
		})
		require.NoError(mt, err)
		assert.NotEmpty(mt, d.ID)
		require.Len(mt, d.Availability, 1)
		assert.True(mt, d.Availability[0].Available)

		exists, err := repo.DoctorNameExists(ctx, "Dr. Mehta")
		require.NoError(mt, err)
		assert.True(mt, exists)
	})
}
