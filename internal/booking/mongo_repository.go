package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DoctorsCollection      = "doctors"
	AppointmentsCollection = "appointments"
)

// Doctors are stored as one document each with the slot list embedded, so the claim is a
// single-document update and Mongo's per-document atomicity is the concurrency control.
type doctorDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Specialization string             `bson:"specialization"`
	Availability   []slotDocument     `bson:"availability"`
}

type slotDocument struct {
	Date string `bson:"date"`
	Time string `bson:"time"`
	// nil means available; only an explicit false marks a claimed slot
	Available *bool      `bson:"available,omitempty"`
	ClaimedAt *time.Time `bson:"claimedAt,omitempty"`
}

type appointmentDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	DoctorID     string             `bson:"doctorId"`
	DoctorName   string             `bson:"doctor"`
	Date         string             `bson:"date"`
	Time         string             `bson:"time"`
	PatientEmail string             `bson:"patient_email"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (s slotDocument) toSlot() Slot {
	return Slot{
		Date:      s.Date,
		Time:      s.Time,
		Available: s.Available == nil || *s.Available,
		ClaimedAt: s.ClaimedAt,
	}
}

func (d doctorDocument) toDoctor() Doctor {
	out := Doctor{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Specialization: d.Specialization,
		Availability:   make([]Slot, 0, len(d.Availability)),
	}
	for _, s := range d.Availability {
		out.Availability = append(out.Availability, s.toSlot())
	}
	return out
}

func (a appointmentDocument) toAppointment() Appointment {
	return Appointment{
		ID:           a.ID.Hex(),
		DoctorID:     a.DoctorID,
		DoctorName:   a.DoctorName,
		Date:         a.Date,
		Time:         a.Time,
		PatientEmail: a.PatientEmail,
		CreatedAt:    a.CreatedAt,
	}
}

type MongoRepository struct {
	doctors      *mongo.Collection
	appointments *mongo.Collection
	now          func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		doctors:      db.Collection(DoctorsCollection),
		appointments: db.Collection(AppointmentsCollection),
		now:          time.Now,
	}
}

func nameFilter(name string) bson.M {
	return bson.M{"name": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(name) + "$", Options: "i"}}
}

func (r *MongoRepository) findDoctor(ctx context.Context, filter bson.M) (*Doctor, error) {
	var doc doctorDocument
	if err := r.doctors.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	d := doc.toDoctor()
	return &d, nil
}

func (r *MongoRepository) ListDoctors(ctx context.Context, specialization string) ([]Doctor, error) {
	filter := bson.M{}
	if specialization != "" {
		filter["specialization"] = specialization
	}

	cur, err := r.doctors.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []doctorDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]Doctor, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDoctor())
	}
	return out, nil
}

func (r *MongoRepository) GetDoctor(ctx context.Context, sel DoctorSelector) (*Doctor, error) {
	if oid, err := primitive.ObjectIDFromHex(sel.ID); err == nil {
		d, err := r.findDoctor(ctx, bson.M{"_id": oid})
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
	}
	if sel.Name != "" {
		return r.findDoctor(ctx, nameFilter(sel.Name))
	}
	return nil, ErrDoctorNotFound
}

func (r *MongoRepository) GetAvailableSlots(ctx context.Context, doctorID string) ([]Slot, error) {
	oid, err := primitive.ObjectIDFromHex(doctorID)
	if err != nil {
		return nil, ErrDoctorNotFound
	}
	d, err := r.findDoctor(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, err
	}

	var out []Slot
	for _, s := range d.Availability {
		if s.Available {
			out = append(out, Slot{Date: s.Date, Time: s.Time, Available: true})
		}
	}
	return out, nil
}

// ClaimSlot matches the doctor document and an embedded slot that is still available and sets
// the positional slot's flag in the same update.
func (r *MongoRepository) ClaimSlot(ctx context.Context, doctorID, date, slotTime string) (ClaimResult, error) {
	oid, err := primitive.ObjectIDFromHex(doctorID)
	if err != nil {
		return DoctorNotFound, nil
	}

	res, err := r.doctors.UpdateOne(ctx,
		bson.M{
			"_id": oid,
			"availability": bson.M{"$elemMatch": bson.M{
				"date":      date,
				"time":      slotTime,
				"available": bson.M{"$ne": false},
			}},
		},
		bson.M{"$set": bson.M{
			"availability.$.available": false,
			"availability.$.claimedAt": r.now().UTC(),
		}},
	)
	if err != nil {
		return 0, err
	}
	if res.ModifiedCount == 1 {
		return Claimed, nil
	}

	n, err := r.doctors.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return DoctorNotFound, nil
	}
	return SlotUnavailable, nil
}

func (r *MongoRepository) ListClaimedSlots(ctx context.Context, claimedBefore time.Time) ([]ClaimedSlot, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$availability"}},
		{{Key: "$match", Value: bson.M{
			"availability.available": false,
			"availability.claimedAt": bson.M{"$lt": claimedBefore},
		}}},
		{{Key: "$project", Value: bson.M{
			"name":      1,
			"date":      "$availability.date",
			"time":      "$availability.time",
			"claimedAt": "$availability.claimedAt",
		}}},
		{{Key: "$sort", Value: bson.M{"claimedAt": 1}}},
	}

	cur, err := r.doctors.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID        primitive.ObjectID `bson:"_id"`
		Name      string             `bson:"name"`
		Date      string             `bson:"date"`
		Time      string             `bson:"time"`
		ClaimedAt time.Time          `bson:"claimedAt"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make([]ClaimedSlot, 0, len(rows))
	for _, row := range rows {
		out = append(out, ClaimedSlot{
			DoctorID:   row.ID.Hex(),
			DoctorName: row.Name,
			Date:       row.Date,
			Time:       row.Time,
			ClaimedAt:  row.ClaimedAt,
		})
	}
	return out, nil
}

func (r *MongoRepository) RecordAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	doc := appointmentDocument{
		ID:           primitive.NewObjectID(),
		DoctorID:     appt.DoctorID,
		DoctorName:   appt.DoctorName,
		Date:         appt.Date,
		Time:         appt.Time,
		PatientEmail: appt.PatientEmail,
		CreatedAt:    appt.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now().UTC()
	}

	if _, err := r.appointments.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	out := doc.toAppointment()
	return &out, nil
}

func (r *MongoRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	filter := bson.M{}
	if f.DoctorID != "" {
		filter["doctorId"] = f.DoctorID
	}
	if f.PatientEmail != "" {
		filter["patient_email"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.PatientEmail) + "$", Options: "i"}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.appointments.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []appointmentDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]Appointment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAppointment())
	}
	return out, nil
}

func (r *MongoRepository) HasAppointment(ctx context.Context, doctorID, date, slotTime string) (bool, error) {
	n, err := r.appointments.CountDocuments(ctx,
		bson.M{"doctorId": doctorID, "date": date, "time": slotTime},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Provisioning

func (r *MongoRepository) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	doc := doctorDocument{
		ID:             primitive.NewObjectID(),
		Name:           d.Name,
		Specialization: d.Specialization,
		Availability:   make([]slotDocument, 0, len(d.Availability)),
	}
	for _, s := range d.Availability {
		available := s.Available
		doc.Availability = append(doc.Availability, slotDocument{Date: s.Date, Time: s.Time, Available: &available})
	}

	if _, err := r.doctors.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert doctor: %w", err)
	}

	out := doc.toDoctor()
	return &out, nil
}

func (r *MongoRepository) DoctorNameExists(ctx context.Context, name string) (bool, error) {
	n, err := r.doctors.CountDocuments(ctx, nameFilter(name), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
