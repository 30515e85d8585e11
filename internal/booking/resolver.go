package booking

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

type specializationRule struct {
	keywords       []string
	specialization string
}

// Order matters: the first rule with a matching keyword wins.
var specializationTable = []specializationRule{
	{[]string{"heart", "cardiac", "chest pain", "hypertension"}, "Cardiologist"},
	{[]string{"skin", "rash", "acne", "derma"}, "Dermatologist"},
	{[]string{"bone", "fracture", "joint", "knee", "orthopedic", "orthopaedic"}, "Orthopedic"},
	{[]string{"tooth", "teeth", "dental", "gum"}, "Dentist"},
	{[]string{"eye", "vision", "ophthalm"}, "Ophthalmologist"},
	{[]string{"ear", "nose", "throat", "ent", "sinus"}, "ENT"},
	{[]string{"brain", "seizure", "neuro", "stroke", "migraine"}, "Neurologist"},
	{[]string{"child", "kid", "pediatric"}, "Pediatrician"},
	{[]string{"pregnan", "gyneco", "gyno", "women health", "obstetric"}, "Gynecologist"},
	{[]string{"sugar", "diabetes", "thyroid", "endocrin"}, "Endocrinologist"},
	{[]string{"kidney", "renal", "nephro"}, "Nephrologist"},
	{[]string{"lung", "asthma", "copd", "pulmon"}, "Pulmonologist"},
	{[]string{"stomach", "abdomen", "gastric", "ulcer", "gastro", "digest"}, "Gastroenterologist"},
	{[]string{"cancer", "onco", "tumor", "tumour"}, "Oncologist"},
	{[]string{"mental", "depression", "anxiety", "psychi"}, "Psychiatrist"},
	{[]string{"fever", "cold", "cough", "flu", "general"}, "General Physician"},
}

// specializationPatterns[i] matches any keyword of specializationTable[i]. Keywords are stems:
// anchored at a word start, open at the end.
var specializationPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(specializationTable))
	for i, rule := range specializationTable {
		quoted := make([]string, len(rule.keywords))
		for j, k := range rule.keywords {
			quoted[j] = regexp.QuoteMeta(k)
		}
		out[i] = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
	}
	return out
}()

var bookingIntentRe = regexp.MustCompile(`(?i)\b(appointments?|book(ing)?|schedule|reserve|reservation)\b`)

// DetectSpecialization maps free text to a specialization. A keyword must start a word, so
// "ent" does not fire on "appointment" while "pregnan" still matches "pregnancy".
func DetectSpecialization(text string) (string, bool) {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return "", false
	}
	for i, re := range specializationPatterns {
		if re.MatchString(t) {
			return specializationTable[i].specialization, true
		}
	}
	return "", false
}

// Specializations lists every specialization the keyword table can detect, in table order.
func Specializations() []string {
	out := make([]string, len(specializationTable))
	for i, rule := range specializationTable {
		out[i] = rule.specialization
	}
	return out
}

func DetectBookingIntent(text string) bool {
	return bookingIntentRe.MatchString(text)
}

// Resolver picks a doctor for a specialization. No load balancing: the first doctor
// the store returns is the suggestion.
type Resolver struct {
	store AvailabilityStore
}

func NewResolver(store AvailabilityStore) *Resolver {
	return &Resolver{store: store}
}

// SuggestDoctor returns nil, nil when no doctor has the specialization.
func (r *Resolver) SuggestDoctor(ctx context.Context, specialization string) (*Doctor, error) {
	doctors, err := r.store.ListDoctors(ctx, specialization)
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, nil
	}
	d := doctors[0]
	return &d, nil
}

// FindDoctor resolves free text naming a doctor. It tries the text as a name first and
// falls back to a specialization keyword in the same text.
func (r *Resolver) FindDoctor(ctx context.Context, text string) (*Doctor, error) {
	name := strings.TrimSpace(text)
	if name == "" {
		return nil, ErrDoctorNotFound
	}

	d, err := r.store.GetDoctor(ctx, DoctorSelector{Name: name})
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrDoctorNotFound) {
		return nil, err
	}

	if spec, ok := DetectSpecialization(name); ok {
		suggested, err := r.SuggestDoctor(ctx, spec)
		if err != nil {
			return nil, err
		}
		if suggested != nil {
			return suggested, nil
		}
	}
	return nil, ErrDoctorNotFound
}
