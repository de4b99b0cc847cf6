package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNilHandling(t *testing.T) {
	assert.Equal(t, Intent{ServiceType: DefaultServiceType}, Merge(nil, nil))

	incoming := &Intent{Specialty: "cardiology"}
	got := Merge(nil, incoming)
	assert.Equal(t, "cardiology", got.Specialty)
	assert.Equal(t, DefaultServiceType, got.ServiceType)

	existing := &Intent{PatientName: "Ana", ServiceType: "follow-up"}
	got = Merge(existing, nil)
	assert.Equal(t, "Ana", got.PatientName)
	assert.Equal(t, "follow-up", got.ServiceType)
}

func TestMergeIsSticky(t *testing.T) {
	existing := &Intent{
		ProfessionalName: "Dr. Silva",
		Specialty:        "cardiology",
		DatePreference:   "day 30",
		ShiftPreference:  ShiftMorning,
		PatientName:      "Ana",
	}
	incoming := &Intent{
		ProfessionalName: "   ",
		SpecificTime:     "10:00",
	}

	got := Merge(existing, incoming)
	assert.Equal(t, "Dr. Silva", got.ProfessionalName, "blank values must not overwrite")
	assert.Equal(t, "cardiology", got.Specialty)
	assert.Equal(t, "day 30", got.DatePreference)
	assert.Equal(t, ShiftMorning, got.ShiftPreference)
	assert.Equal(t, "10:00", got.SpecificTime)
	assert.Equal(t, "Ana", got.PatientName)
}

func TestMergeNewerValueWins(t *testing.T) {
	got := Merge(&Intent{DatePreference: "tomorrow"}, &Intent{DatePreference: " 05/07 "})
	assert.Equal(t, "05/07", got.DatePreference)
}

func TestMergeIdempotent(t *testing.T) {
	a := Intent{Specialty: "dermatology", DatePreference: "earliest", ServiceType: DefaultServiceType}
	once := Merge(&a, &a)
	twice := Merge(&once, &a)
	assert.Equal(t, once, twice)
	assert.Equal(t, a, once)
}

func TestMergeNeverShrinksFilledFields(t *testing.T) {
	partials := []Intent{
		{Specialty: "pediatrics"},
		{DatePreference: "tomorrow"},
		{},
		{ShiftPreference: ShiftAfternoon},
		{Specialty: ""},
		{PatientName: "João"},
	}
	var acc Intent
	filled := 0
	for _, p := range partials {
		p := p
		acc = Merge(&acc, &p)
		n := countFilled(acc)
		require.GreaterOrEqual(t, n, filled)
		filled = n
	}
	assert.Equal(t, 4, filled)
}

func countFilled(i Intent) int {
	n := 0
	for _, v := range []string{i.ProfessionalName, i.Specialty, i.DatePreference, string(i.ShiftPreference), i.SpecificTime, i.PatientName} {
		if v != "" {
			n++
		}
	}
	return n
}

func TestEffectiveShift(t *testing.T) {
	assert.Equal(t, ShiftAfternoon, Intent{ShiftPreference: ShiftAfternoon, SpecificTime: "09:00"}.EffectiveShift())
	assert.Equal(t, ShiftMorning, Intent{SpecificTime: "09:00"}.EffectiveShift())
	assert.Equal(t, ShiftNone, Intent{SpecificTime: "20:00"}.EffectiveShift())
}

func TestShiftContains(t *testing.T) {
	assert.True(t, ShiftMorning.Contains(5))
	assert.True(t, ShiftMorning.Contains(11))
	assert.False(t, ShiftMorning.Contains(12))
	assert.True(t, ShiftAfternoon.Contains(12))
	assert.False(t, ShiftAfternoon.Contains(18))
	assert.True(t, ShiftNone.Contains(22))
}

func TestParseShift(t *testing.T) {
	assert.Equal(t, ShiftMorning, ParseShift("Manhã"))
	assert.Equal(t, ShiftAfternoon, ParseShift(" afternoon "))
	assert.Equal(t, ShiftNone, ParseShift("evening"))
}

func TestClear(t *testing.T) {
	i := Intent{ProfessionalName: "Dr. Lee", Specialty: "urology", SpecificTime: "10:00"}
	assert.Empty(t, i.Clear(FieldSpecificTime).SpecificTime)
	cleared := i.Clear(FieldSpecialtyOrProfessional)
	assert.Empty(t, cleared.ProfessionalName)
	assert.Empty(t, cleared.Specialty)
	assert.Equal(t, "10:00", cleared.SpecificTime)
}
