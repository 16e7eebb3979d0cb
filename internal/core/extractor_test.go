package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/freight-doc-engine/internal/core"
)

func entityValues(entities []core.Entity, t core.EntityType) []string {
	var out []string
	for _, e := range entities {
		if e.Type == t {
			out = append(out, e.Value)
		}
	}
	return out
}

func TestExtractBookingNumber(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	body := "Booking Confirmation\nBooking No: 254300123\nVessel: MSC Oscar"
	entities := e.Extract("m1", body, core.EntityFromBody)

	assert.Contains(t, entityValues(entities, core.EntityBookingNumber), "254300123")
}

func TestExtractBookingNumberVariants(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	cases := []string{
		"booking number 254300123",
		"Booking Ref: 254300123",
		"BOOKING# 254300123",
		"Bkg No. 254300123",
	}
	for _, body := range cases {
		entities := e.Extract("m1", body, core.EntityFromBody)
		assert.Contains(t, entityValues(entities, core.EntityBookingNumber), "254300123", "body=%q", body)
	}
}

func TestExtractBookingNumberRejectsProse(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	// All-letter captures are prose fragments, not booking numbers.
	entities := e.Extract("m1", "Booking request received", core.EntityFromBody)
	assert.Empty(t, entityValues(entities, core.EntityBookingNumber))
}

func TestExtractContainerNumber(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	body := "Containers: MSKU1234567 and MSKU 7654321 loaded."
	entities := e.Extract("m1", body, core.EntityFromBody)

	values := entityValues(entities, core.EntityContainerNumber)
	assert.Contains(t, values, "MSKU1234567")
	// Internal space is normalized away.
	assert.Contains(t, values, "MSKU7654321")
}

func TestExtractBLNumbers(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	body := "MBL No: MAEU123456789\nHBL: FWDMUM26001\nB/L Number: MAEU123456789"
	entities := e.Extract("m1", body, core.EntityFromBody)

	assert.Contains(t, entityValues(entities, core.EntityMBLNumber), "MAEU123456789")
	assert.Contains(t, entityValues(entities, core.EntityHBLNumber), "FWDMUM26001")
	assert.Contains(t, entityValues(entities, core.EntityBLNumber), "MAEU123456789")
}

func TestExtractVesselVoyagePorts(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	body := "Vessel: MSC Oscar\nVoyage: 105W\nPort of Loading: Nhava Sheva\nPort of Discharge: Rotterdam"
	entities := e.Extract("m1", body, core.EntityFromBody)

	assert.Contains(t, entityValues(entities, core.EntityVessel), "MSC Oscar")
	assert.Contains(t, entityValues(entities, core.EntityVoyage), "105W")
	assert.Contains(t, entityValues(entities, core.EntityPortOfLoading), "Nhava Sheva")
	assert.Contains(t, entityValues(entities, core.EntityPortOfDischarge), "Rotterdam")
}

func TestExtractDates(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	body := "ETD: 2026-01-15\nETA: 10 Feb 2026\nSI Cut-off: 12/01/2026 16:00\nVGM Cutoff: 13-Jan-2026"
	entities := e.Extract("m1", body, core.EntityFromBody)

	assert.NotEmpty(t, entityValues(entities, core.EntityETD))
	assert.NotEmpty(t, entityValues(entities, core.EntityETA))
	assert.NotEmpty(t, entityValues(entities, core.EntitySICutoff))
	assert.NotEmpty(t, entityValues(entities, core.EntityVGMCutoff))
}

func TestExtractDateRejectsProse(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	body := "ETA: please advise the revised schedule"
	entities := e.Extract("m1", body, core.EntityFromBody)
	assert.Empty(t, entityValues(entities, core.EntityETA))
}

func TestExtractCarrier(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	body := "Your CMA CGM booking is attached. Hapag-Lloyd option also quoted."
	entities := e.Extract("m1", body, core.EntityFromBody)

	values := entityValues(entities, core.EntityCarrier)
	assert.Contains(t, values, "CMA CGM")
	assert.Contains(t, values, "Hapag-Lloyd")
}

func TestExtractAllCombinesBodyAndAttachments(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	msg := &core.Message{
		ID:              "m1",
		Body:            "Booking No: 254300123",
		AttachmentTexts: []string{"Container: MSKU1234567"},
	}
	entities := e.ExtractAll(msg)

	assert.Contains(t, entityValues(entities, core.EntityBookingNumber), "254300123")
	assert.Contains(t, entityValues(entities, core.EntityContainerNumber), "MSKU1234567")

	// Source tags reflect where each value was found.
	for _, en := range entities {
		switch en.Type {
		case core.EntityBookingNumber:
			assert.Equal(t, core.EntityFromBody, en.Source)
		case core.EntityContainerNumber:
			assert.Equal(t, core.EntityFromAttachment, en.Source)
		}
	}
}

func TestParseShippingDate(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2026-01-15", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"15/01/2026", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"Jan 2, 2026", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"02-Jan-2026", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"2026/01/15", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true},
		// Trailing time components are stripped.
		{"2026-01-15 16:00", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"2026-01-15 16:00 hrs", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true},
		// Two-digit year fallback.
		{"15/01/26", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true},
		// Implausible years are rejected.
		{"2099-01-15", time.Time{}, false},
		{"2012-01-15", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, c := range cases {
		got, ok := core.ParseShippingDate(c.raw)
		require.Equal(t, c.ok, ok, "raw=%q", c.raw)
		if c.ok {
			assert.Equal(t, c.want, got, "raw=%q", c.raw)
		}
	}
}

func TestExtractBookingNumberAfterLabelWords(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	// Carrier subject lines put the document name between "booking" and
	// the number.
	cases := []string{
		"Booking Confirmation: 263522431",
		"Booking Amendment - 263522431",
		"BOOKING CANCELLATION 263522431",
	}
	for _, text := range cases {
		entities := e.Extract("m1", text, core.EntityFromSubject)
		assert.Contains(t, entityValues(entities, core.EntityBookingNumber), "263522431", "text=%q", text)
	}
}

func TestExtractAllIncludesSubjectAndFilenames(t *testing.T) {
	e := core.NewEntityExtractor(zap.NewNop())

	msg := &core.Message{
		ID:              "m1",
		Subject:         "Booking Confirmation: 263522431",
		AttachmentNames: []string{"BC_263522431.pdf", "MSKU1234567.jpg"},
	}
	entities := e.ExtractAll(msg)

	booking := entityValues(entities, core.EntityBookingNumber)
	require.Contains(t, booking, "263522431")
	assert.Contains(t, entityValues(entities, core.EntityContainerNumber), "MSKU1234567")

	for _, en := range entities {
		if en.Type == core.EntityBookingNumber && en.Value == "263522431" && en.Source == core.EntityFromSubject {
			return
		}
	}
	t.Fatalf("no booking entity sourced from the subject: %+v", entities)
}
