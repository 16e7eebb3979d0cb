package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mikey/freight-doc-engine/internal/core"
)

func TestNormalizeDocType(t *testing.T) {
	cases := []struct {
		raw  string
		want core.DocumentType
	}{
		{"booking_confirmation", core.DocBookingConfirmation},
		{"Booking Confirmation", core.DocBookingConfirmation},
		{"Proof-of-Delivery", core.DocProofOfDelivery},
		{"booking confirmed", core.DocBookingConfirmation},
		{"Master Bill of Lading", core.DocBillOfLading},
		{"MBL", core.DocBillOfLading},
		{"house bill of lading", core.DocHouseBL},
		{"ISF 10+2", core.DocISFFiling},
		{"Entry Summary", core.DocCustomsEntry},
		{"verified gross mass", core.DocVGMConfirmation},
		{"shipping instructions", core.DocShippingInstruction},
		{"Notice of Arrival", core.DocArrivalNotice},
		{"DO", core.DocDeliveryOrder},
		{"other", core.DocGeneralCorrespondence},
		{"", core.DocUnknown},
		{"quarterly newsletter", core.DocUnknown},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, core.NormalizeDocType(c.raw), "raw=%q", c.raw)
	}
}

func TestNormalizeDocTypeEnumPassthrough(t *testing.T) {
	for _, dt := range core.AllDocumentTypes {
		assert.Equal(t, dt, core.NormalizeDocType(string(dt)))
		assert.Equal(t, dt, core.NormalizeDocType("  "+string(dt)+"  "))
	}
}

func TestRequiresActionByDefault(t *testing.T) {
	assert.True(t, core.RequiresActionByDefault(core.DocBookingConfirmation))
	assert.True(t, core.RequiresActionByDefault(core.DocArrivalNotice))
	assert.True(t, core.RequiresActionByDefault(core.DocUnknown))

	assert.False(t, core.RequiresActionByDefault(core.DocSIConfirmation))
	assert.False(t, core.RequiresActionByDefault(core.DocVGMConfirmation))
	assert.False(t, core.RequiresActionByDefault(core.DocSOBConfirmation))
	assert.False(t, core.RequiresActionByDefault(core.DocGateInConfirmation))
	assert.False(t, core.RequiresActionByDefault(core.DocProofOfDelivery))
	assert.False(t, core.RequiresActionByDefault(core.DocGeneralCorrespondence))
}

func TestDedupeEntities(t *testing.T) {
	entities := []core.Entity{
		{Type: core.EntityBookingNumber, Value: "254300123"},
		{Type: core.EntityContainerNumber, Value: "MSKU1234567"},
		{Type: core.EntityBookingNumber, Value: "254300123"},
		{Type: core.EntityBookingNumber, Value: "254300999"},
	}

	deduped := core.DedupeEntities(entities)
	assert.Len(t, deduped, 3)
	assert.Equal(t, "254300123", deduped[0].Value)
	assert.Equal(t, "MSKU1234567", deduped[1].Value)
	assert.Equal(t, "254300999", deduped[2].Value)
}

func TestFirstAndLastEntity(t *testing.T) {
	entities := []core.Entity{
		{Type: core.EntityETA, Value: "2026-02-10"},
		{Type: core.EntityETD, Value: "2026-01-15"},
		{Type: core.EntityETA, Value: "2026-02-20"},
	}

	assert.Equal(t, "2026-02-10", core.FirstEntity(entities, core.EntityETA))
	assert.Equal(t, "2026-02-20", core.LastEntity(entities, core.EntityETA))
	assert.Equal(t, "2026-01-15", core.FirstEntity(entities, core.EntityETD))
	assert.Equal(t, "", core.FirstEntity(entities, core.EntityBookingNumber))
	assert.Equal(t, "", core.LastEntity(entities, core.EntityBookingNumber))
}
