package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/pkg/geo"
)

func TestEstablishment_SetCoordinates(t *testing.T) {
	var e Establishment

	assert.True(t, e.SetCoordinates(-23.55, -46.63, geo.Brazil))
	assert.True(t, e.HasCoordinates(geo.Brazil))

	assert.False(t, e.SetCoordinates(40.7, -74.0, geo.Brazil))
	assert.Nil(t, e.Lat)
	assert.Nil(t, e.Lon)
}

func TestEstablishment_Tier(t *testing.T) {
	assert.Equal(t, TierConfirmed, (&Establishment{HasMaternity: true}).Tier())
	assert.Equal(t, TierProbable, (&Establishment{IsProbable: true}).Tier())
	assert.Equal(t, TierOther, (&Establishment{}).Tier())
}

func TestDataset_Find(t *testing.T) {
	ds := NewDataset([]Establishment{
		{CNESID: "0000001", Nome: "first"},
		{CNESID: "0000002", Nome: "second"},
		{CNESID: "0000001", Nome: "duplicate"},
	}, "table.parquet", time.Now(), false)

	row, ok := ds.Find("0000001")
	require.True(t, ok)
	assert.Equal(t, "first", row.Nome)

	_, ok = ds.Find("9999999")
	assert.False(t, ok)
	assert.Equal(t, 3, ds.Len())

	var empty *Dataset
	assert.Equal(t, 0, empty.Len())
}

func TestHotRowRoundTrip(t *testing.T) {
	lat, lon := -23.5, -46.6
	e := Establishment{CNESID: "1234567", Nome: "Hospital X", Lat: &lat, Lon: &lon, HasMaternity: true, Esfera: EsferaPublico, Convenios: []string{"UNIMED"}, Evidence: `[{"type":"leito"}]`}

	back := e.Hot().Establishment()
	assert.Equal(t, e.CNESID, back.CNESID)
	assert.Equal(t, e.Convenios, back.Convenios)
	assert.Equal(t, "", back.Evidence)
}

func TestEvidenceCodec(t *testing.T) {
	list := []Evidence{{Type: EvidenceBeds, Code: "10", Source: "rlEstabComplementar"}}
	assert.Equal(t, list, DecodeEvidence(EncodeEvidence(list)))
	assert.Equal(t, "[]", EncodeEvidence(nil))
	assert.Empty(t, DecodeEvidence("not json"))
	assert.True(t, EvidenceBeds.Strong())
	assert.False(t, EvidenceKeyword.Strong())
}
