package entities

import (
	"time"

	"github.com/zatekoja/obstetric-locator/pkg/geo"
)

// Establishment is one row of the canonical table.
type Establishment struct {
	CNESID       string `parquet:"cnes_id"`
	RazaoSocial  string `parquet:"razao_social"`
	NomeFantasia string `parquet:"nome_fantasia"`
	Nome         string `parquet:"nome"`
	TipoUnidade  string `parquet:"tipo_unidade"`

	Lat          *float64 `parquet:"lat,optional"`
	Lon          *float64 `parquet:"lon,optional"`
	Endereco     string   `parquet:"endereco"`
	Logradouro   string   `parquet:"logradouro"`
	Numero       string   `parquet:"numero"`
	Bairro       string   `parquet:"bairro"`
	Cidade       string   `parquet:"cidade"`
	CodMunicipio string   `parquet:"cod_municipio"`
	UF           string   `parquet:"uf"`
	CEP          string   `parquet:"cep"`

	Telefone          string `parquet:"telefone"`
	TelefoneFormatado string `parquet:"telefone_formatado"`
	PhoneE164         string `parquet:"phone_e164"`

	HasMaternity  bool    `parquet:"has_maternity"`
	IsProbable    bool    `parquet:"is_probable"`
	Score         float64 `parquet:"score"`
	Evidence      string  `parquet:"evidence"`
	LeitosObst    int64   `parquet:"leitos_obst"`
	LeitosTotal   int64   `parquet:"leitos_total"`
	TemInternacao bool    `parquet:"tem_internacao"`

	Esfera         Esfera   `parquet:"esfera"`
	AtendeSUSLabel string   `parquet:"atende_sus_label"`
	SUSBadge       string   `parquet:"sus_badge"`
	Convenios      []string `parquet:"convenios,list"`

	Snapshot      string `parquet:"snapshot"`
	SnapshotMtime string `parquet:"snapshot_mtime"`
}

// HotRow is the trimmed projection read on the search path.
type HotRow struct {
	CNESID            string   `parquet:"cnes_id"`
	Nome              string   `parquet:"nome"`
	TipoUnidade       string   `parquet:"tipo_unidade"`
	Lat               *float64 `parquet:"lat,optional"`
	Lon               *float64 `parquet:"lon,optional"`
	Endereco          string   `parquet:"endereco"`
	Cidade            string   `parquet:"cidade"`
	UF                string   `parquet:"uf"`
	Telefone          string   `parquet:"telefone"`
	TelefoneFormatado string   `parquet:"telefone_formatado"`
	PhoneE164         string   `parquet:"phone_e164"`
	HasMaternity      bool     `parquet:"has_maternity"`
	IsProbable        bool     `parquet:"is_probable"`
	Score             float64  `parquet:"score"`
	Esfera            Esfera   `parquet:"esfera"`
	AtendeSUSLabel    string   `parquet:"atende_sus_label"`
	SUSBadge          string   `parquet:"sus_badge"`
	Convenios         []string `parquet:"convenios,list"`
}

// Hot returns the trimmed projection of e.
func (e *Establishment) Hot() HotRow {
	return HotRow{
		CNESID:            e.CNESID,
		Nome:              e.Nome,
		TipoUnidade:       e.TipoUnidade,
		Lat:               e.Lat,
		Lon:               e.Lon,
		Endereco:          e.Endereco,
		Cidade:            e.Cidade,
		UF:                e.UF,
		Telefone:          e.Telefone,
		TelefoneFormatado: e.TelefoneFormatado,
		PhoneE164:         e.PhoneE164,
		HasMaternity:      e.HasMaternity,
		IsProbable:        e.IsProbable,
		Score:             e.Score,
		Esfera:            e.Esfera,
		AtendeSUSLabel:    e.AtendeSUSLabel,
		SUSBadge:          e.SUSBadge,
		Convenios:         e.Convenios,
	}
}

// Establishment widens a trimmed row back into the canonical shape.
func (h HotRow) Establishment() Establishment {
	return Establishment{
		CNESID:            h.CNESID,
		Nome:              h.Nome,
		TipoUnidade:       h.TipoUnidade,
		Lat:               h.Lat,
		Lon:               h.Lon,
		Endereco:          h.Endereco,
		Cidade:            h.Cidade,
		UF:                h.UF,
		Telefone:          h.Telefone,
		TelefoneFormatado: h.TelefoneFormatado,
		PhoneE164:         h.PhoneE164,
		HasMaternity:      h.HasMaternity,
		IsProbable:        h.IsProbable,
		Score:             h.Score,
		Esfera:            h.Esfera,
		AtendeSUSLabel:    h.AtendeSUSLabel,
		SUSBadge:          h.SUSBadge,
		Convenios:         h.Convenios,
	}
}

// HasCoordinates reports whether both coordinates are present and inside bounds.
func (e *Establishment) HasCoordinates(bounds geo.BoundingBox) bool {
	return bounds.ContainsPtr(e.Lat, e.Lon)
}

// SetCoordinates stores both coordinates, or clears both when either is outside bounds.
func (e *Establishment) SetCoordinates(lat, lon float64, bounds geo.BoundingBox) bool {
	if !bounds.Contains(lat, lon) {
		e.Lat, e.Lon = nil, nil
		return false
	}
	e.Lat, e.Lon = &lat, &lon
	return true
}

// Tier is the search partition an establishment falls into.
type Tier string

const (
	TierConfirmed Tier = "A"
	TierProbable  Tier = "B"
	TierOther     Tier = "C"
)

// Tier partitions on has_maternity then is_probable.
func (e *Establishment) Tier() Tier {
	switch {
	case e.HasMaternity:
		return TierConfirmed
	case e.IsProbable:
		return TierProbable
	}
	return TierOther
}

// Dataset is one loaded version of the canonical table.
type Dataset struct {
	Rows     []Establishment
	Source   string
	Mtime    time.Time
	LoadedAt time.Time
	Trimmed  bool

	index map[string]int
}

// NewDataset indexes rows by cnes_id; the first occurrence wins.
func NewDataset(rows []Establishment, source string, mtime time.Time, trimmed bool) *Dataset {
	idx := make(map[string]int, len(rows))
	for i := range rows {
		if _, ok := idx[rows[i].CNESID]; !ok {
			idx[rows[i].CNESID] = i
		}
	}
	return &Dataset{
		Rows:     rows,
		Source:   source,
		Mtime:    mtime,
		LoadedAt: time.Now().UTC(),
		Trimmed:  trimmed,
		index:    idx,
	}
}

// Find returns the row with the given cnes_id.
func (d *Dataset) Find(cnesID string) (*Establishment, bool) {
	if d == nil {
		return nil, false
	}
	i, ok := d.index[cnesID]
	if !ok {
		return nil, false
	}
	return &d.Rows[i], true
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}
