package entities

// OverrideRecord patches sphere, SUS badge and convênios for one establishment
// at read time. It is never written back to the canonical table.
type OverrideRecord struct {
	Esfera    Esfera
	SUSBadge  string
	Convenios []string
}

// MaxConvenios caps the convênios kept per establishment.
const MaxConvenios = 3
