package entities

import "github.com/zatekoja/obstetric-locator/pkg/textutil"

// SUS acceptance labels and the badges derived from them.
const (
	SUSLabelYes = "Sim"
	SUSLabelNo  = "Não"

	SUSBadgeAccepts = "Aceita Cartão SUS"
	SUSBadgeRejects = "Não atende SUS"
)

// ParseSUSLabel maps an indicator cell onto "Sim", "Não" or "".
func ParseSUSLabel(raw string) string {
	switch textutil.Normalize(raw) {
	case "SIM", "S", "1", "TRUE", "T", "Y", "YES":
		return SUSLabelYes
	case "NAO", "N", "0", "FALSE", "F", "NO":
		return SUSLabelNo
	}
	return ""
}

// SUSBadge derives the badge from the label and the normalized sphere.
func SUSBadge(label string, esfera Esfera) string {
	switch label {
	case SUSLabelYes:
		return SUSBadgeAccepts
	case SUSLabelNo:
		return SUSBadgeRejects
	}
	if esfera == EsferaPublico {
		return SUSBadgeAccepts
	}
	return ""
}

// EffectiveSUSLabel is the label used by the SUS filter: an empty label on a
// public establishment counts as "Sim".
func EffectiveSUSLabel(label string, esfera Esfera) string {
	if label == "" && esfera == EsferaPublico {
		return SUSLabelYes
	}
	return label
}

// LabelFromBadge inverts SUSBadge for badges that carry an explicit answer.
func LabelFromBadge(badge string) string {
	switch badge {
	case SUSBadgeAccepts:
		return SUSLabelYes
	case SUSBadgeRejects:
		return SUSLabelNo
	}
	return ""
}
