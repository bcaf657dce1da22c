package entities

import "encoding/json"

// EvidenceType names the kind of signal behind a classification.
type EvidenceType string

const (
	EvidenceBeds          EvidenceType = "leito"
	EvidenceService       EvidenceType = "servico"
	EvidenceClassif       EvidenceType = "classif"
	EvidenceQualification EvidenceType = "habilitacao"
	EvidenceMaternityType EvidenceType = "tipo"
	EvidenceKeyword       EvidenceType = "keyword"
)

// Strong reports whether the evidence alone confirms a maternity.
func (t EvidenceType) Strong() bool {
	return t != EvidenceKeyword
}

// Evidence is one signal found for an establishment.
type Evidence struct {
	Type   EvidenceType `json:"type"`
	Code   string       `json:"code"`
	Source string       `json:"source"`
}

// EncodeEvidence serializes the list for the columnar table.
func EncodeEvidence(list []Evidence) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeEvidence parses the stored column; malformed values yield an empty list.
func DecodeEvidence(raw string) []Evidence {
	if raw == "" {
		return []Evidence{}
	}
	var list []Evidence
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return []Evidence{}
	}
	return list
}
