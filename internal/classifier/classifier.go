package classifier

import (
	"regexp"
	"strings"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/pkg/config"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// Origin table names recorded in evidence entries.
const (
	SourceEstablishments = "tbEstabelecimento"
	SourceBeds           = "rlEstabComplementar"
	SourceServices       = "rlEstabServClass"
	SourceQualifications = "rlEstabHabilitacao"
)

var (
	obstetricBedPattern           = regexp.MustCompile(`(?i)(obst|neonat|aloj|uti\s*neo|ucin)`)
	obstetricQualificationPattern = regexp.MustCompile(`(?i)(obstet|neonat|cpn|parto|nascer)`)
	emergencyOnlyPattern          = regexp.MustCompile(`\b(UPA|PRONTO ATENDIMENTO|PRONTO SOCORRO|PS)\b`)
	hospitalNamePattern           = regexp.MustCompile(`\b(HOSPITAL|HOSP|MATERNIDADE|SANTA CASA|CASA DE PARTO)\b`)
)

// DefaultKeywords are the obstetric-intent phrases matched against the display name.
var DefaultKeywords = []string{
	"MATERNIDADE",
	"HOSPITAL DA MULHER",
	"CASA DE PARTO",
	"HOSPITAL E MATERNIDADE",
	"MATERNO INFANTIL",
	"MATERNO-INFANTIL",
	"CENTRO DE PARTO",
	"PERINATAL",
	"OBSTETRIC",
}

// Bed is one bed-count row from the complementary table.
type Bed struct {
	Code        string
	Description string
	Quantity    int64
}

// Service is one service/classification pair.
type Service struct {
	Service        string
	Classification string
}

// Qualification is one qualification row.
type Qualification struct {
	Code        string
	Description string
}

// Input is one establishment with its raw code lists.
type Input struct {
	CNESID         string
	Name           string
	TypeCode       string
	Beds           []Bed
	Services       []Service
	Qualifications []Qualification
}

// Result is the classification outcome.
type Result struct {
	HasMaternity bool
	IsProbable   bool
	Score        float64
	Evidence     []entities.Evidence
	ObstBeds     int64
	TotalBeds    int64
}

// Classifier applies the weighted evidence rules.
type Classifier struct {
	cfg          config.ClassifierConfig
	bedCodes     map[string]bool
	serviceCodes map[string]bool
	classCodes   map[string]bool
	typeCodes    map[string]bool
	hospitals    map[string]bool
	keywords     []string
	blacklist    *Blacklist
}

// New builds a classifier from configuration. blacklist may be nil.
func New(cfg config.ClassifierConfig, blacklist *Blacklist) *Classifier {
	return &Classifier{
		cfg:          cfg,
		bedCodes:     codeSet(cfg.ObstetricBedCodes),
		serviceCodes: codeSet(cfg.ObstetricServiceCodes),
		classCodes:   codeSet(cfg.ObstetricClassCodes),
		typeCodes:    codeSet(cfg.MaternityTypeCodes),
		hospitals:    codeSet(cfg.HospitalTypeCodes),
		keywords:     DefaultKeywords,
		blacklist:    blacklist,
	}
}

// Classify scores one establishment.
func (c *Classifier) Classify(in Input) Result {
	var res Result
	score := 0.0
	strong := false

	add := func(t entities.EvidenceType, code, source string, weight float64) {
		res.Evidence = append(res.Evidence, entities.Evidence{Type: t, Code: code, Source: source})
		if t.Strong() {
			strong = true
			if weight > score {
				score = weight
			}
		}
	}

	for _, b := range in.Beds {
		res.TotalBeds += b.Quantity
		if b.Quantity <= 0 {
			continue
		}
		if c.bedCodes[normCode(b.Code)] || obstetricBedPattern.MatchString(textutil.StripAccents(b.Description)) {
			res.ObstBeds += b.Quantity
		}
	}
	if res.ObstBeds > 0 {
		add(entities.EvidenceBeds, obstetricBedCodes(in.Beds, c.bedCodes), SourceBeds, c.cfg.WeightBeds)
	}

	seenService := map[string]bool{}
	for _, s := range in.Services {
		svc := normCode(s.Service)
		if !c.serviceCodes[svc] {
			continue
		}
		if !seenService[svc] {
			seenService[svc] = true
			add(entities.EvidenceService, svc, SourceServices, c.cfg.WeightService)
		}
		if cls := normCode(s.Classification); c.classCodes[cls] {
			add(entities.EvidenceClassif, svc+"/"+cls, SourceServices, c.cfg.WeightService)
		}
	}

	for _, q := range in.Qualifications {
		if obstetricQualificationPattern.MatchString(textutil.StripAccents(q.Description)) {
			add(entities.EvidenceQualification, q.Code, SourceQualifications, c.cfg.WeightQualification)
		}
	}

	if code := normCode(in.TypeCode); code != "" && c.typeCodes[code] {
		add(entities.EvidenceMaternityType, code, SourceEstablishments, c.cfg.WeightType)
	}

	keyword := c.MatchKeyword(in.Name)
	if keyword != "" {
		add(entities.EvidenceKeyword, keyword, SourceEstablishments, c.cfg.WeightKeyword)
		score += c.cfg.WeightKeyword
	}
	if score > 1 {
		score = 1
	}

	switch {
	case strong:
		res.HasMaternity = true
	case keyword != "" && score >= c.cfg.ScoreMinProbable && score <= c.cfg.ScoreMaxProbable:
		res.HasMaternity = true
	}
	if res.HasMaternity && !c.IsHospital(in.TypeCode, in.Name) {
		res.HasMaternity = false
	}
	res.IsProbable = !res.HasMaternity && keyword != ""

	if c.blacklist.Blocked(in.CNESID, in.Name) {
		res.HasMaternity = false
		res.IsProbable = false
	}

	res.Score = score
	if res.Evidence == nil {
		res.Evidence = []entities.Evidence{}
	}
	return res
}

// MatchKeyword returns the first obstetric-intent phrase found in name.
func (c *Classifier) MatchKeyword(name string) string {
	norm := textutil.Normalize(name)
	for _, kw := range c.keywords {
		if strings.Contains(norm, kw) {
			return kw
		}
	}
	return ""
}

// IsHospital reports whether the unit type can host a maternity ward. Without a
// type code the name decides; emergency-only units never qualify.
func (c *Classifier) IsHospital(typeCode, name string) bool {
	norm := textutil.Normalize(name)
	if emergencyOnlyPattern.MatchString(norm) && !hospitalNamePattern.MatchString(norm) {
		return false
	}
	if code := normCode(typeCode); code != "" {
		return c.hospitals[code] || c.typeCodes[code]
	}
	return hospitalNamePattern.MatchString(norm)
}

// Blacklist exposes the configured blacklist (possibly nil).
func (c *Classifier) Blacklist() *Blacklist {
	if c == nil {
		return nil
	}
	return c.blacklist
}

func obstetricBedCodes(beds []Bed, set map[string]bool) string {
	var codes []string
	seen := map[string]bool{}
	for _, b := range beds {
		code := normCode(b.Code)
		if b.Quantity <= 0 || seen[code] {
			continue
		}
		if set[code] || obstetricBedPattern.MatchString(textutil.StripAccents(b.Description)) {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, ",")
}

func codeSet(codes []string) map[string]bool {
	out := make(map[string]bool, len(codes))
	for _, c := range codes {
		if n := normCode(c); n != "" {
			out[n] = true
		}
	}
	return out
}

// normCode trims whitespace and a trailing ".0" left by spreadsheet exports.
func normCode(code string) string {
	code = strings.TrimSpace(code)
	return strings.TrimSuffix(code, ".0")
}
