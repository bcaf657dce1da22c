package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// Blacklist lists establishments that must never be shown as maternities.
// The membership is curated data, loaded from a JSON file.
type Blacklist struct {
	ids      map[string]bool
	patterns []*regexp.Regexp
}

type blacklistFile struct {
	CNESIDs      []string `json:"cnes_ids"`
	NamePatterns []string `json:"name_patterns"`
}

// NewBlacklist builds a blacklist from ids and case-insensitive name patterns.
func NewBlacklist(ids, patterns []string) (*Blacklist, error) {
	bl := &Blacklist{ids: make(map[string]bool, len(ids))}
	for _, id := range ids {
		if padded := textutil.PadCNES(id); padded != "" {
			bl.ids[padded] = true
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid blacklist pattern %q: %w", p, err)
		}
		bl.patterns = append(bl.patterns, re)
	}
	return bl, nil
}

// LoadBlacklist reads the blacklist file. An empty path yields an empty blacklist.
func LoadBlacklist(path string) (*Blacklist, error) {
	if path == "" {
		return &Blacklist{ids: map[string]bool{}}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blacklist: %w", err)
	}
	var f blacklistFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse blacklist %s: %w", path, err)
	}
	return NewBlacklist(f.CNESIDs, f.NamePatterns)
}

// Blocked reports whether the establishment is blacklisted.
func (b *Blacklist) Blocked(cnesID, name string) bool {
	if b == nil {
		return false
	}
	if b.ids[cnesID] {
		return true
	}
	norm := textutil.StripAccents(name)
	for _, re := range b.patterns {
		if re.MatchString(norm) {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ids) + len(b.patterns)
}
