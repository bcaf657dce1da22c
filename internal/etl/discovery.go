package etl

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

// Table identifies one raw registry table.
type Table string

const (
	TableEstablishments Table = "tbEstabelecimento"
	TableBeds           Table = "rlEstabComplementar"
	TableServices       Table = "rlEstabServClass"
	TableQualifications Table = "rlEstabHabilitacao"
	TableConvenios      Table = "rlEstabConvenio"
)

var extensions = []string{".csv", ".CSV", ".parquet"}

// Sources holds the discovered paths for one snapshot; empty means missing.
type Sources struct {
	Snapshot       string
	Establishments string
	Beds           string
	Services       string
	Qualifications string
	Convenios      string
}

// Missing lists the optional tables that were not found.
func (s Sources) Missing() []string {
	var out []string
	if s.Beds == "" {
		out = append(out, string(TableBeds))
	}
	if s.Services == "" {
		out = append(out, string(TableServices))
	}
	if s.Qualifications == "" {
		out = append(out, string(TableQualifications))
	}
	return out
}

// Candidates returns the probed paths for table, in order.
func Candidates(dataDir, snapshot string, table Table) []string {
	names := []string{
		string(table) + snapshot,
		string(table) + "_" + snapshot,
		strings.ToUpper(string(table)) + snapshot,
		strings.ToLower(string(table)) + snapshot,
	}
	dirs := []string{dataDir, filepath.Join(dataDir, snapshot), filepath.Join(dataDir, "raw"), filepath.Join(dataDir, "raw", snapshot)}

	var out []string
	for _, dir := range dirs {
		for _, name := range names {
			for _, ext := range extensions {
				out = append(out, filepath.Join(dir, name+ext))
			}
		}
	}
	return out
}

// Discover probes the candidate paths of every table. Only the establishments
// table is required.
func Discover(dataDir, snapshot string) (Sources, error) {
	if snapshot == "" {
		latest, err := LatestSnapshot(dataDir)
		if err != nil {
			return Sources{}, err
		}
		snapshot = latest
	}

	src := Sources{
		Snapshot:       snapshot,
		Establishments: firstExisting(Candidates(dataDir, snapshot, TableEstablishments)),
		Beds:           firstExisting(Candidates(dataDir, snapshot, TableBeds)),
		Services:       firstExisting(Candidates(dataDir, snapshot, TableServices)),
		Qualifications: firstExisting(Candidates(dataDir, snapshot, TableQualifications)),
		Convenios:      firstExisting(Candidates(dataDir, snapshot, TableConvenios)),
	}
	if src.Establishments == "" {
		return src, apperrors.NewConfigMissingError(fmt.Sprintf("%s%s not found under %s", TableEstablishments, snapshot, dataDir))
	}
	return src, nil
}

var snapshotPattern = regexp.MustCompile(`(?i)^tbEstabelecimento_?(\d{6})\.(csv|parquet)$`)

// LatestSnapshot returns the newest YYYYMM code among establishment files.
func LatestSnapshot(dataDir string) (string, error) {
	path, err := LatestEstablishmentFile(dataDir)
	if err != nil {
		return "", err
	}
	return snapshotPattern.FindStringSubmatch(filepath.Base(path))[1], nil
}

// LatestEstablishmentFile returns the establishments file with the newest
// snapshot code, searching dataDir and its direct subdirectories.
func LatestEstablishmentFile(dataDir string) (string, error) {
	var found []string
	for _, pattern := range []string{filepath.Join(dataDir, "*"), filepath.Join(dataDir, "*", "*")} {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			if snapshotPattern.MatchString(filepath.Base(m)) {
				found = append(found, m)
			}
		}
	}
	if len(found) == 0 {
		return "", apperrors.NewConfigMissingError(fmt.Sprintf("no %s snapshot found under %s", TableEstablishments, dataDir))
	}
	sort.Slice(found, func(i, j int) bool {
		ci := snapshotPattern.FindStringSubmatch(filepath.Base(found[i]))[1]
		cj := snapshotPattern.FindStringSubmatch(filepath.Base(found[j]))[1]
		if ci != cj {
			return ci > cj
		}
		return found[i] < found[j]
	})
	return found[0], nil
}

// SnapshotOf extracts the YYYYMM code from an establishments file name.
func SnapshotOf(path string) string {
	if m := snapshotPattern.FindStringSubmatch(filepath.Base(path)); m != nil {
		return m[1]
	}
	return ""
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// FindTable returns the first existing candidate for table, or "".
func FindTable(dataDir, snapshot string, table Table) string {
	return firstExisting(Candidates(dataDir, snapshot, table))
}
