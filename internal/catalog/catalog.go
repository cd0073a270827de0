// Package catalog consumes the authoritative map table: it fetches the
// spreadsheet CSV export, parses rows into entries, and excludes entries
// whose preset does not round-trip through the id codec.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tagpro-records/tracker/internal/preset"
	"github.com/tagpro-records/tracker/pkg/core"
)

// Entry is one usable catalog row. CapsToWin is core.CapsInfinite for maps
// scored only by power-up collection.
type Entry struct {
	Name             string
	Preset           string
	Category         string
	Difficulty       string
	Fun              string
	MapID            string
	EquivalentMapIDs []string
	CapsToWin        int
	AllowBlueCaps    bool
	MinBallsRec      string
	MaxBallsRec      string
}

// Spreadsheet column headers. The fun/caps/pseudo-id/balls headers contain
// literal newlines in the sheet.
const (
	colName       = "Map / Player"
	colPreset     = "Group Preset"
	colDifficulty = "Final Rating"
	colFun        = "Final Fun \nRating"
	colCategory   = "Category"
	colMapID      = "Map ID"
	colPseudoIDs  = "Pseudo \nMap ID"
	colCaps       = "Num\nof caps"
	colBlueCaps   = "Allow Blue Caps"
	colMinBalls   = "Min\nBalls \nRec"
	colMaxBalls   = "Max\nBalls\nRec"
)

// capsInfiniteMarker is the sheet's sentinel for power-up-scored maps.
const capsInfiniteMarker = "pups"

// ParseCSV reads catalog rows from the spreadsheet CSV export. Rows with no
// preset are skipped outright; remaining rows are returned whether legal or
// not, so callers can report the illegal ones before excluding them.
func ParseCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{colName, colPreset, colMapID, colPseudoIDs, colCaps, colBlueCaps} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("catalog header missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var entries []Entry
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading catalog row: %w", err)
		}
		if strings.TrimSpace(field(row, colPreset)) == "" {
			continue
		}
		entries = append(entries, Entry{
			Name:             field(row, colName),
			Preset:           field(row, colPreset),
			Category:         field(row, colCategory),
			Difficulty:       field(row, colDifficulty),
			Fun:              field(row, colFun),
			MapID:            field(row, colMapID),
			EquivalentMapIDs: splitIDs(field(row, colPseudoIDs)),
			CapsToWin:        parseCaps(field(row, colCaps)),
			AllowBlueCaps:    strings.TrimSpace(field(row, colBlueCaps)) == "TRUE",
			MinBallsRec:      field(row, colMinBalls),
			MaxBallsRec:      field(row, colMaxBalls),
		})
	}
	return entries, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseCaps(s string) int {
	s = strings.TrimSpace(s)
	if s == capsInfiniteMarker {
		return core.CapsInfinite
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// Legal reports whether an entry's stored preset, map id and injected
// recomputation agree. An entry with an empty preset or map id, a
// non-numeric map id, or a preset that does not round-trip for its own id
// is excluded from the usable catalog.
func Legal(e Entry) bool {
	if strings.TrimSpace(e.Preset) == "" || e.MapID == "" {
		return false
	}
	id, err := strconv.Atoi(e.MapID)
	if err != nil || id < 0 {
		return false
	}
	injected, err := preset.Inject(e.Preset, id)
	if err != nil {
		return false
	}
	return injected == e.Preset
}

// FilterLegal returns the usable entries and the excluded ones.
func FilterLegal(entries []Entry) (legal, illegal []Entry) {
	for _, e := range entries {
		if Legal(e) {
			legal = append(legal, e)
		} else {
			illegal = append(illegal, e)
		}
	}
	return legal, illegal
}

// Lookup finds the entry for a map id: a direct match first, then membership
// in another entry's equivalent ids. At most one direct match can exist in a
// validated catalog.
func Lookup(entries []Entry, mapID string) *Entry {
	if mapID == "" {
		return nil
	}
	for i := range entries {
		if entries[i].MapID == mapID {
			return &entries[i]
		}
	}
	for i := range entries {
		for _, eq := range entries[i].EquivalentMapIDs {
			if eq == mapID {
				return &entries[i]
			}
		}
	}
	return nil
}

// MapIDSet returns the effective map ids present in the catalog.
func MapIDSet(entries []Entry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.MapID] = struct{}{}
	}
	return set
}

// CleanName strips a trailing " by <author>" suffix from a display name.
func CleanName(name string) string {
	idx := strings.LastIndex(name, " by ")
	if idx == -1 {
		return name
	}
	if len(name)-(idx+4) > 100 {
		return name
	}
	return name[:idx]
}
