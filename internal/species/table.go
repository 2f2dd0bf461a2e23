// Package species holds the minimum legal size table and the legality check
// built on top of it.
package species

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"tasfish/internal/logging"
)

// Record is one row of the species source table.
type Record struct {
	Species         string   `yaml:"species"`
	MinimumSize     string   `yaml:"minimum_size"`
	MeasurementNote string   `yaml:"measurement_note"`
	Aliases         []string `yaml:"aliases"`
	BagLimit        string   `yaml:"bag_limit"`
}

// Entry is a parsed size limit.
type Entry struct {
	Key             string  `json:"species"`
	MinimumCM       float64 `json:"minimum_cm"`
	MeasurementNote string  `json:"measurement_note,omitempty"`
	BagLimit        string  `json:"bag_limit,omitempty"`
}

// Table is an immutable lookup of size limits keyed by normalized species
// name. It is safe for concurrent use.
type Table struct {
	entries map[string]Entry
	aliases map[string]string
	known   []string
	// aliasPattern matches any alias as a whole word, longest first.
	aliasPattern *regexp.Regexp
}

var sizePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(cm|mm)\b`)

// ParseMinimumSize extracts the first "<number> cm|mm" from a size
// description and returns it in centimetres. ok is false when the text holds
// no usable size.
func ParseMinimumSize(description string) (cm float64, ok bool) {
	m := sizePattern.FindStringSubmatch(description)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	if strings.EqualFold(m[2], "mm") {
		value /= 10
	}
	return value, true
}

// Normalize lowercases, trims and collapses inner whitespace.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NewTable builds a table from records. Records without a parsable minimum
// size are skipped and logged. Duplicate species are rejected.
func NewTable(records []Record, logger logging.Logger) (*Table, error) {
	logger = logging.OrNop(logger)
	t := &Table{
		entries: make(map[string]Entry, len(records)),
		aliases: make(map[string]string),
	}
	var aliasWords []string
	for _, rec := range records {
		key := Normalize(rec.Species)
		if key == "" {
			return nil, fmt.Errorf("species record with empty name")
		}
		if _, dup := t.entries[key]; dup {
			return nil, fmt.Errorf("duplicate species %q", key)
		}
		cm, ok := ParseMinimumSize(rec.MinimumSize)
		if !ok {
			logger.Debug("skipping %s: no minimum size in %q", key, rec.MinimumSize)
			continue
		}
		t.entries[key] = Entry{
			Key:             key,
			MinimumCM:       cm,
			MeasurementNote: strings.TrimSpace(rec.MeasurementNote),
			BagLimit:        strings.TrimSpace(rec.BagLimit),
		}
		t.known = append(t.known, key)
		for _, alias := range rec.Aliases {
			a := Normalize(alias)
			if a == "" || a == key {
				continue
			}
			if _, taken := t.aliases[a]; taken {
				continue
			}
			t.aliases[a] = key
			aliasWords = append(aliasWords, a)
		}
	}
	if len(t.entries) == 0 {
		return nil, fmt.Errorf("species table has no usable entries")
	}
	sort.Strings(t.known)

	if len(aliasWords) > 0 {
		sort.Slice(aliasWords, func(i, j int) bool { return len(aliasWords[i]) > len(aliasWords[j]) })
		quoted := make([]string, len(aliasWords))
		for i, w := range aliasWords {
			quoted[i] = regexp.QuoteMeta(w)
		}
		t.aliasPattern = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return t, nil
}

// Lookup resolves a species name or alias to its entry.
func (t *Table) Lookup(name string) (Entry, bool) {
	key := Normalize(name)
	if e, ok := t.entries[key]; ok {
		return e, true
	}
	if canonical, ok := t.aliases[key]; ok {
		return t.entries[canonical], true
	}
	return Entry{}, false
}

// Known returns the sorted species keys. The slice is a copy.
func (t *Table) Known() []string {
	return append([]string(nil), t.known...)
}

// Entries returns every entry sorted by species key.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.known))
	for _, k := range t.known {
		out = append(out, t.entries[k])
	}
	return out
}

// NormalizeQuery lowercases query and rewrites species aliases to their
// canonical names so retrieval matches the wording of the guides. An alias
// that is already part of its canonical name ("brown" in "brown trout") is
// left alone.
func (t *Table) NormalizeQuery(query string) string {
	q := strings.ToLower(query)
	if t.aliasPattern == nil {
		return q
	}
	var b strings.Builder
	last := 0
	for _, loc := range t.aliasPattern.FindAllStringIndex(q, -1) {
		start, end := loc[0], loc[1]
		alias := q[start:end]
		canonical := t.aliases[alias]
		if off := strings.Index(canonical, alias); off >= 0 && start-off >= 0 && strings.HasPrefix(q[start-off:], canonical) {
			continue
		}
		b.WriteString(q[last:start])
		b.WriteString(canonical)
		last = end
	}
	b.WriteString(q[last:])
	return b.String()
}
