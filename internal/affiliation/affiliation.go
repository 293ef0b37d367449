// Package affiliation chooses each person's affiliation and resolves it to a
// country code.
package affiliation

import (
	"sort"
	"strings"

	"github.com/matsen/gap/internal/dblp"
	"go.uber.org/zap"
)

// Affiliation is one distinct raw affiliation string.
type Affiliation struct {
	ID          int64
	FullText    string
	CountryCode string // "" when unresolved
}

// Status is the outcome of a country extraction.
type Status int

const (
	Resolved Status = iota
	NoMatch
	Ambiguous
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case NoMatch:
		return "no_match"
	case Ambiguous:
		return "ambiguous"
	}
	return "unknown"
}

// CountryLookup returns every country code listed for an exact country name.
type CountryLookup interface {
	LookupCountry(name string) []string
}

// Resolver extracts countries from affiliation strings.
type Resolver struct {
	countries CountryLookup
	logger    *zap.Logger
}

// NewResolver creates a resolver backed by the given country lookup.
func NewResolver(countries CountryLookup, logger *zap.Logger) *Resolver {
	return &Resolver{countries: countries, logger: logger}
}

// ExtractCountry guesses the country of an affiliation. The trailing comma
// separated segment is tried first; if it matches no country at all, the last
// space separated word is tried. Ambiguous matches never resolve.
func (r *Resolver) ExtractCountry(text string) (string, Status) {
	var codes []string

	if segments := strings.Split(text, ","); len(segments) > 1 {
		codes = r.lookup(strings.TrimSpace(segments[len(segments)-1]))
	}
	if len(codes) == 0 {
		words := strings.Split(text, " ")
		codes = r.lookup(strings.TrimSpace(words[len(words)-1]))
	}

	switch len(codes) {
	case 1:
		return codes[0], Resolved
	case 0:
		r.logger.Warn("no country found for affiliation", zap.String("affiliation", text))
		return "", NoMatch
	default:
		r.logger.Warn("ambiguous country for affiliation",
			zap.String("affiliation", text),
			zap.Strings("codes", codes))
		return "", Ambiguous
	}
}

func (r *Resolver) lookup(name string) []string {
	if name == "" {
		return nil
	}
	return r.countries.LookupCountry(name)
}

// Resolve deduplicates texts, sorts them and assigns IDs starting at 1, so
// the table is a pure function of its input. It also returns how many
// affiliations ended in each status.
func (r *Resolver) Resolve(texts []string) ([]Affiliation, map[Status]int) {
	seen := make(map[string]bool, len(texts))
	var distinct []string
	for _, t := range texts {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		distinct = append(distinct, t)
	}
	sort.Strings(distinct)

	stats := make(map[Status]int)
	affiliations := make([]Affiliation, len(distinct))
	for i, text := range distinct {
		code, status := r.ExtractCountry(text)
		stats[status]++
		affiliations[i] = Affiliation{ID: int64(i + 1), FullText: text, CountryCode: code}
	}
	return affiliations, stats
}

// Choose picks the affiliation of one person from the notes of their page:
// the first note typed "affiliation" without a label, or the first untyped
// note. Notes of other types (award, uname, isnot, former) and labelled
// affiliations are ignored. candidates reports how many notes qualified.
func Choose(notes dblp.Field) (text string, candidates int) {
	for _, n := range notes {
		typ := n.Attr("type")
		if typ == "affiliation" && n.Attr("label") != "" {
			continue
		}
		if typ != "affiliation" && typ != "" {
			continue
		}
		if candidates == 0 {
			text = strings.TrimSpace(n.Text)
		}
		candidates++
	}
	return text, candidates
}

// Index maps affiliation text to ID.
type Index map[string]int64

// NewIndex indexes affiliations by their full text.
func NewIndex(affiliations []Affiliation) Index {
	idx := make(Index, len(affiliations))
	for _, a := range affiliations {
		idx[a.FullText] = a.ID
	}
	return idx
}

// Lookup returns the ID of an exact affiliation text, or 0.
func (idx Index) Lookup(text string) int64 {
	return idx[text]
}
