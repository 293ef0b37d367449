// Package venue builds the distinct venues publications are published in.
package venue

import "sort"

// Venue types. dblp does not distinguish conferences from workshops.
const (
	TypeJournal    = "Journal"
	TypeConference = "Conference/Workshop"
)

// Venue is one distinct venue name of one type.
type Venue struct {
	ID           int64
	Name         string
	Type         string
	ResearchArea string // assigned after the fact table is built
}

// Resolve deduplicates conference and journal names separately, drops empty
// names and sorts each group. Conferences come first; IDs start at 1. A
// conference and a journal sharing a name stay two venues.
func Resolve(conferenceNames, journalNames []string) []Venue {
	var venues []Venue
	for _, group := range []struct {
		typ   string
		names []string
	}{
		{TypeConference, conferenceNames},
		{TypeJournal, journalNames},
	} {
		for _, name := range distinctSorted(group.names) {
			venues = append(venues, Venue{
				ID:   int64(len(venues) + 1),
				Name: name,
				Type: group.typ,
			})
		}
	}
	return venues
}

func distinctSorted(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type key struct {
	typ  string
	name string
}

// Index finds venue IDs by type and exact name.
type Index struct {
	ids map[key]int64
}

// NewIndex indexes venues.
func NewIndex(venues []Venue) *Index {
	idx := &Index{ids: make(map[key]int64, len(venues))}
	for _, v := range venues {
		idx.ids[key{v.Type, v.Name}] = v.ID
	}
	return idx
}

// Lookup returns the ID of the venue with the given type and name, or 0.
func (idx *Index) Lookup(typ, name string) int64 {
	return idx.ids[key{typ, name}]
}
