// Package publication normalizes the publication-like dblp records into one
// table and links their author lists to canonical authors.
package publication

import (
	"strconv"
	"strings"

	"github.com/matsen/gap/internal/dblp"
	"github.com/matsen/gap/internal/venue"
)

// Source describes how one dblp element maps onto a publication.
type Source struct {
	Tag         string
	TypeName    string
	VenueField  string // "" when the type has no venue
	VenueType   string
	AuthorField string
}

// Sources lists every publication-like element, in union order.
var Sources = []Source{
	{Tag: "inproceedings", TypeName: "Inproceedings", VenueField: "booktitle", VenueType: venue.TypeConference, AuthorField: "author"},
	{Tag: "article", TypeName: "Article", VenueField: "journal", VenueType: venue.TypeJournal, AuthorField: "author"},
	{Tag: "proceedings", TypeName: "Proceedings", VenueField: "booktitle", VenueType: venue.TypeConference, AuthorField: "editor"},
	{Tag: "book", TypeName: "Book", AuthorField: "author"},
	{Tag: "incollection", TypeName: "Incollection", AuthorField: "author"},
	{Tag: "phdthesis", TypeName: "PhD Thesis", AuthorField: "author"},
	{Tag: "mastersthesis", TypeName: "Master Thesis", AuthorField: "author"},
}

// SourceFor returns the source of a dblp element tag.
func SourceFor(tag string) (Source, bool) {
	for _, s := range Sources {
		if s.Tag == tag {
			return s, true
		}
	}
	return Source{}, false
}

// VenueName returns the venue text of rec, or "" if its type has none.
func (s Source) VenueName(rec dblp.Record) string {
	if s.VenueField == "" {
		return ""
	}
	return rec.Field(s.VenueField).Joined()
}

// Publication is one row of the publication table.
type Publication struct {
	ID          string
	Title       string
	VenueID     int64 // 0 when unresolved
	Type        string
	Subtype     string // publtype attribute, "" for regular publications
	Year        int    // 0 when absent
	Pages       string
	AuthorCount int
}

// Raw keeps the ordered author list of a publication for the linker.
type Raw struct {
	PublicationID string   `json:"publication_id"`
	Authors       []string `json:"authors,omitempty"`
}

// Normalize maps rec onto the common publication schema and resolves its
// venue by type and exact name.
func (s Source) Normalize(rec dblp.Record, venues *venue.Index) (Publication, Raw) {
	authors := rec.Field(s.AuthorField).Texts()
	p := Publication{
		ID:          rec.Key(),
		Title:       rec.Field("title").Joined(),
		Type:        s.TypeName,
		Subtype:     rec.Attr("publtype"),
		Year:        maxYear(rec.Field("year")),
		Pages:       rec.Field("pages").Joined(),
		AuthorCount: len(authors),
	}
	if name := s.VenueName(rec); name != "" {
		p.VenueID = venues.Lookup(s.VenueType, name)
	}
	return p, Raw{PublicationID: p.ID, Authors: authors}
}

// maxYear returns the largest parsable year. Theses occasionally list
// several years.
func maxYear(years dblp.Field) int {
	best := 0
	for _, y := range years {
		n, err := strconv.Atoi(strings.TrimSpace(y.Text))
		if err == nil && n > best {
			best = n
		}
	}
	return best
}
