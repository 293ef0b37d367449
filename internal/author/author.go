// Package author resolves dblp person pages into canonical authors with
// their alternative names, contact links, affiliation and gender.
package author

import (
	"sort"
	"strings"

	"github.com/matsen/gap/internal/affiliation"
	"github.com/matsen/gap/internal/dblp"
	"github.com/matsen/gap/internal/gender"
	"go.uber.org/zap"
)

// Author types. Any other publtype of a person page is kept verbatim.
const (
	TypePerson = "person"
	TypeGroup  = "group"
)

// Author is one canonical dblp person.
type Author struct {
	ID               string // key of the person page
	CanonicalName    string
	Type             string
	OrcidPage        string
	ScholarPage      string
	Homepages        string
	AffiliationID    int64 // 0 when unresolved
	Gender           gender.Label
	GenderSourceName string // first name used for inference, "" if none
}

// AlternativeName is one further spelling listed on a person page.
type AlternativeName struct {
	ID              int64
	CanonicalName   string
	AlternativeName string
}

// Options holds the tunables of the resolver.
type Options struct {
	HomePageTitle string
	OrcidToken    string
	ScholarToken  string
}

// IsPersonPage reports whether a www record is a person's home page: it is
// titled exactly title (repeats and surrounding whitespace tolerated) and
// lists at least one name.
func IsPersonPage(rec dblp.Record, title string) bool {
	titles := rec.Field("title")
	if len(titles) == 0 || len(rec.Field("author")) == 0 {
		return false
	}
	for _, t := range titles {
		if strings.TrimSpace(t.Text) != title {
			return false
		}
	}
	return true
}

// Links are the classified web pages of one author, each newline-joined.
type Links struct {
	Orcid     string
	Scholar   string
	Homepages string
}

// ClassifyLinks splits urls into ORCID pages, scholar pages and other
// homepages. A url carrying a type attribute gets the type appended in
// parentheses.
func ClassifyLinks(urls dblp.Field, orcidToken, scholarToken string) Links {
	var orcid, scholar, home []string
	for _, u := range urls {
		text := u.Text
		if typ := u.Attr("type"); typ != "" {
			text += " (" + typ + ")"
		}
		switch {
		case strings.Contains(text, orcidToken):
			orcid = append(orcid, text)
		case strings.Contains(text, scholarToken):
			scholar = append(scholar, text)
		default:
			home = append(home, text)
		}
	}
	return Links{
		Orcid:     strings.Join(orcid, "\n"),
		Scholar:   strings.Join(scholar, "\n"),
		Homepages: strings.Join(home, "\n"),
	}
}

// Resolver accumulates person pages into authors. Add records in document
// order; on conflicts the first occurrence wins.
type Resolver struct {
	opts         Options
	engine       *gender.Engine
	affiliations affiliation.Index
	logger       *zap.Logger

	authors     []Author
	alternates  []AlternativeName
	keys        map[string]bool
	canonical   map[string]bool
	alternative map[string]bool

	skipped          int
	multiAffiliation int
}

// NewResolver creates a resolver.
func NewResolver(opts Options, engine *gender.Engine, affiliations affiliation.Index, logger *zap.Logger) *Resolver {
	return &Resolver{
		opts:         opts,
		engine:       engine,
		affiliations: affiliations,
		logger:       logger,
		keys:         make(map[string]bool),
		canonical:    make(map[string]bool),
		alternative:  make(map[string]bool),
	}
}

// Add resolves one www record. It returns false when the record is not a
// person page or duplicates an author already added.
func (r *Resolver) Add(rec dblp.Record) bool {
	if !IsPersonPage(rec, r.opts.HomePageTitle) {
		r.skipped++
		return false
	}

	names := rec.Field("author").Texts()
	name := names[0]
	if r.keys[rec.Key()] || r.canonical[name] {
		r.logger.Warn("duplicate person page",
			zap.String("key", rec.Key()),
			zap.String("name", name))
		return false
	}
	r.keys[rec.Key()] = true
	r.canonical[name] = true

	a := Author{
		ID:            rec.Key(),
		CanonicalName: name,
		Type:          rec.Attr("publtype"),
	}
	if a.Type == "" {
		a.Type = TypePerson
	}

	links := ClassifyLinks(rec.Field("url"), r.opts.OrcidToken, r.opts.ScholarToken)
	a.OrcidPage, a.ScholarPage, a.Homepages = links.Orcid, links.Scholar, links.Homepages

	text, candidates := affiliation.Choose(rec.Field("note"))
	if candidates > 1 {
		r.multiAffiliation++
	}
	if text != "" {
		a.AffiliationID = r.affiliations.Lookup(text)
	}

	if a.Type == TypeGroup {
		a.Gender = gender.Unknown
	} else {
		res := r.engine.Infer(name)
		a.Gender, a.GenderSourceName = res.Gender, res.FirstName
	}
	r.authors = append(r.authors, a)

	for _, alt := range names[1:] {
		if alt == name {
			continue
		}
		if r.alternative[alt] {
			r.logger.Warn("alternative name listed twice",
				zap.String("name", alt),
				zap.String("canonical", name))
			continue
		}
		r.alternative[alt] = true
		r.alternates = append(r.alternates, AlternativeName{
			ID:              int64(len(r.alternates) + 1),
			CanonicalName:   name,
			AlternativeName: alt,
		})
	}
	return true
}

// Authors returns the resolved authors in the order they were added.
func (r *Resolver) Authors() []Author {
	return r.authors
}

// AlternativeNames returns the alternative names with IDs starting at 1.
func (r *Resolver) AlternativeNames() []AlternativeName {
	return r.alternates
}

// Skipped returns how many records were not person pages.
func (r *Resolver) Skipped() int {
	return r.skipped
}

// MultiAffiliation returns how many persons listed more than one usable
// affiliation; the first one was used for each of them.
func (r *Resolver) MultiAffiliation() int {
	return r.multiAffiliation
}

// UnknownFirstNames returns the distinct first names that were looked up but
// not found, sorted, excluding nobiliary particles. These are the names to
// submit to the gender service before the next run.
func UnknownFirstNames(authors []Author, parser *gender.NameParser) []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range authors {
		n := a.GenderSourceName
		if a.Gender != gender.Unknown || n == "" || seen[n] || parser.IsParticle(n) {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
