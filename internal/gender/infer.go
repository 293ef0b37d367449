package gender

import (
	"regexp"
	"strings"
)

// Label is the gender assigned to an author.
type Label string

const (
	Woman   Label = "woman"
	Man     Label = "man"
	Neutral Label = "neutral" // found, but used by both genders
	Unknown Label = "unknown" // never looked up successfully
)

// MapCategory maps a reference table category to a label.
func MapCategory(raw string) Label {
	switch raw {
	case "female":
		return Woman
	case "male":
		return Man
	case "unknown":
		return Neutral
	}
	return Unknown
}

var abbreviation = regexp.MustCompile(`^[\p{L}\p{N}_]+\.`)

// NameParser extracts the first name that can be checked against the table.
type NameParser struct {
	particles map[string]bool
}

// NewNameParser creates a parser that ignores the given nobiliary particles
// among middle names.
func NewNameParser(particles []string) *NameParser {
	p := &NameParser{particles: make(map[string]bool, len(particles))}
	for _, s := range particles {
		p.particles[s] = true
	}
	return p
}

// IsParticle reports whether s is a configured nobiliary particle.
func (p *NameParser) IsParticle(s string) bool {
	return p.particles[s]
}

// CheckableFirstName returns the first token of a "first [middle...] last"
// name that is not an abbreviation. When the first name is abbreviated
// ("J."), the remaining non-particle tokens are parsed as a new name.
// A single remaining token is never checkable: it may be either name.
func (p *NameParser) CheckableFirstName(name string) (string, bool) {
	tokens := splitName(name)
	for {
		if len(tokens) < 2 {
			return "", false
		}

		first := strings.Trim(tokens[0], `()"`)
		last := strings.Trim(tokens[len(tokens)-1], `()'"`)
		var middles []string
		for _, m := range tokens[1 : len(tokens)-1] {
			m = strings.Trim(m, `()'"`)
			if !p.particles[m] {
				middles = append(middles, m)
			}
		}

		if abbreviation.MatchString(first) {
			tokens = splitName(strings.Join(append(middles, last), " "))
			continue
		}
		if first == "" {
			return "", false
		}
		return first, true
	}
}

// splitName drops dblp's trailing homonym number ("Jane Doe 0002") and
// splits on spaces.
func splitName(name string) []string {
	return strings.Split(strings.TrimRight(name, " 0123456789"), " ")
}

// Result is the inferred gender of one name. FirstName is the name that was
// looked up, or "" when none could be extracted.
type Result struct {
	Gender    Label
	FirstName string
}

// Engine combines the name parser with the reference table.
type Engine struct {
	parser *NameParser
	table  *Table
}

// NewEngine creates an inference engine.
func NewEngine(parser *NameParser, table *Table) *Engine {
	return &Engine{parser: parser, table: table}
}

// Parser returns the engine's name parser.
func (e *Engine) Parser() *NameParser {
	return e.parser
}

// Infer determines the gender of one full name.
func (e *Engine) Infer(name string) Result {
	first, ok := e.parser.CheckableFirstName(name)
	if !ok {
		return Result{Gender: Unknown}
	}
	entry, found := e.table.Lookup(first)
	if !found {
		return Result{Gender: Unknown, FirstName: first}
	}
	return Result{Gender: MapCategory(entry.GaGender), FirstName: first}
}

