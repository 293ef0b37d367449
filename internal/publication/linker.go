package publication

// Authorship links one publication to one canonical author.
type Authorship struct {
	PublicationID string
	CanonicalName string
	Position      int // 1-based position in the author list
}

// Conflict is an authorship whose (publication, canonical name) pair was
// produced more than once, usually because two listed names resolve to the
// same person.
type Conflict struct {
	PublicationID string
	AuthorText    string
	CanonicalName string
	Position      int
}

// Unresolved is a listed author that matches no canonical or alternative name.
type Unresolved struct {
	PublicationID string
	AuthorText    string
	Position      int
}

// Names resolves listed author names to canonical names.
type Names struct {
	canonical   map[string]bool
	alternative map[string]string
}

// NewNames creates a resolver from canonical names and an alternative →
// canonical name map.
func NewNames(canonical []string, alternative map[string]string) *Names {
	n := &Names{
		canonical:   make(map[string]bool, len(canonical)),
		alternative: alternative,
	}
	for _, c := range canonical {
		n.canonical[c] = true
	}
	return n
}

// Resolve tries an exact canonical name first, then an alternative name.
func (n *Names) Resolve(text string) (string, bool) {
	if n.canonical[text] {
		return text, true
	}
	c, ok := n.alternative[text]
	return c, ok
}

type pair struct {
	publication string
	canonical   string
}

type kept struct {
	index    int
	text     string
	reported bool
}

// Linker explodes author lists into authorships. For a repeated
// (publication, canonical name) pair the first occurrence is kept and every
// occurrence is reported as a conflict.
type Linker struct {
	names      *Names
	rows       []Authorship
	seen       map[pair]*kept
	exact      map[Authorship]bool
	conflicts  []Conflict
	unresolved []Unresolved
	duplicates int
}

// NewLinker creates a linker.
func NewLinker(names *Names) *Linker {
	return &Linker{
		names: names,
		seen:  make(map[pair]*kept),
		exact: make(map[Authorship]bool),
	}
}

// Add links the author list of one publication.
func (l *Linker) Add(raw Raw) {
	for i, text := range raw.Authors {
		pos := i + 1
		canonical, ok := l.names.Resolve(text)
		if !ok {
			l.unresolved = append(l.unresolved, Unresolved{
				PublicationID: raw.PublicationID,
				AuthorText:    text,
				Position:      pos,
			})
			continue
		}

		row := Authorship{PublicationID: raw.PublicationID, CanonicalName: canonical, Position: pos}
		if l.exact[row] {
			l.duplicates++
			continue
		}
		l.exact[row] = true

		key := pair{raw.PublicationID, canonical}
		first, dup := l.seen[key]
		if !dup {
			l.seen[key] = &kept{index: len(l.rows), text: text}
			l.rows = append(l.rows, row)
			continue
		}

		if !first.reported {
			k := l.rows[first.index]
			l.conflicts = append(l.conflicts, Conflict{
				PublicationID: k.PublicationID,
				AuthorText:    first.text,
				CanonicalName: k.CanonicalName,
				Position:      k.Position,
			})
			first.reported = true
		}
		l.conflicts = append(l.conflicts, Conflict{
			PublicationID: raw.PublicationID,
			AuthorText:    text,
			CanonicalName: canonical,
			Position:      pos,
		})
	}
}

// Authorships returns the kept rows; each (publication, canonical name)
// pair appears once.
func (l *Linker) Authorships() []Authorship {
	return l.rows
}

// Conflicts returns every row of every conflicting pair, kept row first.
func (l *Linker) Conflicts() []Conflict {
	return l.conflicts
}

// Unresolved returns the listed authors that matched no author.
func (l *Linker) Unresolved() []Unresolved {
	return l.unresolved
}

// Duplicates returns how many exact duplicate rows were dropped.
func (l *Linker) Duplicates() int {
	return l.duplicates
}
