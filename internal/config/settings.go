package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EntitySpec declares which sub-fields the extractor captures for one
// top-level dblp element.
type EntitySpec struct {
	Tag    string   `yaml:"tag"`
	Fields []string `yaml:"fields"`
}

// Settings holds the resolution tunables. Every field has a compiled-in
// default; a YAML file only needs to list what it overrides.
type Settings struct {
	NobiliaryParticles []string     `yaml:"nobiliary_particles,omitempty"`
	OrcidToken         string       `yaml:"orcid_token,omitempty"`
	ScholarToken       string       `yaml:"scholar_token,omitempty"`
	HomePageTitle      string       `yaml:"home_page_title,omitempty"`
	Entities           []EntitySpec `yaml:"entities,omitempty"`
}

// Particles that never count as a middle name. The, Zu, De, Den, Der, Del,
// Ul, Al, Da, El, Des, Di, Ten, Ter, Van, Von, Zur, Du, Das and Le are real
// first names when capitalised, so only the lower-case forms are listed for
// those.
var defaultParticles = []string{
	"van", "von", "zur", "aus", "dem", "den", "der", "del", "de", "la", "La",
	"las", "le", "los", "ul", "al", "da", "el", "vom", "Vom", "auf", "Auf",
	"des", "di", "dos", "du", "ten", "ter", "van't", "Van't", "of", "het",
	"the", "af", "til", "zu", "do", "das", "Sri", "Si", "della", "Della",
	"degli", "Degli", "Mc", "Mac", "und", "on", "in't", "i", "ka", "t",
	"bin",
}

var defaultEntities = []EntitySpec{
	{Tag: "article", Fields: []string{"author", "ee", "journal", "number", "pages", "title", "url", "volume", "year"}},
	{Tag: "book", Fields: []string{"author", "ee", "isbn", "pages", "publisher", "series", "title", "volume", "year"}},
	{Tag: "inproceedings", Fields: []string{"author", "booktitle", "crossref", "ee", "pages", "title", "url", "year"}},
	{Tag: "proceedings", Fields: []string{"booktitle", "editor", "ee", "isbn", "publisher", "series", "title", "url", "volume", "year"}},
	{Tag: "incollection", Fields: []string{"author", "booktitle", "crossref", "ee", "pages", "title", "url", "year"}},
	{Tag: "phdthesis", Fields: []string{"author", "ee", "isbn", "pages", "school", "title", "year"}},
	{Tag: "mastersthesis", Fields: []string{"author", "ee", "note", "school", "title", "year"}},
	{Tag: "www", Fields: []string{"author", "note", "title", "url"}},
}

// DefaultSettings returns the compiled-in settings.
func DefaultSettings() Settings {
	entities := make([]EntitySpec, len(defaultEntities))
	for i, e := range defaultEntities {
		entities[i] = EntitySpec{Tag: e.Tag, Fields: append([]string(nil), e.Fields...)}
	}
	return Settings{
		NobiliaryParticles: append([]string(nil), defaultParticles...),
		OrcidToken:         "orcid.org",
		ScholarToken:       "scholar.google.com",
		HomePageTitle:      "Home Page",
		Entities:           entities,
	}
}

// LoadSettings reads a YAML settings file over the defaults.
// An empty path returns the defaults unchanged.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	var override Settings
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}

	if len(override.NobiliaryParticles) > 0 {
		settings.NobiliaryParticles = override.NobiliaryParticles
	}
	if override.OrcidToken != "" {
		settings.OrcidToken = override.OrcidToken
	}
	if override.ScholarToken != "" {
		settings.ScholarToken = override.ScholarToken
	}
	if override.HomePageTitle != "" {
		settings.HomePageTitle = override.HomePageTitle
	}
	if len(override.Entities) > 0 {
		settings.Entities = override.Entities
	}

	return settings, settings.Validate()
}

// Validate checks that the entity declarations are usable.
func (s Settings) Validate() error {
	seen := make(map[string]bool)
	for _, e := range s.Entities {
		if e.Tag == "" {
			return fmt.Errorf("entity declaration without tag")
		}
		if seen[e.Tag] {
			return fmt.Errorf("entity %q declared twice", e.Tag)
		}
		seen[e.Tag] = true
	}
	return nil
}

// EntityFields returns the declarations as a tag → fields map.
func (s Settings) EntityFields() map[string][]string {
	m := make(map[string][]string, len(s.Entities))
	for _, e := range s.Entities {
		m[e.Tag] = e.Fields
	}
	return m
}
