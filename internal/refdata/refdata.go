// Package refdata loads the static reference tables: countries, continents,
// country name variants and research area aliases.
package refdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// ErrMissingReferenceFile is returned when a required reference file does not exist.
var ErrMissingReferenceFile = errors.New("missing reference file")

// File names inside the reference directory.
const (
	VariantsFile      = "country_name_variations.csv"
	CountriesFile     = "countries_unique.csv"
	ContinentsFile    = "continents.csv"
	ResearchAreasFile = "research_areas.csv"
)

// Files lists every file Load and LoadResearchAreas read from the
// reference directory.
var Files = []string{VariantsFile, CountriesFile, ContinentsFile, ResearchAreasFile}

// CheckFiles reports the first reference file missing from dir.
func CheckFiles(dir string) error {
	for _, name := range Files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrMissingReferenceFile, path)
			}
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}
	return nil
}

// Country is one canonical country with its continent.
type Country struct {
	Code        string // ISO 3166-1 alpha-2
	DisplayName string
	Continent   string
}

// Data is the loaded reference data. It is built once per run and passed to
// the resolvers; nothing in it changes after loading.
type Data struct {
	countries []Country
	variants  map[string][]string
}

// NewData builds reference data from in-memory tables. variants maps a free
// text country name to every code it is listed under.
func NewData(countries []Country, variants map[string][]string) *Data {
	sorted := append([]Country(nil), countries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	return &Data{countries: sorted, variants: variants}
}

// Countries returns the canonical countries sorted by code.
func (d *Data) Countries() []Country {
	return d.countries
}

// LookupCountry returns every code listed for the exact name.
// More than one code means the name is ambiguous.
func (d *Data) LookupCountry(name string) []string {
	return d.variants[name]
}

// Load reads the variant, country and continent tables from dir. Countries
// are joined with continents on the code; countries without a continent are
// dropped.
func Load(dir string) (*Data, error) {
	variantRows, err := readTable(filepath.Join(dir, VariantsFile), ',', "Country", "Code")
	if err != nil {
		return nil, err
	}
	countryRows, err := readTable(filepath.Join(dir, CountriesFile), ',', "Country", "Code")
	if err != nil {
		return nil, err
	}
	continentRows, err := readTable(filepath.Join(dir, ContinentsFile), ',', "Code", "Continent")
	if err != nil {
		return nil, err
	}

	variants := make(map[string][]string)
	for _, row := range variantRows {
		name, code := row[0], row[1]
		if name == "" || code == "" {
			continue
		}
		variants[name] = append(variants[name], code)
	}

	continents := make(map[string]string, len(continentRows))
	for _, row := range continentRows {
		continents[row[0]] = row[1]
	}

	seen := make(map[string]bool)
	var countries []Country
	for _, row := range countryRows {
		name, code := row[0], row[1]
		continent, ok := continents[code]
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		countries = append(countries, Country{Code: code, DisplayName: name, Continent: continent})
	}

	return NewData(countries, variants), nil
}

// AreaAlias assigns a research area to one venue name or alias.
type AreaAlias struct {
	Area  string
	Venue string
}

// LoadResearchAreas reads the research area table. Every row yields its
// venue followed by each of its semicolon-separated aliases.
func LoadResearchAreas(path string) ([]AreaAlias, error) {
	rows, err := readTable(path, ',', "Research Area", "Venue", "Alias(es)(; separated)")
	if err != nil {
		return nil, err
	}

	var aliases []AreaAlias
	for _, row := range rows {
		area := strings.TrimLeftFunc(row[0], unicode.IsSpace)
		if area == "" {
			continue
		}
		names := []string{row[1]}
		if row[2] != "" {
			names = append(names, strings.Split(row[2], ";")...)
		}
		for _, name := range names {
			name = strings.TrimLeftFunc(name, unicode.IsSpace)
			if name == "" {
				continue
			}
			aliases = append(aliases, AreaAlias{Area: area, Venue: name})
		}
	}
	return aliases, nil
}

// readTable reads the named columns of a CSV file with a header row.
// Values are kept verbatim: "NA" is Namibia, not a missing value.
func readTable(path string, comma rune, columns ...string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingReferenceFile, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	index, err := columnIndex(header, columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		row := make([]string, len(columns))
		for i, col := range index {
			if col < len(record) {
				row[i] = record[col]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func columnIndex(header, columns []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	index := make([]int, len(columns))
	for i, c := range columns {
		p, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
		index[i] = p
	}
	return index, nil
}
