package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the format of the Date statistic.
const DateLayout = "2006-01-02 15:04:05"

// Statistic is one named value shown on the dashboard.
type Statistic struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var scalarStatistics = []struct {
	name  string
	query string
}{
	{"PublicationCount", `SELECT COUNT(*) FROM publication`},
	{"AuthorCount", `SELECT COUNT(*) FROM author`},
	{"AffiliationCount", `SELECT COUNT(*) FROM affiliation`},
	{"VenueCount", `SELECT COUNT(*) FROM venue`},
	{"PublicationAuthorCount", `SELECT COUNT(*) FROM publication_author`},
	{"FemaleAuthorCount", `SELECT COUNT(*) FROM author WHERE gender = 'woman'`},
	{"MaleAuthorCount", `SELECT COUNT(*) FROM author WHERE gender = 'man'`},
	{"NeutralAuthorCount", `SELECT COUNT(*) FROM author WHERE gender = 'neutral'`},
	{"UnknownAuthorCount", `SELECT COUNT(*) FROM author WHERE gender = 'unknown'`},
	{"AuthorCountWithCountry", `SELECT COUNT(*) FROM author a
		INNER JOIN affiliation af ON af.affiliation_id = a.affiliation_id
		WHERE af.country_code IS NOT NULL`},
	{"AuthorCountWithoutCountry", `SELECT COUNT(*) FROM author a
		INNER JOIN affiliation af ON af.affiliation_id = a.affiliation_id
		WHERE af.country_code IS NULL`},
}

// continentGenders names the per-continent author counts.
var continentGenders = []struct {
	label  string
	gender string
}{
	{"Female", "woman"},
	{"Male", "man"},
	{"Unknown", "unknown"},
}

// ComputeStatistics derives the dashboard statistics from the populated
// tables. Per-continent counts are named like "NorthAmericaFemaleAuthorCount".
func (d *DB) ComputeStatistics(buildID string, now time.Time) ([]Statistic, error) {
	var stats []Statistic
	for _, s := range scalarStatistics {
		var n int64
		if err := d.db.QueryRow(s.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("computing %s: %w", s.name, err)
		}
		stats = append(stats, Statistic{Name: s.name, Value: strconv.FormatInt(n, 10)})
	}

	perContinent, err := d.continentCounts()
	if err != nil {
		return nil, err
	}
	stats = append(stats, perContinent...)

	stats = append(stats,
		Statistic{Name: "Date", Value: now.Format(DateLayout)},
		Statistic{Name: "BuildID", Value: buildID},
	)
	return stats, nil
}

func (d *DB) continentCounts() ([]Statistic, error) {
	rows, err := d.db.Query(`SELECT DISTINCT continent FROM country ORDER BY continent`)
	if err != nil {
		return nil, fmt.Errorf("listing continents: %w", err)
	}
	var continents []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return nil, err
		}
		continents = append(continents, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stmt, err := d.db.Prepare(`
		SELECT COUNT(*) FROM author a
		INNER JOIN affiliation af ON af.affiliation_id = a.affiliation_id
		INNER JOIN country c ON c.code = af.country_code
		WHERE c.continent = ? AND a.gender = ?`)
	if err != nil {
		return nil, fmt.Errorf("preparing continent count: %w", err)
	}
	defer stmt.Close()

	var stats []Statistic
	for _, continent := range continents {
		prefix := strings.ReplaceAll(continent, " ", "")
		for _, g := range continentGenders {
			var n int64
			if err := stmt.QueryRow(continent, g.gender).Scan(&n); err != nil {
				return nil, fmt.Errorf("counting %s authors in %s: %w", g.gender, continent, err)
			}
			stats = append(stats, Statistic{
				Name:  prefix + g.label + "AuthorCount",
				Value: strconv.FormatInt(n, 10),
			})
		}
	}
	return stats, nil
}

// WriteStatistics replaces the statistics table.
func (d *DB) WriteStatistics(stats []Statistic) error {
	return replaceAll(d, TableStatistics,
		`INSERT INTO general_statistics (name, value) VALUES (?, ?)`,
		stats, func(s Statistic) []any {
			return []any{s.Name, s.Value}
		})
}

// Statistics returns the persisted statistics in insertion order.
func (d *DB) Statistics() ([]Statistic, error) {
	rows, err := d.db.Query(`SELECT name, value FROM general_statistics ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying statistics: %w", err)
	}
	defer rows.Close()

	var stats []Statistic
	for rows.Next() {
		var s Statistic
		if err := rows.Scan(&s.Name, &s.Value); err != nil {
			return nil, fmt.Errorf("scanning statistic: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// FilterList is the distinct values of one filterable dimension.
type FilterList struct {
	Name   string
	Header []string
	Rows   [][]string
}

var filterQueries = []struct {
	name  string
	query string
}{
	{"PublicationTypes", `SELECT DISTINCT publication_type AS PublicationType FROM fact_authorship ORDER BY 1`},
	{"Venues", `SELECT DISTINCT venue AS Venue FROM fact_authorship ORDER BY 1`},
	{"Countries", `SELECT DISTINCT country AS Country, continent AS Continent FROM fact_authorship ORDER BY 1`},
	{"Continents", `SELECT DISTINCT continent AS Continent FROM fact_authorship ORDER BY 1`},
	{"ResearchAreas", `SELECT DISTINCT research_area AS ResearchArea FROM fact_authorship
		WHERE research_area IS NOT NULL ORDER BY 1`},
}

// FilterLists returns the distinct filter values of the fact table.
func (d *DB) FilterLists() ([]FilterList, error) {
	lists := make([]FilterList, 0, len(filterQueries))
	for _, f := range filterQueries {
		header, rows, err := d.queryStrings(f.query)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", f.name, err)
		}
		lists = append(lists, FilterList{Name: f.name, Header: header, Rows: rows})
	}
	return lists, nil
}

// queryStrings runs a query and returns its column names and rows, with
// NULL as "".
func (d *DB) queryStrings(query string, args ...any) ([]string, [][]string, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		vals, err := scanStrings(rows, len(header))
		if err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}
	return header, out, rows.Err()
}

func scanStrings(rows *sql.Rows, n int) ([]string, error) {
	cells := make([]sql.NullString, n)
	dest := make([]any, n)
	for i := range cells {
		dest[i] = &cells[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	vals := make([]string, n)
	for i, c := range cells {
		vals[i] = c.String
	}
	return vals, nil
}
