package storage

import (
	"fmt"
	"strings"
)

// Author positions accepted by FactFilter.
const (
	PositionAny    = "any"
	PositionFirst  = "first"
	PositionMiddle = "middle"
	PositionLast   = "last"
)

// FactFilter selects fact rows. Empty lists and zero years do not constrain.
// Values within one list are alternatives; different fields must all match.
type FactFilter struct {
	Venues           []string
	Countries        []string
	Continents       []string
	PublicationTypes []string
	ResearchAreas    []string
	Position         string // any, first, middle or last
	YearFrom         int
	YearTo           int
}

// YearCount is the number of distinct publications per year with at least
// one matching authorship, in total and per author gender.
type YearCount struct {
	Year    int `json:"year"`
	Total   int `json:"total"`
	Woman   int `json:"woman"`
	Man     int `json:"man"`
	Neutral int `json:"neutral"`
	Unknown int `json:"unknown"`
}

// GenderCountsByYear answers the dashboard's filter query.
func (d *DB) GenderCountsByYear(f FactFilter) ([]YearCount, error) {
	where := []string{"year IS NOT NULL"}
	var args []any

	in := func(col string, values []string) {
		if len(values) == 0 {
			return
		}
		where = append(where, col+" IN (?"+strings.Repeat(", ?", len(values)-1)+")")
		for _, v := range values {
			args = append(args, v)
		}
	}
	in("venue", f.Venues)
	in("country", f.Countries)
	in("continent", f.Continents)
	in("publication_type", f.PublicationTypes)
	in("research_area", f.ResearchAreas)

	switch f.Position {
	case "", PositionAny:
	case PositionFirst:
		where = append(where, "position = 1")
	case PositionLast:
		where = append(where, "position = author_count")
	case PositionMiddle:
		where = append(where, "position > 1 AND position < author_count")
	default:
		return nil, fmt.Errorf("unknown author position %q", f.Position)
	}

	if f.YearFrom > 0 {
		where = append(where, "year >= ?")
		args = append(args, f.YearFrom)
	}
	if f.YearTo > 0 {
		where = append(where, "year <= ?")
		args = append(args, f.YearTo)
	}

	query := `
		SELECT year,
			COUNT(DISTINCT publication_id),
			COUNT(DISTINCT CASE WHEN gender = 'woman' THEN publication_id END),
			COUNT(DISTINCT CASE WHEN gender = 'man' THEN publication_id END),
			COUNT(DISTINCT CASE WHEN gender = 'neutral' THEN publication_id END),
			COUNT(DISTINCT CASE WHEN gender = 'unknown' THEN publication_id END)
		FROM fact_authorship
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY year
		ORDER BY year`

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying gender counts: %w", err)
	}
	defer rows.Close()

	var counts []YearCount
	for rows.Next() {
		var c YearCount
		if err := rows.Scan(&c.Year, &c.Total, &c.Woman, &c.Man, &c.Neutral, &c.Unknown); err != nil {
			return nil, fmt.Errorf("scanning gender counts: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
