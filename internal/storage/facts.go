package storage

import (
	"fmt"

	"github.com/matsen/gap/internal/refdata"
)

// FactColumns are the filterable columns of the fact table; each gets an index.
var FactColumns = []string{
	"publication_type",
	"venue",
	"position",
	"gender",
	"year",
	"country",
	"continent",
	"research_area",
}

// BuildFacts rebuilds the fact table by inner-joining publications with
// their authorships, authors, venues, affiliations and countries. Authors
// without a resolved affiliation country drop out here but stay in the
// author table.
func (d *DB) BuildFacts() (int64, error) {
	if _, err := d.db.Exec("DELETE FROM fact_authorship"); err != nil {
		return 0, fmt.Errorf("clearing fact table: %w", err)
	}

	res, err := d.db.Exec(`
		INSERT INTO fact_authorship (
			publication_id, publication_type, author_id, venue, affiliation_id,
			position, gender, year, author_count, country, continent
		)
		SELECT p.publication_id, p.type, a.author_id, v.name, a.affiliation_id,
			pa.position, a.gender, p.year, p.author_count, c.display_name, c.continent
		FROM publication p
		INNER JOIN publication_author pa ON pa.publication_id = p.publication_id
		INNER JOIN author a ON a.canonical_name = pa.canonical_name
		INNER JOIN venue v ON v.venue_id = p.venue_id
		INNER JOIN affiliation af ON af.affiliation_id = a.affiliation_id
		INNER JOIN country c ON c.code = af.country_code
		ORDER BY p.publication_id, pa.position
	`)
	if err != nil {
		return 0, fmt.Errorf("building fact table: %w", err)
	}
	return res.RowsAffected()
}

// AssignResearchAreas sets the research area of every fact row and venue
// whose venue name equals an alias. Aliases are applied in order, so a later
// alias for the same venue wins. It returns the number of aliases that
// matched at least one fact row.
func (d *DB) AssignResearchAreas(aliases []refdata.AreaAlias) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning research area transaction: %w", err)
	}
	defer tx.Rollback()

	factStmt, err := tx.Prepare(`UPDATE fact_authorship SET research_area = ? WHERE venue = ?`)
	if err != nil {
		return 0, fmt.Errorf("preparing fact update: %w", err)
	}
	defer factStmt.Close()

	venueStmt, err := tx.Prepare(`UPDATE venue SET research_area = ? WHERE name = ?`)
	if err != nil {
		return 0, fmt.Errorf("preparing venue update: %w", err)
	}
	defer venueStmt.Close()

	matched := 0
	for _, a := range aliases {
		res, err := factStmt.Exec(a.Area, a.Venue)
		if err != nil {
			return 0, fmt.Errorf("assigning %s to %s: %w", a.Area, a.Venue, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		matched++
		if _, err := venueStmt.Exec(a.Area, a.Venue); err != nil {
			return 0, fmt.Errorf("assigning %s to venue %s: %w", a.Area, a.Venue, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing research areas: %w", err)
	}
	return matched, nil
}

// CreateFactIndexes indexes every filterable column of the fact table.
func (d *DB) CreateFactIndexes() error {
	for _, col := range FactColumns {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_fact_%s ON fact_authorship(%s)", col, col)
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("indexing %s: %w", col, err)
		}
	}
	return nil
}
