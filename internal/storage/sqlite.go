// Package storage persists the resolved dataset in SQLite.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Table names, in dependency order.
const (
	TableCountry           = "country"
	TableAffiliation       = "affiliation"
	TableGenderReference   = "gender_reference"
	TableAuthor            = "author"
	TableAlternativeName   = "author_alternative_name"
	TableVenue             = "venue"
	TablePublication       = "publication"
	TablePublicationAuthor = "publication_author"
	TableFact              = "fact_authorship"
	TableStatistics        = "general_statistics"
)

// tables lists every table in creation order; drops run in reverse.
var tables = []string{
	TableCountry,
	TableAffiliation,
	TableGenderReference,
	TableAuthor,
	TableAlternativeName,
	TableVenue,
	TablePublication,
	TablePublicationAuthor,
	TableFact,
	TableStatistics,
}

// OpenDB opens or creates a SQLite database at the given path.
// The schema is created by Reset.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single connection: pragmas set by Reset stay in effect, and the
	// pipeline is the only writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Reset drops every table and index and recreates the empty schema.
// Foreign keys are switched off for the drop, which would otherwise check
// every referencing row, and switched on before the schema is recreated.
func (d *DB) Reset() error {
	if _, err := d.db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disabling foreign keys: %w", err)
	}
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := d.db.Exec("DROP TABLE IF EXISTS " + tables[i]); err != nil {
			return fmt.Errorf("dropping %s: %w", tables[i], err)
		}
	}
	if _, err := d.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	if err := createSchema(d.db); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// ForeignKeysEnabled reports whether foreign key enforcement is on.
func (d *DB) ForeignKeysEnabled() (bool, error) {
	var on int
	if err := d.db.QueryRow("PRAGMA foreign_keys").Scan(&on); err != nil {
		return false, err
	}
	return on == 1, nil
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS country (
			code TEXT PRIMARY KEY NOT NULL,
			display_name TEXT NOT NULL,
			continent TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS affiliation (
			affiliation_id INTEGER PRIMARY KEY,
			full_text TEXT NOT NULL UNIQUE,
			country_code TEXT REFERENCES country(code)
		);

		-- Deduplicated output of the gender service
		CREATE TABLE IF NOT EXISTS gender_reference (
			first_name TEXT PRIMARY KEY NOT NULL,
			ga_first_name TEXT,
			ga_gender TEXT,
			ga_accuracy INTEGER,
			ga_samples INTEGER
		);

		CREATE TABLE IF NOT EXISTS author (
			author_id TEXT PRIMARY KEY NOT NULL,
			canonical_name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			orcid_page TEXT,
			scholar_page TEXT,
			homepages TEXT,
			affiliation_id INTEGER REFERENCES affiliation(affiliation_id),
			gender TEXT NOT NULL CHECK (gender IN ('woman', 'man', 'neutral', 'unknown')),
			gender_source_name TEXT,
			CHECK (type != 'group' OR (gender = 'unknown' AND gender_source_name IS NULL))
		);

		CREATE TABLE IF NOT EXISTS author_alternative_name (
			id INTEGER PRIMARY KEY,
			canonical_name TEXT NOT NULL REFERENCES author(canonical_name),
			alternative_name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS venue (
			venue_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			research_area TEXT,
			UNIQUE (type, name)
		);

		CREATE TABLE IF NOT EXISTS publication (
			publication_id TEXT PRIMARY KEY NOT NULL,
			title TEXT NOT NULL,
			venue_id INTEGER REFERENCES venue(venue_id),
			type TEXT NOT NULL,
			publication_subtype TEXT,
			year INTEGER,
			pages TEXT,
			author_count INTEGER NOT NULL CHECK (author_count >= 0)
		);

		CREATE TABLE IF NOT EXISTS publication_author (
			publication_id TEXT NOT NULL REFERENCES publication(publication_id),
			canonical_name TEXT NOT NULL REFERENCES author(canonical_name),
			position INTEGER NOT NULL CHECK (position >= 1),
			PRIMARY KEY (publication_id, canonical_name)
		);

		-- One row per authorship, pre-joined for the dashboard queries
		CREATE TABLE IF NOT EXISTS fact_authorship (
			publication_id TEXT NOT NULL,
			publication_type TEXT NOT NULL,
			author_id TEXT NOT NULL,
			venue TEXT NOT NULL,
			affiliation_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			gender TEXT NOT NULL,
			year INTEGER,
			author_count INTEGER NOT NULL,
			country TEXT NOT NULL,
			continent TEXT NOT NULL,
			research_area TEXT
		);

		CREATE TABLE IF NOT EXISTS general_statistics (
			name TEXT PRIMARY KEY NOT NULL,
			value TEXT NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// replaceAll empties table and inserts rows in one transaction.
func replaceAll[T any](d *DB, table, insert string, rows []T, args func(T) []any) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning %s transaction: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}

	stmt, err := tx.Prepare(insert)
	if err != nil {
		return fmt.Errorf("preparing %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.Exec(args(row)...); err != nil {
			return fmt.Errorf("inserting %s row %d: %w", table, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", table, err)
	}
	return nil
}

// Count returns the number of rows in a table.
func (d *DB) Count(table string) (int, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
	return count, err
}

func knownTable(name string) bool {
	for _, t := range tables {
		if t == name {
			return true
		}
	}
	return false
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableID converts an ID to sql.NullInt64, treating 0 as NULL.
func nullableID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

// nullableInt converts an int to sql.NullInt64, treating values below zero
// (and zero, when zeroIsNull) as NULL.
func nullableInt(n int, zeroIsNull bool) sql.NullInt64 {
	if n < 0 || (zeroIsNull && n == 0) {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
