package storage

import "fmt"

// RowWriter receives exported rows; *csv.Writer satisfies it.
type RowWriter interface {
	Write(record []string) error
}

// ExportTables lists the tables exported as CSV, with their row order.
var ExportTables = []struct {
	Name    string
	OrderBy string
}{
	{TableCountry, "code"},
	{TableAffiliation, "affiliation_id"},
	{TableGenderReference, "first_name"},
	{TableAuthor, "author_id"},
	{TableAlternativeName, "id"},
	{TableVenue, "venue_id"},
	{TablePublication, "publication_id"},
	{TablePublicationAuthor, "publication_id, position"},
	{TableStatistics, "rowid"},
}

// WriteTable streams one table to w, header first. NULL is written as "".
func (d *DB) WriteTable(table, orderBy string, w RowWriter) (int, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}

	rows, err := d.db.Query("SELECT * FROM " + table + " ORDER BY " + orderBy)
	if err != nil {
		return 0, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("writing %s header: %w", table, err)
	}

	n := 0
	for rows.Next() {
		vals, err := scanStrings(rows, len(header))
		if err != nil {
			return n, fmt.Errorf("scanning %s: %w", table, err)
		}
		if err := w.Write(vals); err != nil {
			return n, fmt.Errorf("writing %s row: %w", table, err)
		}
		n++
	}
	return n, rows.Err()
}
