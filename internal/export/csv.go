// Package export writes the dataset, filter lists and diagnostics as CSV and
// optionally publishes the export directory to S3.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/matsen/gap/internal/publication"
	"github.com/matsen/gap/internal/storage"
)

// WriteCSV writes header and rows to path, creating parent directories.
func WriteCSV(path string, header []string, rows [][]string) error {
	return writeFile(path, func(w *csv.Writer) error {
		if err := w.Write(header); err != nil {
			return err
		}
		return w.WriteAll(rows)
	})
}

func writeFile(path string, fill func(*csv.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := fill(w); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

// TableWriter streams a database table into a row writer.
type TableWriter interface {
	WriteTable(table, orderBy string, w storage.RowWriter) (int, error)
}

// Tables writes one <table>.csv per exported table into dir and returns the
// row count of each.
func Tables(db TableWriter, dir string) (map[string]int, error) {
	counts := make(map[string]int, len(storage.ExportTables))
	for _, t := range storage.ExportTables {
		path := filepath.Join(dir, t.Name+".csv")
		err := writeFile(path, func(w *csv.Writer) error {
			n, err := db.WriteTable(t.Name, t.OrderBy, w)
			counts[t.Name] = n
			return err
		})
		if err != nil {
			return counts, err
		}
	}
	return counts, nil
}

// Filters writes one <name>.csv per filter list into dir.
func Filters(lists []storage.FilterList, dir string) error {
	for _, l := range lists {
		if err := WriteCSV(filepath.Join(dir, l.Name+".csv"), l.Header, l.Rows); err != nil {
			return err
		}
	}
	return nil
}

// Conflicts writes the authorships of duplicated (publication, author) pairs.
func Conflicts(path string, conflicts []publication.Conflict) error {
	rows := make([][]string, len(conflicts))
	for i, c := range conflicts {
		rows[i] = []string{c.PublicationID, c.AuthorText, c.CanonicalName, strconv.Itoa(c.Position)}
	}
	return WriteCSV(path, []string{"publication_id", "author", "canonical_name", "position"}, rows)
}

// Unresolved writes the listed authors that matched no author.
func Unresolved(path string, unresolved []publication.Unresolved) error {
	rows := make([][]string, len(unresolved))
	for i, u := range unresolved {
		rows[i] = []string{u.PublicationID, u.AuthorText, strconv.Itoa(u.Position)}
	}
	return WriteCSV(path, []string{"publication_id", "author", "position"}, rows)
}

// FirstNames writes first names to submit to the gender service.
func FirstNames(path string, names []string) error {
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	return WriteCSV(path, []string{"first_name"}, rows)
}
