// Package gender infers an author's gender from their first name using a
// name → gender reference table.
package gender

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Entry is one row of the reference table as delivered by the gender service.
type Entry struct {
	FirstName   string
	GaFirstName string
	GaGender    string // female, male, unknown or ""
	GaAccuracy  int    // -1 when absent
	GaSamples   int    // -1 when absent
}

// Table holds at most one entry per first name.
type Table struct {
	entries map[string]Entry
}

// NewTable deduplicates entries: exact repeats are dropped and, per first
// name, the entry with the most samples wins. Ties keep the earlier entry.
func NewTable(entries []Entry) *Table {
	t := &Table{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.FirstName == "" {
			continue
		}
		cur, ok := t.entries[e.FirstName]
		if !ok || e.GaSamples > cur.GaSamples {
			t.entries[e.FirstName] = e
		}
	}
	return t
}

// Lookup returns the entry for an exact first name.
func (t *Table) Lookup(firstName string) (Entry, bool) {
	e, ok := t.entries[firstName]
	return e, ok
}

// Len returns the number of distinct first names.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns all entries sorted by first name.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstName < out[j].FirstName })
	return out
}

// ErrMissingReference is returned when the gender reference path does not
// exist or is a directory without batches.
var ErrMissingReference = errors.New("missing gender reference")

// Batches returns the batch files at path: path itself, or the *.csv files
// of a directory sorted by name.
func Batches(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrMissingReference, path)
	}
	if err != nil {
		return nil, fmt.Errorf("gender reference: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := filepath.Glob(filepath.Join(path, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("listing gender batches: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no *.csv batches in %s", ErrMissingReference, path)
	}
	sort.Strings(files)
	return files, nil
}

// LoadTable reads one semicolon-separated batch file, or every *.csv batch
// in a directory. Batches are parsed concurrently and merged in file name
// order, so the result does not depend on scheduling.
func LoadTable(ctx context.Context, path string, logger *zap.Logger) (*Table, error) {
	files, err := Batches(path)
	if err != nil {
		return nil, err
	}

	batches := make([][]Entry, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := readBatch(file)
			if err != nil {
				return err
			}
			batches[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Entry
	for i, b := range batches {
		logger.Debug("read gender batch", zap.String("file", files[i]), zap.Int("rows", len(b)))
		all = append(all, b...)
	}

	table := NewTable(all)
	logger.Info("loaded gender reference",
		zap.Int("batches", len(files)),
		zap.Int("rows", len(all)),
		zap.Int("names", table.Len()))
	return table, nil
}

func readBatch(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gender batch: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := col["first_name"]; !ok {
		return nil, fmt.Errorf("%s: missing column first_name", path)
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var entries []Entry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		entries = append(entries, Entry{
			FirstName:   get(rec, "first_name"),
			GaFirstName: get(rec, "ga_first_name"),
			GaGender:    get(rec, "ga_gender"),
			GaAccuracy:  parseCount(get(rec, "ga_accuracy")),
			GaSamples:   parseCount(get(rec, "ga_samples")),
		})
	}
	return entries, nil
}

// parseCount parses an integer column, accepting the "12.0" form written by
// spreadsheet tools. Missing or invalid values become -1.
func parseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return -1
}
