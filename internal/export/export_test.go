package export

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/matsen/gap/internal/config"
	"github.com/matsen/gap/internal/publication"
	"github.com/matsen/gap/internal/storage"
	"go.uber.org/zap"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse %s: %v", path, err)
	}
	return rows
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	rows := [][]string{{"Namibia", "NA"}, {"a, b", "line\nbreak"}}

	if err := WriteCSV(path, []string{"Country", "Code"}, rows); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := append([][]string{{"Country", "Code"}}, rows...)
	if got := readCSV(t, path); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

type fakeTables map[string][][]string

func (f fakeTables) WriteTable(table, orderBy string, w storage.RowWriter) (int, error) {
	rows, ok := f[table]
	if !ok {
		return 0, errors.New("no such table")
	}
	if err := w.Write([]string{"col"}); err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func TestTables(t *testing.T) {
	tables := fakeTables{}
	for _, et := range storage.ExportTables {
		tables[et.Name] = [][]string{{et.Name}}
	}
	tables[storage.TableAuthor] = [][]string{{"a1"}, {"a2"}}

	dir := t.TempDir()
	counts, err := Tables(tables, dir)
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if counts[storage.TableAuthor] != 2 {
		t.Errorf("author count = %d, want 2", counts[storage.TableAuthor])
	}
	got := readCSV(t, filepath.Join(dir, "author.csv"))
	if !reflect.DeepEqual(got, [][]string{{"col"}, {"a1"}, {"a2"}}) {
		t.Errorf("author.csv = %v", got)
	}
}

func TestDiagnostics(t *testing.T) {
	dir := t.TempDir()

	conflicts := filepath.Join(dir, "conflicts.csv")
	if err := Conflicts(conflicts, []publication.Conflict{{PublicationID: "p1", AuthorText: "J. Doe", CanonicalName: "Jane Doe", Position: 3}}); err != nil {
		t.Fatalf("Conflicts() error = %v", err)
	}
	if got := readCSV(t, conflicts); got[1][3] != "3" || got[0][2] != "canonical_name" {
		t.Errorf("conflicts.csv = %v", got)
	}

	unresolved := filepath.Join(dir, "unresolved.csv")
	if err := Unresolved(unresolved, nil); err != nil {
		t.Fatalf("Unresolved() error = %v", err)
	}
	if got := readCSV(t, unresolved); len(got) != 1 {
		t.Errorf("unresolved.csv = %v, want header only", got)
	}

	names := filepath.Join(dir, "first_names.csv")
	if err := FirstNames(names, []string{"Ada", "Xiu"}); err != nil {
		t.Fatalf("FirstNames() error = %v", err)
	}
	if got := readCSV(t, names); !reflect.DeepEqual(got, [][]string{{"first_name"}, {"Ada"}, {"Xiu"}}) {
		t.Errorf("first_names.csv = %v", got)
	}
}

func TestFilters(t *testing.T) {
	dir := t.TempDir()
	lists := []storage.FilterList{
		{Name: "Continents", Header: []string{"Continent"}, Rows: [][]string{{"Africa"}, {"Europe"}}},
	}
	if err := Filters(lists, dir); err != nil {
		t.Fatalf("Filters() error = %v", err)
	}
	if got := readCSV(t, filepath.Join(dir, "Continents.csv")); len(got) != 3 {
		t.Errorf("Continents.csv = %v", got)
	}
}

type fakePutter struct {
	keys  []string
	types map[string]string
	fail  bool
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail {
		return nil, errors.New("access denied")
	}
	if _, err := io.ReadAll(in.Body); err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.keys = append(f.keys, key)
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestPublishDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"db/author.csv", "filters/Venues.csv", "notes.txt"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	putter := &fakePutter{types: make(map[string]string)}
	p := NewPublisher(putter, config.S3Config{Bucket: "exports", Prefix: "gap/latest"}, zap.NewNop())

	n, err := p.PublishDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("PublishDir() error = %v", err)
	}
	if n != 3 {
		t.Errorf("PublishDir() = %d, want 3", n)
	}

	sort.Strings(putter.keys)
	want := []string{"gap/latest/db/author.csv", "gap/latest/filters/Venues.csv", "gap/latest/notes.txt"}
	if !reflect.DeepEqual(putter.keys, want) {
		t.Errorf("keys = %v, want %v", putter.keys, want)
	}
	if putter.types["gap/latest/db/author.csv"] != "text/csv" || putter.types["gap/latest/notes.txt"] != "" {
		t.Errorf("content types = %v", putter.types)
	}
}

func TestPublishDir_Error(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	p := NewPublisher(&fakePutter{fail: true}, config.S3Config{Bucket: "exports"}, zap.NewNop())

	if _, err := p.PublishDir(context.Background(), dir); err == nil {
		t.Error("PublishDir() expected upload error")
	}
}
