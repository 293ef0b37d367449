package jsonl

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type row struct {
	ID    int      `json:"id"`
	Names []string `json:"names,omitempty"`
}

func writeAll[T any](path string, values []T) error {
	w, err := Create[T](path)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := w.Write(v); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func readAll[T any](path string) ([]T, error) {
	var values []T
	err := Each(path, func(v T) error {
		values = append(values, v)
		return nil
	})
	return values, err
}

func TestWriteEachRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rows.jsonl")
	want := []row{{ID: 1, Names: []string{"a & b"}}, {ID: 2}}

	if err := writeAll(path, want); err != nil {
		t.Fatalf("writeAll() error = %v", err)
	}

	got, err := readAll[row](path)
	if err != nil {
		t.Fatalf("readAll() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("readAll() returned %d rows, want 2", len(got))
	}
	if got[0].ID != 1 || got[0].Names[0] != "a & b" || got[1].ID != 2 {
		t.Errorf("readAll() = %+v", got)
	}
}

func TestEach_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	got, err := readAll[row](path)
	if err != nil {
		t.Fatalf("readAll() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("readAll() returned %d rows, want 0", len(got))
	}
}

func TestEach_MissingFile(t *testing.T) {
	if _, err := readAll[row](filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("readAll() expected error for missing file")
	}
}

func TestEach_SkipsBlankLinesAndReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	content := "{\"id\":1}\n\n{\"id\":2}\nnot json\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	var seen []int
	err := Each(path, func(r row) error {
		seen = append(seen, r.ID)
		return nil
	})
	if err == nil {
		t.Fatal("Each() expected parse error")
	}
	if len(seen) != 2 {
		t.Errorf("Each() visited %v before failing, want [1 2]", seen)
	}
}

func TestEach_StopsOnCallbackError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	if err := writeAll(path, []row{{ID: 1}, {ID: 2}}); err != nil {
		t.Fatalf("writeAll() error = %v", err)
	}

	stop := errors.New("stop")
	calls := 0
	err := Each(path, func(row) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Each() error = %v, want stop", err)
	}
	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
}

func TestWriter_Count(t *testing.T) {
	w, err := Create[row](filepath.Join(t.TempDir(), "rows.jsonl"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i := range 3 {
		if err := w.Write(row{ID: i}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if w.Count() != 3 {
		t.Errorf("Count() = %d, want 3", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
