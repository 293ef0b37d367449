package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matsen/gap/internal/config"
	"github.com/matsen/gap/internal/dblp"
	"github.com/matsen/gap/internal/gender"
	"github.com/matsen/gap/internal/refdata"
	"github.com/matsen/gap/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testDump = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE dblp SYSTEM "dblp.dtd">
<dblp>
<www key="homepages/d/JaneADoe">
<author>Jane A. Doe</author>
<author>J. A. Doe</author>
<title>Home Page</title>
<note type="affiliation">Computer Science Dept., Stanford University, USA</note>
<url>https://orcid.org/0000-0001</url>
</www>
<www key="homepages/s/JohnSmith">
<author>John Smith</author>
<title>Home Page</title>
<note type="affiliation">Inst. f&uuml;r Informatik, Berlin</note>
</www>
<www key="homepages/m/MaxMuster">
<author>Max Muster</author>
<title>Home Page</title>
<note>TU Munich, Germany</note>
</www>
<www key="homepages/g/Group" publtype="group">
<author>Test Group</author>
<title>Home Page</title>
</www>
<inproceedings key="conf/icse/DoeSM20">
<author>J. A. Doe</author>
<author>John Smith</author>
<author>Max Muster</author>
<title>Paper One.</title>
<booktitle>ICSE</booktitle>
<year>2020</year>
</inproceedings>
<article key="journals/tse/Doe21">
<author>Jane A. Doe</author>
<author>Nobody Known</author>
<title>Paper Two.</title>
<journal>IEEE Trans. Software Eng.</journal>
<year>2021</year>
</article>
</dblp>
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// setupTestConfig writes a complete set of inputs and returns a config
// pointing at them.
func setupTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref")

	writeFile(t, filepath.Join(dir, "dblp.xml"), testDump)
	writeFile(t, filepath.Join(ref, refdata.VariantsFile), "Country,Code\nUSA,US\nGermany,DE\n")
	writeFile(t, filepath.Join(ref, refdata.CountriesFile), "Country,Code\nUnited States,US\nGermany,DE\n")
	writeFile(t, filepath.Join(ref, refdata.ContinentsFile), "Code,Continent\nUS,North America\nDE,Europe\n")
	writeFile(t, filepath.Join(ref, refdata.ResearchAreasFile),
		"Research Area,Venue,Alias(es)(; separated)\nSoftware Engineering,ICSE,IEEE Trans. Software Eng.\n")
	writeFile(t, filepath.Join(dir, "gender", "batch1.csv"),
		"first_name;ga_first_name;ga_gender;ga_accuracy;ga_samples\nJane;Jane;female;98;1000\nJohn;John;male;99;2000\n")

	return &config.Config{
		DBLPPath:     filepath.Join(dir, "dblp.xml"),
		ReferenceDir: ref,
		GenderPath:   filepath.Join(dir, "gender"),
		WorkDir:      filepath.Join(dir, "work"),
		DBPath:       filepath.Join(dir, "gap.db"),
		ExportDir:    filepath.Join(dir, "csv"),
		MetricsPath:  filepath.Join(dir, "gap.prom"),
		Settings:     config.DefaultSettings(),
	}
}

func openTestDB(t *testing.T, cfg *config.Config) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return rows
}

type recordingPublisher struct {
	dirs []string
}

func (p *recordingPublisher) PublishDir(ctx context.Context, dir string) (int, error) {
	p.dirs = append(p.dirs, dir)
	return 1, nil
}

func TestExecute_EndToEnd(t *testing.T) {
	cfg := setupTestConfig(t)
	db := openTestDB(t, cfg)

	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRun(cfg, db, zap.New(core))
	r.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	pub := &recordingPublisher{}
	r.Publisher = pub

	report, err := r.Execute(context.Background(), Stages())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(report.Stages) != len(Stages()) {
		t.Errorf("report has %d stages, want %d", len(report.Stages), len(Stages()))
	}

	counts := map[string]int{
		storage.TableCountry:           2,
		storage.TableAffiliation:       3,
		storage.TableGenderReference:   2,
		storage.TableAuthor:            4,
		storage.TableAlternativeName:   1,
		storage.TableVenue:             2,
		storage.TablePublication:       2,
		storage.TablePublicationAuthor: 4,
		// John has no country, Test Group wrote nothing
		storage.TableFact: 3,
	}
	for table, want := range counts {
		got, err := db.Count(table)
		if err != nil {
			t.Fatalf("Count(%s) error = %v", table, err)
		}
		if got != want {
			t.Errorf("Count(%s) = %d, want %d", table, got, want)
		}
	}

	affs, err := db.Affiliations()
	if err != nil {
		t.Fatalf("Affiliations() error = %v", err)
	}
	codes := make(map[string]string)
	for _, a := range affs {
		codes[a.FullText] = a.CountryCode
	}
	if codes["Computer Science Dept., Stanford University, USA"] != "US" {
		t.Errorf("Stanford affiliation country = %q, want US", codes["Computer Science Dept., Stanford University, USA"])
	}
	if code, ok := codes["Inst. für Informatik, Berlin"]; !ok || code != "" {
		t.Errorf("Berlin affiliation = %q (present %v), want present without country", code, ok)
	}

	found := false
	for _, e := range logs.FilterMessage("no country found for affiliation").All() {
		if strings.Contains(e.ContextMap()["affiliation"].(string), "Berlin") {
			found = true
		}
	}
	if !found {
		t.Error("expected a no-match warning for the Berlin affiliation")
	}

	unresolved := readCSV(t, cfg.DiagnosticsPath(config.UnresolvedAuthorsFile))
	if len(unresolved) != 2 || unresolved[1][1] != "Nobody Known" {
		t.Errorf("unresolved diagnostics = %v", unresolved)
	}
	firstNames := readCSV(t, cfg.UnknownFirstNamesPath())
	if len(firstNames) != 2 || firstNames[1][0] != "Max" {
		t.Errorf("unknown first names = %v, want [first_name] [Max]", firstNames)
	}

	stats, err := db.Statistics()
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	byName := make(map[string]string)
	for _, s := range stats {
		byName[s.Name] = s.Value
	}
	if byName["PublicationCount"] != "2" || byName["FemaleAuthorCount"] != "1" {
		t.Errorf("statistics = %v", byName)
	}
	if byName["BuildID"] != r.BuildID || byName["Date"] != "2024-05-01 12:00:00" {
		t.Errorf("BuildID/Date = %q/%q", byName["BuildID"], byName["Date"])
	}

	for _, path := range []string{
		filepath.Join(cfg.TablesPath(), "author.csv"),
		filepath.Join(cfg.FiltersPath(), "Venues.csv"),
		cfg.MetricsPath,
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected output %s: %v", path, err)
		}
	}
	if len(pub.dirs) != 1 || pub.dirs[0] != cfg.ExportDir {
		t.Errorf("published dirs = %v, want [%s]", pub.dirs, cfg.ExportDir)
	}
}

func TestExecute_Idempotent(t *testing.T) {
	cfg := setupTestConfig(t)
	db := openTestDB(t, cfg)

	exports := []string{"country.csv", "affiliation.csv", "venue.csv"}
	tables := []string{storage.TablePublication, storage.TableAuthor, storage.TablePublicationAuthor}

	var firstExports [][]byte
	var firstCounts []int
	for i := 0; i < 2; i++ {
		if _, err := NewRun(cfg, db, zap.NewNop()).Execute(context.Background(), Stages()); err != nil {
			t.Fatalf("run %d: Execute() error = %v", i+1, err)
		}

		for j, name := range exports {
			data, err := os.ReadFile(filepath.Join(cfg.TablesPath(), name))
			if err != nil {
				t.Fatalf("run %d: reading %s: %v", i+1, name, err)
			}
			if i == 0 {
				firstExports = append(firstExports, data)
			} else if !bytes.Equal(data, firstExports[j]) {
				t.Errorf("%s differs between runs:\nfirst:\n%s\nsecond:\n%s", name, firstExports[j], data)
			}
		}
		for j, table := range tables {
			n, err := db.Count(table)
			if err != nil {
				t.Fatalf("run %d: Count(%s) error = %v", i+1, table, err)
			}
			if i == 0 {
				firstCounts = append(firstCounts, n)
			} else if n != firstCounts[j] {
				t.Errorf("%s rows = %d after rebuild, want %d", table, n, firstCounts[j])
			}
		}
	}

	if firstCounts[2] != 4 {
		t.Errorf("publication_author rows = %d, want 4", firstCounts[2])
	}
}

func TestExecute_MalformedXML(t *testing.T) {
	cfg := setupTestConfig(t)
	writeFile(t, cfg.DBLPPath, "<dblp><www key=\"x\"><author>A</www></dblp>")
	db := openTestDB(t, cfg)

	_, err := NewRun(cfg, db, zap.NewNop()).Execute(context.Background(), Stages())
	if !errors.Is(err, dblp.ErrMalformedXML) {
		t.Errorf("Execute() error = %v, want ErrMalformedXML", err)
	}
}

func TestExecute_MissingReferenceFile(t *testing.T) {
	tests := []struct {
		name   string
		remove func(cfg *config.Config) string
		want   error
	}{
		{"continents", func(cfg *config.Config) string {
			return filepath.Join(cfg.ReferenceDir, refdata.ContinentsFile)
		}, refdata.ErrMissingReferenceFile},
		{"research areas", func(cfg *config.Config) string {
			return filepath.Join(cfg.ReferenceDir, refdata.ResearchAreasFile)
		}, refdata.ErrMissingReferenceFile},
		{"gender reference", func(cfg *config.Config) string {
			return cfg.GenderPath
		}, gender.ErrMissingReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := setupTestConfig(t)
			if err := os.RemoveAll(tt.remove(cfg)); err != nil {
				t.Fatal(err)
			}
			db := openTestDB(t, cfg)

			report, err := NewRun(cfg, db, zap.NewNop()).Execute(context.Background(), Stages())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.want)
			}
			if len(report.Stages) != 0 {
				t.Errorf("completed stages = %v, want none", report.Stages)
			}
			if _, err := os.Stat(cfg.RecordsPath("www")); !os.IsNotExist(err) {
				t.Errorf("records extracted despite missing input: %v", err)
			}
		})
	}
}
