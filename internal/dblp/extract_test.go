package dblp

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/gap/internal/jsonl"
	"go.uber.org/zap"
)

const sampleDump = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE dblp SYSTEM "dblp.dtd">
<dblp>
<article key="journals/x/Doe20" mdate="2020-01-01" publtype="informal">
<author orcid="0000-0001">Jane A. Doe</author>
<author>J&uuml;rgen M&uuml;ller</author>
<author></author>
<title>On <i>Typed</i> Values<sub>2</sub></title>
<journal>J. Test</journal>
<year>2020</year>
<cdrom>ignored</cdrom>
</article>
<phdthesis key="phd/Roe21">
<author>Richard Roe</author>
<year>2020</year>
<year>2021</year>
</phdthesis>
<data key="data/skipped"><title>Skipped</title></data>
<www key="homepages/00/1" title="Home Page">
<url>https://example.org</url>
</www>
<www key="homepages/00/2"></www>
</dblp>
`

func readRecords(path string) ([]Record, error) {
	var recs []Record
	err := jsonl.Each(path, func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	return recs, err
}

func testExtractor() *Extractor {
	return NewExtractor(map[string][]string{
		"article":   {"author", "title", "journal", "year"},
		"phdthesis": {"author", "year"},
		"www":       {"author", "title"},
	}, zap.NewNop())
}

func extractAll(t *testing.T, e *Extractor, doc string) ([]Record, map[string]int) {
	t.Helper()
	var recs []Record
	counts, err := e.Extract(strings.NewReader(doc), func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	return recs, counts
}

func TestExtract_Records(t *testing.T) {
	recs, counts := extractAll(t, testExtractor(), sampleDump)

	if len(recs) != 4 {
		t.Fatalf("Extract() emitted %d records, want 4", len(recs))
	}
	if counts["article"] != 1 || counts["phdthesis"] != 1 || counts["www"] != 2 {
		t.Errorf("counts = %v", counts)
	}

	article := recs[0]
	if article.Key() != "journals/x/Doe20" || article.Attr("publtype") != "informal" {
		t.Errorf("article attrs = %v", article.Attrs)
	}

	authors := article.Field("author")
	if len(authors) != 2 {
		t.Fatalf("authors = %+v, want 2 (empty author skipped)", authors)
	}
	if authors[0].Text != "Jane A. Doe" || authors[0].Attr("orcid") != "0000-0001" {
		t.Errorf("authors[0] = %+v", authors[0])
	}
	if authors[1].Text != "Jürgen Müller" || authors[1].HasAttrs() {
		t.Errorf("authors[1] = %+v", authors[1])
	}
	if got := article.Field("title").First().Text; got != "On Typed Values2" {
		t.Errorf("title = %q, want markup stripped", got)
	}
	if article.Field("cdrom") != nil {
		t.Error("undeclared sub-field was captured")
	}

	thesis := recs[1]
	if got := thesis.Field("year").Joined(); got != "2020\n2021" {
		t.Errorf("thesis years = %q", got)
	}

	// Undeclared sub-fields and empty elements yield attribute-only records
	if recs[2].Fields != nil || recs[2].Attr("title") != "Home Page" {
		t.Errorf("www 1 = %+v", recs[2])
	}
	if recs[3].Key() != "homepages/00/2" || recs[3].Fields != nil {
		t.Errorf("www 2 = %+v", recs[3])
	}
}

func TestExtract_DirectTextOnly(t *testing.T) {
	doc := `<dblp><www key="k"><author>Jane<sup>x</sup> Doe</author><title>A<b>B</b>C</title></www></dblp>`
	recs, _ := extractAll(t, testExtractor(), doc)

	if got := recs[0].Field("author").First().Text; got != "Jane" {
		t.Errorf("author = %q, want leading text only", got)
	}
	if got := recs[0].Field("title").First().Text; got != "ABC" {
		t.Errorf("title = %q, want nested text", got)
	}
}

func TestExtract_Latin1(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<dblp><www key=\"k\"><author>J\xfcrgen</author></www></dblp>"
	recs, _ := extractAll(t, testExtractor(), doc)

	if got := recs[0].Field("author").First().Text; got != "Jürgen" {
		t.Errorf("author = %q, want Jürgen", got)
	}
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unclosed record", `<dblp><article key="a"><author>X</author>`},
		{"mismatched tag", `<dblp><article key="a"><author>X</title></article></dblp>`},
		{"unknown entity", `<dblp><article key="a"><author>&nope;</author></article></dblp>`},
		{"empty input", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testExtractor().Extract(strings.NewReader(tt.doc), func(Record) error { return nil })
			if !errors.Is(err, ErrMalformedXML) {
				t.Errorf("Extract() error = %v, want ErrMalformedXML", err)
			}
		})
	}
}

func TestExtract_EmitErrorAborts(t *testing.T) {
	stop := errors.New("disk full")
	_, err := testExtractor().Extract(strings.NewReader(sampleDump), func(Record) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("Extract() error = %v, want emit error", err)
	}
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "dblp.xml")
	if err := os.WriteFile(src, []byte(sampleDump), 0644); err != nil {
		t.Fatalf("Failed to write dump: %v", err)
	}

	e := NewExtractor(map[string][]string{
		"article":       {"author", "title"},
		"mastersthesis": {"author"},
	}, zap.NewNop())
	pathFor := func(tag string) string { return filepath.Join(dir, "work", tag+".jsonl") }

	counts, err := e.ExtractFile(src, pathFor)
	if err != nil {
		t.Fatalf("ExtractFile() error = %v", err)
	}
	if counts["article"] != 1 {
		t.Errorf("counts = %v", counts)
	}

	articles, err := readRecords(pathFor("article"))
	if err != nil {
		t.Fatalf("reading records: %v", err)
	}
	if len(articles) != 1 || articles[0].Field("author")[0].Attr("orcid") != "0000-0001" {
		t.Errorf("articles = %+v", articles)
	}

	// Declared tags without matches still get an empty file
	theses, err := readRecords(pathFor("mastersthesis"))
	if err != nil {
		t.Fatalf("reading records: %v", err)
	}
	if len(theses) != 0 {
		t.Errorf("mastersthesis records = %d, want 0", len(theses))
	}
}

func TestField_Helpers(t *testing.T) {
	var empty Field
	if empty.First().Text != "" || empty.Joined() != "" {
		t.Error("empty field helpers should return zero values")
	}

	f := Field{{Text: "a"}, {Text: "b", Attrs: map[string]string{"type": "archived"}}}
	if f.Joined() != "a\nb" {
		t.Errorf("Joined() = %q", f.Joined())
	}
	if !f[1].HasAttrs() || f[1].Attr("type") != "archived" || f[0].Attr("type") != "" {
		t.Error("attribute helpers mismatch")
	}
}
