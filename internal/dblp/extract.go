package dblp

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/matsen/gap/internal/jsonl"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

// ErrMalformedXML is returned when the dump cannot be tokenized.
var ErrMalformedXML = errors.New("malformed XML")

// titleField is the only sub-element whose nested markup is flattened into
// its text. Every other field keeps only its leading character data.
const titleField = "title"

// progressInterval throttles the progress log line.
const progressInterval = 10 * time.Second

// Extractor streams the dump and captures the declared sub-fields of each
// declared top-level element.
type Extractor struct {
	specs  map[string]map[string]bool
	tags   []string
	logger *zap.Logger
}

// NewExtractor creates an extractor for the given tag → sub-fields declarations.
func NewExtractor(specs map[string][]string, logger *zap.Logger) *Extractor {
	e := &Extractor{
		specs:  make(map[string]map[string]bool, len(specs)),
		logger: logger,
	}
	for tag, fields := range specs {
		set := make(map[string]bool, len(fields))
		for _, f := range fields {
			set[f] = true
		}
		e.specs[tag] = set
		e.tags = append(e.tags, tag)
	}
	sort.Strings(e.tags)
	return e
}

// Extract reads the dump once and calls emit for every declared record.
// Elements that are not declared are skipped without being materialised.
// It returns the number of records emitted per tag.
func (e *Extractor) Extract(r io.Reader, emit func(Record) error) (map[string]int, error) {
	d := newDecoder(r)
	counts := make(map[string]int, len(e.tags))
	total := 0
	progress := rate.Sometimes{Interval: progressInterval}

	inRoot := false
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return counts, fmt.Errorf("%w: %w", ErrMalformedXML, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !inRoot {
			inRoot = true
			continue
		}

		fields, wanted := e.specs[start.Name.Local]
		if !wanted {
			if err := d.Skip(); err != nil {
				return counts, fmt.Errorf("%w: %w", ErrMalformedXML, err)
			}
			continue
		}

		rec, err := readRecord(d, start, fields)
		if err != nil {
			return counts, err
		}
		if err := emit(rec); err != nil {
			return counts, fmt.Errorf("emitting %s %s: %w", rec.Tag, rec.Key(), err)
		}
		counts[rec.Tag]++
		total++
		progress.Do(func() {
			e.logger.Info("extraction progress", zap.Int("records", total))
		})
	}

	if !inRoot {
		return counts, fmt.Errorf("%w: no root element", ErrMalformedXML)
	}
	return counts, nil
}

// ExtractFile extracts src into one JSONL file per declared tag, placed at
// pathFor(tag). Every declared tag gets a file, even when no element matched.
func (e *Extractor) ExtractFile(src string, pathFor func(tag string) string) (map[string]int, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}
	defer f.Close()

	writers := make(map[string]*jsonl.Writer[Record], len(e.tags))
	closeAll := func() error {
		var firstErr error
		for _, w := range writers {
			if err := w.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	for _, tag := range e.tags {
		w, err := jsonl.Create[Record](pathFor(tag))
		if err != nil {
			closeAll()
			return nil, err
		}
		writers[tag] = w
	}

	counts, err := e.Extract(f, func(rec Record) error {
		return writers[rec.Tag].Write(rec)
	})
	if err != nil {
		closeAll()
		return counts, err
	}
	if err := closeAll(); err != nil {
		return counts, err
	}

	for _, tag := range e.tags {
		e.logger.Info("extracted entity", zap.String("entity", tag), zap.Int("records", counts[tag]))
	}
	return counts, nil
}

func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	// Well-formedness only; element structure is not checked against the DTD.
	d.Strict = true
	// The dump's DTD declares the HTML character entities.
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charsetReader
	return d
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}

func readRecord(d *xml.Decoder, start xml.StartElement, fields map[string]bool) (Record, error) {
	rec := Record{
		Tag:    start.Name.Local,
		Attrs:  attrMap(start.Attr),
		Fields: make(map[string]Field),
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return rec, fmt.Errorf("%w: inside %s %s: %w", ErrMalformedXML, rec.Tag, rec.Key(), err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if !fields[name] {
				if err := d.Skip(); err != nil {
					return rec, fmt.Errorf("%w: %w", ErrMalformedXML, err)
				}
				continue
			}
			text, err := readText(d, name == titleField)
			if err != nil {
				return rec, fmt.Errorf("%w: inside %s %s: %w", ErrMalformedXML, rec.Tag, rec.Key(), err)
			}
			if name == titleField {
				text = strings.TrimRight(text, "\n")
			}
			if text == "" {
				continue
			}
			rec.Fields[name] = append(rec.Fields[name], Value{
				Text:  norm.NFC.String(text),
				Attrs: attrMap(t.Attr),
			})
		case xml.EndElement:
			if len(rec.Fields) == 0 {
				rec.Fields = nil
			}
			return rec, nil
		}
	}
}

// readText consumes the current element. With nested set it returns all
// character data below the element, dropping markup; otherwise only the
// character data preceding the first child element.
func readText(d *xml.Decoder, nested bool) (string, error) {
	var b strings.Builder
	depth := 0
	sawChild := false
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if nested || !sawChild {
				b.Write(t)
			}
		case xml.StartElement:
			depth++
			sawChild = true
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}

func attrMap(attrs []xml.Attr) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}
