package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/matsen/gap/internal/dblp"
	"github.com/matsen/gap/internal/gender"
	"github.com/matsen/gap/internal/pipeline"
	"github.com/matsen/gap/internal/refdata"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing reference", fmt.Errorf("stage country: %w: continents.csv", refdata.ErrMissingReferenceFile), ExitConfigError},
		{"missing gender reference", fmt.Errorf("stage preflight: %w: /data/gender", gender.ErrMissingReference), ExitConfigError},
		{"cycle", fmt.Errorf("%w: a, b", pipeline.ErrCycle), ExitConfigError},
		{"unknown dependency", pipeline.ErrUnknownDependency, ExitConfigError},
		{"malformed xml", fmt.Errorf("stage extract: %w: unexpected EOF", dblp.ErrMalformedXML), ExitDataError},
		{"other", errors.New("disk full"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{75 * time.Second, "1m 15s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
