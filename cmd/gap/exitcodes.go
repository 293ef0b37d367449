package main

import (
	"errors"

	"github.com/matsen/gap/internal/dblp"
	"github.com/matsen/gap/internal/gender"
	"github.com/matsen/gap/internal/pipeline"
	"github.com/matsen/gap/internal/refdata"
)

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (unset path, missing reference file)
	ExitDataError   = 3 // Data error (malformed XML, rejected insert)
)

// exitCodeFor maps a pipeline error to an exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, refdata.ErrMissingReferenceFile),
		errors.Is(err, gender.ErrMissingReference),
		errors.Is(err, pipeline.ErrCycle),
		errors.Is(err, pipeline.ErrUnknownDependency):
		return ExitConfigError
	case errors.Is(err, dblp.ErrMalformedXML):
		return ExitDataError
	}
	return ExitError
}
