package input

import (
	"errors"
	"fmt"

	"github.com/adrian-griffin/rsbackup/job"
)

var (
	ErrAllWithSource      = errors.New("can't specify a source directory when --all is used")
	ErrNoCommand          = errors.New("no command to run")
	ErrFetchUnimplemented = errors.New("fetch is not implemented")
	ErrMissingServer      = errors.New("must specify a server")
	ErrMissingUser        = errors.New("must specify a user")
	ErrInvalidPort        = errors.New("port must be a positive integer")
)

// ValidateSource rejects --all combined with an explicit SRC
func ValidateSource(cli CLIArgs) error {
	if cli.All && cli.SrcDir != nil {
		return ErrAllWithSource
	}
	return nil
}

// ValidateParams checks params before any transfer side effect
func ValidateParams(p job.Params) error {
	switch p.Command {
	case job.Push, job.Sync:
	case job.Fetch:
		return ErrFetchUnimplemented
	default:
		return ErrNoCommand
	}

	if p.Server == "" {
		return ErrMissingServer
	}
	if p.User == "" {
		return ErrMissingUser
	}
	if p.Port <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, p.Port)
	}

	return nil
}
