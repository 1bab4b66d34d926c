package graph

import (
	"errors"
	"fmt"
)

// Configuration error kinds. A *ConfigError wraps exactly one of them.
var (
	ErrEmptyPassName     = errors.New("graph: pass has no name")
	ErrDuplicatePass     = errors.New("graph: duplicate pass name")
	ErrUnresolvedTag     = errors.New("graph: needed tag is never produced")
	ErrOrderViolation    = errors.New("graph: tag needed before it is produced")
	ErrDuplicateProducer = errors.New("graph: tag produced by more than one source")
	ErrUnknownOutput     = errors.New("graph: output tag is never produced")
	ErrUnknownPass       = errors.New("graph: unknown pass")
	ErrInvalidImage      = errors.New("graph: invalid image")
)

// Frame misuse errors.
var (
	ErrFrameInProgress = errors.New("graph: frame already in progress")
	ErrFrameFinished   = errors.New("graph: frame already finished")
	ErrNoMorePasses    = errors.New("graph: all passes recorded")
	ErrPassRecorded    = errors.New("graph: pass already recorded")
)

// ConfigError reports an invalid graph configuration. It names the
// offending pass and tag when they apply.
type ConfigError struct {
	Kind   error
	Pass   string
	Tag    string
	Detail string
}

func (e *ConfigError) Error() string {
	msg := e.Kind.Error()
	if e.Pass != "" {
		msg += fmt.Sprintf(": pass %q", e.Pass)
	}
	if e.Tag != "" {
		msg += fmt.Sprintf(": tag %q", e.Tag)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the error kind.
func (e *ConfigError) Unwrap() error { return e.Kind }
