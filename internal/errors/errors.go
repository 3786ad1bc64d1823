// internal/errors/errors.go - Failure taxonomy for scraping, persistence and merge
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies where a failure happened and how far it propagates
type Kind int

const (
	KindUnknown Kind = iota
	// KindNavigation is a navigation timeout or network error. Aborts the scrape.
	KindNavigation
	// KindProtectionBypass means the anti-bot ladder was exhausted. Aborts the scrape.
	KindProtectionBypass
	// KindListingExtraction is a single listing failure. Logged, never propagated.
	KindListingExtraction
	// KindPersistence is a directory or file I/O failure. Always propagated.
	KindPersistence
	// KindMergeRead is one unreadable CSV during merge. Skipped with a warning.
	KindMergeRead
	// KindConfig is an invalid configuration or request.
	KindConfig
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNavigation:
		return "navigation"
	case KindProtectionBypass:
		return "protection_bypass"
	case KindListingExtraction:
		return "listing_extraction"
	case KindPersistence:
		return "persistence"
	case KindMergeRead:
		return "merge_read"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching
var (
	ErrNavigation        = stderrors.New("navigation failure")
	ErrProtectionBypass  = stderrors.New("protection bypass failure")
	ErrListingExtraction = stderrors.New("listing extraction error")
	ErrPersistence       = stderrors.New("persistence error")
	ErrMergeRead         = stderrors.New("merge read error")
	ErrConfig            = stderrors.New("configuration error")

	// ErrNothingToMerge means a merge matched no CSV files
	ErrNothingToMerge = stderrors.New("no CSV files found")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNavigation:
		return ErrNavigation
	case KindProtectionBypass:
		return ErrProtectionBypass
	case KindListingExtraction:
		return ErrListingExtraction
	case KindPersistence:
		return ErrPersistence
	case KindMergeRead:
		return ErrMergeRead
	case KindConfig:
		return ErrConfig
	default:
		return nil
	}
}

// ScrapeError wraps an underlying error with its kind and the operation that failed
type ScrapeError struct {
	Kind Kind
	Op   string
	// Target is the URL, file path or listing the operation worked on
	Target string
	Err    error
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	msg := e.Kind.sentinel()
	prefix := e.Kind.String()
	if msg != nil {
		prefix = msg.Error()
	}
	if e.Target != "" {
		prefix = fmt.Sprintf("%s: %s %s", prefix, e.Op, e.Target)
	} else if e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", prefix, e.Op)
	}
	if e.Err != nil {
		return prefix + ": " + e.Err.Error()
	}
	return prefix
}

// Unwrap returns the underlying cause
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *ScrapeError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New builds a ScrapeError
func New(kind Kind, op, target string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, Op: op, Target: target, Err: err}
}

// Navigation wraps err as a NavigationFailure
func Navigation(url string, err error) error {
	return New(KindNavigation, "navigate", url, err)
}

// ProtectionBypass wraps err as a ProtectionBypassFailure
func ProtectionBypass(url string, err error) error {
	return New(KindProtectionBypass, "bypass", url, err)
}

// Persistence wraps err as a PersistenceError
func Persistence(op, path string, err error) error {
	return New(KindPersistence, op, path, err)
}

// MergeRead wraps err as a MergeReadError
func MergeRead(path string, err error) error {
	return New(KindMergeRead, "read", path, err)
}

// Config wraps err as a configuration error
func Config(op string, err error) error {
	return New(KindConfig, op, "", err)
}

// KindOf returns the kind of the first ScrapeError in err's chain
func KindOf(err error) Kind {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Is is errors.Is, re-exported so callers need a single import
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
