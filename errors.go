package memocache

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError and *InvalidPropertyError.
	ErrConfiguration = errors.New("memocache: configuration error")
	// ErrCacheMissAbort matches *CacheMissAbortError.
	ErrCacheMissAbort = errors.New("memocache: aborted on cache miss")
	// ErrEncoding matches *EncodingError.
	ErrEncoding = errors.New("memocache: encoding error")
	// ErrMissingArtifact matches *MissingArtifactError.
	ErrMissingArtifact = errors.New("memocache: missing artifact")
	// ErrMissReported is returned by wrapped functions when report_on_cache_miss
	// is set and the call missed. The wrapped function was not invoked.
	ErrMissReported = errors.New("memocache: cache miss reported")
)

// ConfigurationError reports an invalid scope, format or registration.
// Never retried.
type ConfigurationError struct {
	Op   string
	Name string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("memocache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("memocache: %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// InvalidPropertyError reports a property key outside the scope's allow-list.
type InvalidPropertyError struct {
	Scope Scope
	Key   string
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("memocache: invalid %s property %q", e.Scope, e.Key)
}

func (e *InvalidPropertyError) Unwrap() error { return ErrConfiguration }

// CacheMissAbortError is returned when abort_on_cache_miss is set for Name
// and Key was not cached. Used to enforce replay-only runs.
type CacheMissAbortError struct {
	Name string
	Key  string
}

func (e *CacheMissAbortError) Error() string {
	return fmt.Sprintf("memocache: cache miss for %q with abort_on_cache_miss set (key %s)", e.Name, e.Key)
}

func (e *CacheMissAbortError) Unwrap() error { return ErrCacheMissAbort }

// EncodingError reports an artifact or value that cannot be encoded or
// decoded under its declared format. Artifacts are never auto-repaired.
type EncodingError struct {
	Name   string
	Format Format
	Op     string // "encode", "decode", "convert" or "key"
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("memocache: %s %q (%s): %v", e.Op, e.Name, e.Format, e.Err)
}

func (e *EncodingError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEncoding}
	}
	return []error{ErrEncoding, e.Err}
}

// MissingArtifactError is returned when deleting an artifact that does not
// exist.
type MissingArtifactError struct {
	Artifact string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("memocache: artifact %q does not exist", e.Artifact)
}

func (e *MissingArtifactError) Unwrap() error { return ErrMissingArtifact }
