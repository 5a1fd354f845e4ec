package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing record; adapters translate it into a
	// structured not-found function result rather than a failure.
	ErrNotFound = errors.New("not found")

	// ErrPayloadTooLarge is returned by a task store when a write exceeds
	// the backend's attachment size limit. The persistence guard reacts to
	// this error specifically.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnregisteredFunction marks a model request for a function the
	// registry does not know.
	ErrUnregisteredFunction = errors.New("unregistered function")

	// ErrNoUsableCandidate means the image pipeline exhausted its candidate
	// chain without producing an image within the size ceiling.
	ErrNoUsableCandidate = errors.New("no usable generation candidate")
)

type ImageErrorKind int

const (
	// ImageErrorUnsupported: the candidate's model or parameters are not
	// available to this account. The pipeline advances to the next one.
	ImageErrorUnsupported ImageErrorKind = iota

	// ImageErrorTransient: timeout, transport failure or server error on a
	// single attempt. Counts as that candidate's failure.
	ImageErrorTransient

	// ImageErrorFatal: auth, quota or other errors that will recur on every
	// candidate. Aborts the whole pipeline.
	ImageErrorFatal
)

func (k ImageErrorKind) String() string {
	switch k {
	case ImageErrorUnsupported:
		return "unsupported"
	case ImageErrorTransient:
		return "transient"
	case ImageErrorFatal:
		return "fatal"
	}
	return "unknown"
}

// ImageError is a classified failure from the image generation service,
// so callers branch on Kind instead of matching message substrings.
type ImageError struct {
	Kind    ImageErrorKind
	Status  int
	Message string
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image service error (%s, status %d): %s", e.Kind, e.Status, e.Message)
}

// ImageErrorKindOf extracts the kind from err; errors that carry no
// ImageError are treated as transient.
func ImageErrorKindOf(err error) ImageErrorKind {
	var ie *ImageError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ImageErrorTransient
}
