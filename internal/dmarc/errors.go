package dmarc

import (
	"fmt"
	"strings"
)

// UnsupportedFileTypeError is returned for files that are not .xml, .gz or .zip
type UnsupportedFileTypeError struct {
	Extension string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q", e.Extension)
}

// NoXMLInArchiveError is returned when a zip archive has no .xml entry
type NoXMLInArchiveError struct {
	Path string
}

func (e *NoXMLInArchiveError) Error() string {
	return fmt.Sprintf("no xml file found in zip archive %s", e.Path)
}

// ReadFailureError wraps I/O, decompression and decoding errors
type ReadFailureError struct {
	Path  string
	Cause error
}

func (e *ReadFailureError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("could not read report: %v", e.Cause)
	}
	return fmt.Sprintf("could not read %s: %v", e.Path, e.Cause)
}

func (e *ReadFailureError) Unwrap() error {
	return e.Cause
}

// MissingFieldError is returned when a required element is absent or empty.
// Locator is a path like report_metadata/org_name.
type MissingFieldError struct {
	Locator string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %s", e.Locator)
}

// MalformedValueError is returned when a numeric field can not be parsed
type MalformedValueError struct {
	Field string
	Raw   string
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("malformed value %q for %s", e.Raw, e.Field)
}

// InvalidEnumError is returned for an unknown enumeration value
type InvalidEnumError struct {
	Field   string
	Raw     string
	Allowed []string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("invalid value %q for %s, must be one of %s", e.Raw, e.Field, strings.Join(e.Allowed, ", "))
}

// RangeViolationError is returned when a number is outside of its allowed range
type RangeViolationError struct {
	Field string
	Value int64
	Min   int64
	Max   int64
}

func (e *RangeViolationError) Error() string {
	return fmt.Sprintf("%s must be between %d and %d, got %d", e.Field, e.Min, e.Max, e.Value)
}
