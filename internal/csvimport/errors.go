package csvimport

import (
	"errors"
	"fmt"
)

// ErrImport matches every *ImportError via errors.Is.
var ErrImport = errors.New("import error")

// ImportError aborts a whole import: the file could not be decoded, was not
// valid CSV, or a row could not be normalised. Line is the 1-based line of the
// offending row, or 0 when the problem concerns the whole file.
type ImportError struct {
	Line   int
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	msg := e.Reason
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "csv import: " + msg
}

func (e *ImportError) Unwrap() error { return e.Err }

func (e *ImportError) Is(target error) bool { return target == ErrImport }
