// Package failure defines the error taxonomy shared by the training pipeline.
//
// Every error that decides a project's outcome carries a Kind so the cycle
// can report why a project failed without string matching.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	// KindUpstream is a bad or absent response from the labeling server
	KindUpstream Kind = "upstream"

	// KindDownload is an image fetch that failed after its retry
	KindDownload Kind = "download"

	// KindConversion is a non-zero exit of the dataset conversion tool
	KindConversion Kind = "conversion"

	// KindSubprocess is a trainer or evaluator that exited non-zero, timed out or could not start
	KindSubprocess Kind = "subprocess"

	// KindFileSystem is an expected workspace file or directory that is missing or unwritable
	KindFileSystem Kind = "filesystem"
)

// Error is a classified pipeline error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. It returns nil if err is nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or the empty kind if there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains a classified error of the given kind
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}
