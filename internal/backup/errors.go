package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// ErrorCode classifies why a copy failed.
type ErrorCode string

const (
	// CodeNotFound means the source vanished between validation and access.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeForbidden means a path could not be read or written for lack of permission.
	CodeForbidden ErrorCode = "FORBIDDEN"
	// CodeIO covers every other read, write, stat, chmod or utime failure.
	CodeIO ErrorCode = "IO_ERROR"
	// CodeCanceled means the caller's context ended the copy.
	CodeCanceled ErrorCode = "CANCELED"
)

// Sentinels matched by errors.Is against a *CopyError of the same code.
var (
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrIO         = errors.New("i/o error")
	ErrCanceled   = errors.New("canceled")
)

// CopyError records the operation and path that failed.
type CopyError struct {
	Op   string
	Path string
	Code ErrorCode
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by code.
func (e *CopyError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrPermission:
		return e.Code == CodeForbidden
	case ErrIO:
		return e.Code == CodeIO
	case ErrCanceled:
		return e.Code == CodeCanceled
	}
	return false
}

func newCopyError(op, path string, err error) *CopyError {
	var ce *CopyError
	if errors.As(err, &ce) {
		return ce
	}
	return &CopyError{Op: op, Path: path, Code: classify(err), Err: err}
}

func classify(err error) ErrorCode {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	case errors.Is(err, fs.ErrNotExist):
		return CodeNotFound
	case errors.Is(err, fs.ErrPermission):
		return CodeForbidden
	default:
		return CodeIO
	}
}

// CodeOf returns the code carried by err, classifying plain errors on the fly.
// A nil error has an empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ce *CopyError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return classify(err)
}
