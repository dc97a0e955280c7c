package filesystem_service

import (
	"errors"
	"fmt"
)

// Errors mapped to POSIX concepts. Components wrap these with context, callers
// classify with errors.Is.
var (
	ErrNotFound         = errors.New("no such file or directory")
	ErrAlreadyExists    = errors.New("file exists")
	ErrAccessDenied     = errors.New("permission denied")
	ErrNotEmpty         = errors.New("directory not empty")
	ErrOutOfSpace       = errors.New("no space left on device")
	ErrInvalidOperation = errors.New("invalid operation")

	ErrNotMounted  = fmt.Errorf("%w: filesystem not mounted", ErrInvalidOperation)
	ErrInvalidName = fmt.Errorf("%w: invalid name", ErrInvalidOperation)
	ErrIsDir       = fmt.Errorf("%w: is a directory", ErrInvalidOperation)
	ErrNotDir      = fmt.Errorf("%w: not a directory", ErrInvalidOperation)
)

type ErrorCode string

const (
	CodeOK               ErrorCode = "OK"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeAccessDenied     ErrorCode = "PERMISSION_DENIED"
	CodeNotEmpty         ErrorCode = "NOT_EMPTY"
	CodeOutOfSpace       ErrorCode = "NO_SPACE"
	CodeInvalidOperation ErrorCode = "INVALID"
	CodeInternal         ErrorCode = "INTERNAL"
)

// CodeOf classifies err into the error taxonomy.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, ErrNotEmpty):
		return CodeNotEmpty
	case errors.Is(err, ErrOutOfSpace):
		return CodeOutOfSpace
	case errors.Is(err, ErrInvalidOperation):
		return CodeInvalidOperation
	default:
		return CodeInternal
	}
}

// ValidateName rejects names that can never be a directory entry.
func ValidateName(name string, maxLen int) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if maxLen > 0 && len(name) > maxLen {
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidName, name, maxLen)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}
