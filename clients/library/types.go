package vtfslib

import (
	"errors"

	"github.com/AnishMulay/vtfs/internal/communication"
	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	fsrv "github.com/AnishMulay/vtfs/internal/fs_server"
)

// VtfsClient talks to one vtfs server. Every request carries Cred, so one
// client acts as exactly one identity.
type VtfsClient struct {
	ServerAddr string
	Comm       communication.Communicator
	Cred       fsrv.Cred
	From       string

	// PageSize bounds directory listing round trips. Zero means 128.
	PageSize int
}

// RemoteError is a non-OK response. It unwraps to the matching filesystem
// sentinel so callers can use errors.Is(err, fss.ErrNotFound) and friends.
type RemoteError struct {
	Code    communication.Code
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return codeErrors[e.Code]
}

var ErrBadRequest = errors.New("bad request")

var codeErrors = map[communication.Code]error{
	communication.CodeNotFound:         fss.ErrNotFound,
	communication.CodeAlreadyExists:    fss.ErrAlreadyExists,
	communication.CodePermissionDenied: fss.ErrAccessDenied,
	communication.CodeNotEmpty:         fss.ErrNotEmpty,
	communication.CodeNoSpace:          fss.ErrOutOfSpace,
	communication.CodeInvalid:          fss.ErrInvalidOperation,
	communication.CodeBadRequest:       ErrBadRequest,
}
