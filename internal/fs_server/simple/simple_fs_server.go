package simple

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/AnishMulay/vtfs/internal/communication"
	grpccomm "github.com/AnishMulay/vtfs/internal/communication/grpc"
	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	fsrv "github.com/AnishMulay/vtfs/internal/fs_server"
	"github.com/AnishMulay/vtfs/internal/log_service"
)

type SimpleFsServer struct {
	comm *grpccomm.GRPCCommunicator
	fs   fss.FilesystemService
	ls   log_service.LogService
}

func NewSimpleFsServer(comm *grpccomm.GRPCCommunicator, fs fss.FilesystemService, ls log_service.LogService) *SimpleFsServer {
	return &SimpleFsServer{
		comm: comm,
		fs:   fs,
		ls:   ls,
	}
}

// Start mounts the filesystem before accepting any request.
func (s *SimpleFsServer) Start() error {
	s.ls.Info(log_service.LogEvent{Message: "Starting Simple FS Server"})

	s.registerPayloads()

	rootID, err := s.fs.Mount(context.Background())
	if err != nil {
		return err
	}
	s.ls.Info(log_service.LogEvent{Message: "Filesystem ready", Metadata: map[string]any{"root": rootID}})

	return s.comm.Start(s.handleMessage)
}

func (s *SimpleFsServer) Stop() error {
	s.ls.Info(log_service.LogEvent{Message: "Stopping Simple FS Server"})
	if err := s.comm.Stop(); err != nil {
		s.ls.Error(log_service.LogEvent{Message: "Failed to stop communicator", Metadata: map[string]any{"error": err.Error()}})
	}
	return s.fs.Unmount(context.Background())
}

func (s *SimpleFsServer) Address() string {
	return s.comm.Address()
}

func (s *SimpleFsServer) registerPayloads() {
	for msgType, payload := range map[string]any{
		fsrv.MsgFsGetAttr:    fsrv.GetAttrRequest{},
		fsrv.MsgFsLookup:     fsrv.LookupRequest{},
		fsrv.MsgFsLookupPath: fsrv.LookupPathRequest{},
		fsrv.MsgFsAccess:     fsrv.AccessRequest{},
		fsrv.MsgFsCreate:     fsrv.CreateRequest{},
		fsrv.MsgFsMkdir:      fsrv.MkdirRequest{},
		fsrv.MsgFsRmdir:      fsrv.RmdirRequest{},
		fsrv.MsgFsLink:       fsrv.LinkRequest{},
		fsrv.MsgFsSymlink:    fsrv.SymlinkRequest{},
		fsrv.MsgFsUnlink:     fsrv.UnlinkRequest{},
		fsrv.MsgFsOpen:       fsrv.OpenRequest{},
		fsrv.MsgFsRead:       fsrv.ReadRequest{},
		fsrv.MsgFsWrite:      fsrv.WriteRequest{},
		fsrv.MsgFsReadlink:   fsrv.ReadlinkRequest{},
		fsrv.MsgFsReadDir:    fsrv.ReadDirRequest{},
		fsrv.MsgFsJournal:    fsrv.JournalRequest{},
		fsrv.MsgFsFsStat:     fsrv.FsStatRequest{},
	} {
		s.comm.RegisterPayloadType(msgType, reflect.TypeOf(payload))
	}
}

func decode[T any](msg communication.Message) (T, error) {
	req, ok := msg.Payload.(T)
	if !ok {
		return req, fmt.Errorf("unexpected payload %T for %s", msg.Payload, msg.Type)
	}
	return req, nil
}

// Central Router for all incoming messages
func (s *SimpleFsServer) handleMessage(ctx context.Context, msg communication.Message) (*communication.Response, error) {
	switch msg.Type {
	case fsrv.MsgFsGetAttr:
		req, err := decode[fsrv.GetAttrRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		attrs, err := s.fs.GetAttributes(ctx, req.InodeID)
		return s.respond(msg, attrs, err)

	case fsrv.MsgFsLookup:
		req, err := decode[fsrv.LookupRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		id, err := s.fs.Lookup(ctx, req.ParentID, req.Name)
		return s.respond(msg, fsrv.LookupResponse{InodeID: id}, err)

	case fsrv.MsgFsLookupPath:
		req, err := decode[fsrv.LookupPathRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		id, err := s.fs.LookupPath(ctx, req.Path)
		return s.respond(msg, fsrv.LookupResponse{InodeID: id}, err)

	case fsrv.MsgFsAccess:
		req, err := decode[fsrv.AccessRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		err = s.fs.Access(ctx, req.InodeID, fss.AccessMask(req.AccessMask), req.Credential())
		return s.respond(msg, nil, err)

	case fsrv.MsgFsCreate:
		req, err := decode[fsrv.CreateRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		inode, err := s.fs.Create(ctx, req.ParentID, req.Name, req.Mode, req.Credential())
		return s.respond(msg, inode, err)

	case fsrv.MsgFsMkdir:
		req, err := decode[fsrv.MkdirRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		inode, err := s.fs.Mkdir(ctx, req.ParentID, req.Name, req.Mode, req.Credential())
		return s.respond(msg, inode, err)

	case fsrv.MsgFsRmdir:
		req, err := decode[fsrv.RmdirRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		err = s.fs.Rmdir(ctx, req.ParentID, req.Name, req.Credential())
		return s.respond(msg, nil, err)

	case fsrv.MsgFsLink:
		req, err := decode[fsrv.LinkRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		err = s.fs.Link(ctx, req.InodeID, req.ParentID, req.Name, req.Credential())
		return s.respond(msg, nil, err)

	case fsrv.MsgFsSymlink:
		req, err := decode[fsrv.SymlinkRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		inode, err := s.fs.Symlink(ctx, req.ParentID, req.Name, req.Target, req.Credential())
		return s.respond(msg, inode, err)

	case fsrv.MsgFsUnlink:
		req, err := decode[fsrv.UnlinkRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		err = s.fs.Unlink(ctx, req.ParentID, req.Name, req.Credential())
		return s.respond(msg, nil, err)

	case fsrv.MsgFsOpen:
		req, err := decode[fsrv.OpenRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		err = s.fs.Open(ctx, req.InodeID, fss.OpenFlags(req.Flags), req.Credential())
		return s.respond(msg, nil, err)

	case fsrv.MsgFsRead:
		req, err := decode[fsrv.ReadRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		data, next, err := s.fs.Read(ctx, req.InodeID, req.Offset, req.Length, req.Credential())
		return s.respond(msg, fsrv.ReadResponse{Data: data, Next: next}, err)

	case fsrv.MsgFsWrite:
		req, err := decode[fsrv.WriteRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		n, err := s.fs.Write(ctx, req.InodeID, req.Offset, req.Data, req.Credential())
		return s.respond(msg, fsrv.WriteResponse{Written: n}, err)

	case fsrv.MsgFsReadlink:
		req, err := decode[fsrv.ReadlinkRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		target, err := s.fs.Readlink(ctx, req.InodeID)
		return s.respond(msg, fsrv.ReadlinkResponse{Target: target}, err)

	case fsrv.MsgFsReadDir:
		req, err := decode[fsrv.ReadDirRequest](msg)
		if err != nil {
			return badRequest(err), nil
		}
		entries, cookie, eof, err := s.fs.ReadDir(ctx, req.InodeID, req.Cookie, req.MaxEntries)
		return s.respond(msg, fsrv.ReadDirResponse{Entries: entries, Cookie: cookie, EOF: eof}, err)

	case fsrv.MsgFsJournal:
		entries, err := s.fs.Journal(ctx)
		return s.respond(msg, entries, err)

	case fsrv.MsgFsFsStat:
		stats, err := s.fs.GetFsStat(ctx)
		return s.respond(msg, stats, err)

	default:
		return &communication.Response{
			Code: communication.CodeBadRequest,
			Body: []byte("unknown message type: " + msg.Type),
		}, nil
	}
}

func badRequest(err error) *communication.Response {
	return &communication.Response{
		Code: communication.CodeBadRequest,
		Body: []byte(err.Error()),
	}
}

var wireCodes = map[fss.ErrorCode]communication.Code{
	fss.CodeNotFound:         communication.CodeNotFound,
	fss.CodeAlreadyExists:    communication.CodeAlreadyExists,
	fss.CodeAccessDenied:     communication.CodePermissionDenied,
	fss.CodeNotEmpty:         communication.CodeNotEmpty,
	fss.CodeOutOfSpace:       communication.CodeNoSpace,
	fss.CodeInvalidOperation: communication.CodeInvalid,
}

// respond is a helper to standardize JSON responses and error codes
func (s *SimpleFsServer) respond(msg communication.Message, data any, err error) (*communication.Response, error) {
	if err != nil {
		code, ok := wireCodes[fss.CodeOf(err)]
		if !ok {
			code = communication.CodeInternal
			s.ls.Error(log_service.LogEvent{
				Message:  "Request failed",
				Metadata: map[string]any{"type": msg.Type, "id": msg.ID, "error": err.Error()},
			})
		} else {
			s.ls.Debug(log_service.LogEvent{
				Message:  "Request rejected",
				Metadata: map[string]any{"type": msg.Type, "id": msg.ID, "code": code, "error": err.Error()},
			})
		}
		return &communication.Response{Code: code, Body: []byte(err.Error())}, nil
	}

	if data == nil {
		return &communication.Response{Code: communication.CodeOK}, nil
	}

	bytes, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		return &communication.Response{
			Code: communication.CodeInternal,
			Body: []byte("failed to marshal response: " + marshalErr.Error()),
		}, nil
	}

	return &communication.Response{
		Code: communication.CodeOK,
		Body: bytes,
	}, nil
}
