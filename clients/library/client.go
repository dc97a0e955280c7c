package vtfslib

import (
	"context"
	"errors"
	"fmt"
	pathpkg "path"
	"strings"

	"github.com/AnishMulay/vtfs/internal/communication"
	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	fsrv "github.com/AnishMulay/vtfs/internal/fs_server"
)

const (
	defaultPageSize = 128
	readChunkSize   = 4096
)

func NewVtfsClient(serverAddr string, comm communication.Communicator, cred fss.Credential) *VtfsClient {
	return &VtfsClient{
		ServerAddr: serverAddr,
		Comm:       comm,
		Cred:       fsrv.Cred{UID: cred.UID, GID: cred.GID},
		From:       "vtfslib",
	}
}

// --- Namespace ---

// Resolve walks an absolute path to its inode id.
func (c *VtfsClient) Resolve(ctx context.Context, path string) (uint64, error) {
	cleanPath, err := normalizePath(path)
	if err != nil {
		return 0, err
	}

	var out fsrv.LookupResponse
	if err := c.call(ctx, "lookup", cleanPath, fsrv.MsgFsLookupPath, fsrv.LookupPathRequest{Path: cleanPath}, &out); err != nil {
		return 0, err
	}
	return out.InodeID, nil
}

// Lookup resolves one name inside a directory. Misses are cached server side.
func (c *VtfsClient) Lookup(ctx context.Context, parentID uint64, name string) (uint64, error) {
	var out fsrv.LookupResponse
	req := fsrv.LookupRequest{ParentID: parentID, Name: name}
	if err := c.call(ctx, "lookup", name, fsrv.MsgFsLookup, req, &out); err != nil {
		return 0, err
	}
	return out.InodeID, nil
}

func (c *VtfsClient) Stat(ctx context.Context, path string) (*fss.Attributes, error) {
	id, err := c.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	var attrs fss.Attributes
	if err := c.call(ctx, "stat", path, fsrv.MsgFsGetAttr, fsrv.GetAttrRequest{InodeID: id}, &attrs); err != nil {
		return nil, err
	}
	return &attrs, nil
}

func (c *VtfsClient) Mkdir(ctx context.Context, path string, mode uint32) (*fss.Inode, error) {
	parentID, name, cleanPath, err := c.resolveParent(ctx, path)
	if err != nil {
		return nil, err
	}

	var inode fss.Inode
	req := fsrv.MkdirRequest{Cred: c.Cred, ParentID: parentID, Name: name, Mode: mode}
	if err := c.call(ctx, "mkdir", cleanPath, fsrv.MsgFsMkdir, req, &inode); err != nil {
		return nil, err
	}
	return &inode, nil
}

func (c *VtfsClient) Create(ctx context.Context, path string, mode uint32) (*fss.Inode, error) {
	parentID, name, cleanPath, err := c.resolveParent(ctx, path)
	if err != nil {
		return nil, err
	}

	var inode fss.Inode
	req := fsrv.CreateRequest{Cred: c.Cred, ParentID: parentID, Name: name, Mode: mode}
	if err := c.call(ctx, "create", cleanPath, fsrv.MsgFsCreate, req, &inode); err != nil {
		return nil, err
	}
	return &inode, nil
}

func (c *VtfsClient) Rmdir(ctx context.Context, path string) error {
	parentID, name, cleanPath, err := c.resolveParent(ctx, path)
	if err != nil {
		return err
	}
	req := fsrv.RmdirRequest{Cred: c.Cred, ParentID: parentID, Name: name}
	return c.call(ctx, "rmdir", cleanPath, fsrv.MsgFsRmdir, req, nil)
}

func (c *VtfsClient) Unlink(ctx context.Context, path string) error {
	parentID, name, cleanPath, err := c.resolveParent(ctx, path)
	if err != nil {
		return err
	}
	req := fsrv.UnlinkRequest{Cred: c.Cred, ParentID: parentID, Name: name}
	return c.call(ctx, "unlink", cleanPath, fsrv.MsgFsUnlink, req, nil)
}

// Link adds newPath as another name for the inode at existingPath.
func (c *VtfsClient) Link(ctx context.Context, existingPath string, newPath string) error {
	inodeID, err := c.Resolve(ctx, existingPath)
	if err != nil {
		return err
	}
	parentID, name, cleanPath, err := c.resolveParent(ctx, newPath)
	if err != nil {
		return err
	}
	req := fsrv.LinkRequest{Cred: c.Cred, InodeID: inodeID, ParentID: parentID, Name: name}
	return c.call(ctx, "link", cleanPath, fsrv.MsgFsLink, req, nil)
}

// Symlink creates linkPath holding target. The target is stored verbatim and
// never resolved.
func (c *VtfsClient) Symlink(ctx context.Context, target string, linkPath string) (*fss.Inode, error) {
	parentID, name, cleanPath, err := c.resolveParent(ctx, linkPath)
	if err != nil {
		return nil, err
	}

	var inode fss.Inode
	req := fsrv.SymlinkRequest{Cred: c.Cred, ParentID: parentID, Name: name, Target: target}
	if err := c.call(ctx, "symlink", cleanPath, fsrv.MsgFsSymlink, req, &inode); err != nil {
		return nil, err
	}
	return &inode, nil
}

func (c *VtfsClient) Readlink(ctx context.Context, path string) (string, error) {
	id, err := c.Resolve(ctx, path)
	if err != nil {
		return "", err
	}

	var out fsrv.ReadlinkResponse
	if err := c.call(ctx, "readlink", path, fsrv.MsgFsReadlink, fsrv.ReadlinkRequest{InodeID: id}, &out); err != nil {
		return "", err
	}
	return out.Target, nil
}

// ReadDir pages through a directory until the server reports the end.
func (c *VtfsClient) ReadDir(ctx context.Context, path string) ([]fss.DirEntry, error) {
	id, err := c.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var entries []fss.DirEntry
	cookie := 0
	for {
		var page fsrv.ReadDirResponse
		req := fsrv.ReadDirRequest{InodeID: id, Cookie: cookie, MaxEntries: pageSize}
		if err := c.call(ctx, "readdir", path, fsrv.MsgFsReadDir, req, &page); err != nil {
			return nil, err
		}
		entries = append(entries, page.Entries...)
		if page.EOF || page.Cookie == cookie {
			return entries, nil
		}
		cookie = page.Cookie
	}
}

// --- Data ---

func (c *VtfsClient) Open(ctx context.Context, path string, flags fss.OpenFlags) (uint64, error) {
	id, err := c.Resolve(ctx, path)
	if err != nil {
		return 0, err
	}
	req := fsrv.OpenRequest{Cred: c.Cred, InodeID: id, Flags: int(flags)}
	if err := c.call(ctx, "open", path, fsrv.MsgFsOpen, req, nil); err != nil {
		return 0, err
	}
	return id, nil
}

// ReadFile opens path for reading and returns everything from offset 0.
func (c *VtfsClient) ReadFile(ctx context.Context, path string) ([]byte, error) {
	id, err := c.Open(ctx, path, fss.OpenReadOnly)
	if err != nil {
		return nil, err
	}

	var data []byte
	var offset int64
	for {
		var chunk fsrv.ReadResponse
		req := fsrv.ReadRequest{Cred: c.Cred, InodeID: id, Offset: offset, Length: readChunkSize}
		if err := c.call(ctx, "read", path, fsrv.MsgFsRead, req, &chunk); err != nil {
			return nil, err
		}
		if len(chunk.Data) == 0 {
			return data, nil
		}
		data = append(data, chunk.Data...)
		offset = chunk.Next
	}
}

// WriteFile writes data at offset, creating path with mode first when it
// does not exist. It returns how many bytes the server accepted.
func (c *VtfsClient) WriteFile(ctx context.Context, path string, offset int64, data []byte, mode uint32) (int, error) {
	id, err := c.Open(ctx, path, fss.OpenWriteOnly)
	if errors.Is(err, fss.ErrNotFound) {
		if _, err = c.Create(ctx, path, mode); err != nil && !errors.Is(err, fss.ErrAlreadyExists) {
			return 0, err
		}
		id, err = c.Open(ctx, path, fss.OpenWriteOnly)
	}
	if err != nil {
		return 0, err
	}

	var out fsrv.WriteResponse
	req := fsrv.WriteRequest{Cred: c.Cred, InodeID: id, Offset: offset, Data: data}
	if err := c.call(ctx, "write", path, fsrv.MsgFsWrite, req, &out); err != nil {
		return 0, err
	}
	return out.Written, nil
}

// --- Introspection ---

func (c *VtfsClient) Access(ctx context.Context, path string, mask fss.AccessMask) error {
	id, err := c.Resolve(ctx, path)
	if err != nil {
		return err
	}
	req := fsrv.AccessRequest{Cred: c.Cred, InodeID: id, AccessMask: uint32(mask)}
	return c.call(ctx, "access", path, fsrv.MsgFsAccess, req, nil)
}

func (c *VtfsClient) Journal(ctx context.Context) ([]fss.JournalEntry, error) {
	var entries []fss.JournalEntry
	if err := c.call(ctx, "journal", "/", fsrv.MsgFsJournal, fsrv.JournalRequest{}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *VtfsClient) FsStat(ctx context.Context) (*fss.FileSystemStats, error) {
	var stats fss.FileSystemStats
	if err := c.call(ctx, "fsstat", "/", fsrv.MsgFsFsStat, fsrv.FsStatRequest{}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// --- Plumbing ---

func (c *VtfsClient) resolveParent(ctx context.Context, path string) (uint64, string, string, error) {
	cleanPath, err := normalizePath(path)
	if err != nil {
		return 0, "", "", err
	}
	parentPath, name, err := splitParentAndName(cleanPath)
	if err != nil {
		return 0, "", "", err
	}
	parentID, err := c.Resolve(ctx, parentPath)
	if err != nil {
		return 0, "", "", err
	}
	return parentID, name, cleanPath, nil
}

func (c *VtfsClient) call(ctx context.Context, op string, path string, msgType string, payload any, out any) error {
	if c == nil || c.Comm == nil {
		return fmt.Errorf("vtfs client is not connected")
	}
	if c.ServerAddr == "" {
		return fmt.Errorf("vtfs server address is empty")
	}

	resp, err := c.Comm.Send(ctx, c.ServerAddr, communication.Message{
		From:    c.From,
		Type:    msgType,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("%s %q failed: %w", op, path, err)
	}
	if resp.Code != communication.CodeOK {
		return responseError(op, path, resp)
	}
	if out != nil {
		if err := resp.Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response for %q: %w", op, path, err)
		}
	}
	return nil
}

func splitParentAndName(path string) (string, string, error) {
	if path == "/" {
		return "", "", fmt.Errorf("root has no parent")
	}

	parent := pathpkg.Dir(path)
	if parent == "." || parent == "" {
		parent = "/"
	}

	name := pathpkg.Base(path)
	if name == "" || name == "." || name == "/" {
		return "", "", fmt.Errorf("invalid path %q", path)
	}

	return parent, name, nil
}

func normalizePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("invalid path: empty path")
	}

	cleanPath := pathpkg.Clean(trimmed)
	if !strings.HasPrefix(cleanPath, "/") {
		return "", fmt.Errorf("invalid path %q: expected absolute path", path)
	}

	return cleanPath, nil
}

func responseError(op string, path string, resp *communication.Response) error {
	if resp == nil {
		return fmt.Errorf("%s %q failed: empty response", op, path)
	}
	return fmt.Errorf("%s %q: %w", op, path, &RemoteError{
		Code:    resp.Code,
		Message: strings.TrimSpace(string(resp.Body)),
	})
}
