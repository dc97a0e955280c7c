package fs_server

import fss "github.com/AnishMulay/vtfs/internal/filesystem_service"

// Message Type Constants
const (
	// Namespace
	MsgFsLookup     = "fs_lookup"
	MsgFsLookupPath = "fs_lookuppath"
	MsgFsCreate     = "fs_create"
	MsgFsMkdir      = "fs_mkdir"
	MsgFsRmdir      = "fs_rmdir"
	MsgFsLink       = "fs_link"
	MsgFsSymlink    = "fs_symlink"
	MsgFsUnlink     = "fs_unlink"
	MsgFsReadDir    = "fs_readdir"

	// Data
	MsgFsOpen     = "fs_open"
	MsgFsRead     = "fs_read"
	MsgFsWrite    = "fs_write"
	MsgFsReadlink = "fs_readlink"

	// Attributes & introspection
	MsgFsGetAttr = "fs_getattr"
	MsgFsAccess  = "fs_access"
	MsgFsJournal = "fs_journal"
	MsgFsFsStat  = "fs_fsstat"
)

// --- Payload Structs ---

// Cred is embedded by every request evaluated under a caller identity.
type Cred struct {
	UID uint32 `json:"uid"`
	GID uint32 `json:"gid"`
}

type GetAttrRequest struct {
	InodeID uint64 `json:"inodeId"`
}

type LookupRequest struct {
	ParentID uint64 `json:"parentId"`
	Name     string `json:"name"`
}

type LookupPathRequest struct {
	Path string `json:"path"`
}

type AccessRequest struct {
	Cred
	InodeID    uint64 `json:"inodeId"`
	AccessMask uint32 `json:"accessMask"`
}

type CreateRequest struct {
	Cred
	ParentID uint64 `json:"parentId"`
	Name     string `json:"name"`
	Mode     uint32 `json:"mode"`
}

type MkdirRequest struct {
	Cred
	ParentID uint64 `json:"parentId"`
	Name     string `json:"name"`
	Mode     uint32 `json:"mode"`
}

type RmdirRequest struct {
	Cred
	ParentID uint64 `json:"parentId"`
	Name     string `json:"name"`
}

type LinkRequest struct {
	Cred
	InodeID  uint64 `json:"inodeId"`
	ParentID uint64 `json:"parentId"`
	Name     string `json:"name"`
}

type SymlinkRequest struct {
	Cred
	ParentID uint64 `json:"parentId"`
	Name     string `json:"name"`
	Target   string `json:"target"`
}

type UnlinkRequest struct {
	Cred
	ParentID uint64 `json:"parentId"`
	Name     string `json:"name"`
}

type OpenRequest struct {
	Cred
	InodeID uint64 `json:"inodeId"`
	Flags   int    `json:"flags"`
}

type ReadRequest struct {
	Cred
	InodeID uint64 `json:"inodeId"`
	Offset  int64  `json:"offset"`
	Length  int64  `json:"length"`
}

type WriteRequest struct {
	Cred
	InodeID uint64 `json:"inodeId"`
	Offset  int64  `json:"offset"`
	Data    []byte `json:"data"`
}

type ReadlinkRequest struct {
	InodeID uint64 `json:"inodeId"`
}

type ReadDirRequest struct {
	InodeID    uint64 `json:"inodeId"`
	Cookie     int    `json:"cookie"`
	MaxEntries int    `json:"maxEntries"`
}

type JournalRequest struct{}

type FsStatRequest struct{}

// --- Response Bodies ---

type LookupResponse struct {
	InodeID uint64 `json:"inodeId"`
}

type ReadResponse struct {
	Data []byte `json:"data"`
	Next int64  `json:"next"`
}

type WriteResponse struct {
	Written int `json:"written"`
}

type ReadlinkResponse struct {
	Target string `json:"target"`
}

type ReadDirResponse struct {
	Entries []fss.DirEntry `json:"entries"`
	Cookie  int            `json:"cookie"`
	EOF     bool           `json:"eof"`
}

func (c Cred) Credential() fss.Credential {
	return fss.Credential{UID: c.UID, GID: c.GID}
}
