package filesystem_service

import (
	"time"
)

type InodeKind int

const (
	KindRegularFile InodeKind = iota
	KindDirectory
	KindSymlink
)

func (k InodeKind) String() string {
	switch k {
	case KindRegularFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// PermMask keeps only the owner/group/other rwx bits of a mode.
const PermMask uint32 = 0o777

// RootInodeID is the id handed out to the root directory of every mount.
const RootInodeID uint64 = 1

// Inode is the fundamental metadata unit.
type Inode struct {
	InodeID   uint64    `json:"inodeId"`
	Kind      InodeKind `json:"kind"`
	LinkCount uint32    `json:"linkCount"`
	Mode      uint32    `json:"mode"` // Permission bits
	OwnerUID  uint32    `json:"uid"`
	OwnerGID  uint32    `json:"gid"`

	AccessTime time.Time `json:"atime"`
	ModifyTime time.Time `json:"mtime"`
	ChangeTime time.Time `json:"ctime"`

	// For Symlinks: the stored target text. Size mirrors its length.
	SymlinkTarget string `json:"symlinkTarget,omitempty"`
	Size          int64  `json:"size"`
}

func (i *Inode) IsDir() bool {
	return i.Kind == KindDirectory
}

func (i *Inode) IsRegular() bool {
	return i.Kind == KindRegularFile
}

// Credential is the identity an operation is evaluated under.
type Credential struct {
	UID uint32 `json:"uid"`
	GID uint32 `json:"gid"`
}

// AccessMask uses the classic rwx bit layout (r=4, w=2, x=1).
type AccessMask uint32

const (
	AccessExecute AccessMask = 1 << iota
	AccessWrite
	AccessRead
)

func (m AccessMask) String() string {
	b := []byte("---")
	if m&AccessRead != 0 {
		b[0] = 'r'
	}
	if m&AccessWrite != 0 {
		b[1] = 'w'
	}
	if m&AccessExecute != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// OpenFlags follows the O_ACCMODE convention.
type OpenFlags int

const (
	OpenReadOnly OpenFlags = iota
	OpenWriteOnly
	OpenReadWrite
)

// Access converts open flags into the permission bits they require.
func (f OpenFlags) Access() AccessMask {
	switch f {
	case OpenWriteOnly:
		return AccessWrite
	case OpenReadWrite:
		return AccessRead | AccessWrite
	default:
		return AccessRead
	}
}

type Attributes struct {
	InodeID    uint64    `json:"inodeId"`
	Kind       InodeKind `json:"kind"`
	Mode       uint32    `json:"mode"`
	Size       int64     `json:"size"`
	LinkCount  uint32    `json:"linkCount"`
	AccessTime time.Time `json:"atime"`
	ModifyTime time.Time `json:"mtime"`
	ChangeTime time.Time `json:"ctime"`
	UID        uint32    `json:"uid"`
	GID        uint32    `json:"gid"`
}

type DirEntry struct {
	Name    string    `json:"name"`
	InodeID uint64    `json:"inodeId"`
	Kind    InodeKind `json:"kind"`
}

// JournalOp tags a journal entry.
type JournalOp string

const (
	JournalCreate JournalOp = "C"
	JournalDelete JournalOp = "D"
)

type JournalEntry struct {
	TransactionID uint64    `json:"txnId"`
	InodeID       uint64    `json:"inodeId"`
	Op            JournalOp `json:"op"`
	Description   string    `json:"description"`
	Timestamp     time.Time `json:"timestamp"`
}

type Superblock struct {
	FsID            string
	RootInodeID     uint64
	MaxInodes       int
	ContentCapacity int
	JournalCapacity int
	MaxFilenameSize int
	MountedAt       time.Time
}

type FileSystemStats struct {
	FsID            string `json:"fsId"`
	TotalInodes     int64  `json:"totalInodes"`
	UsedInodes      int64  `json:"usedInodes"`
	ContentLength   int64  `json:"contentLength"`
	ContentCapacity int64  `json:"contentCapacity"`
	JournalEntries  int    `json:"journalEntries"`
	JournalCapacity int    `json:"journalCapacity"`
	LastTxnID       uint64 `json:"lastTxnId"`
}
