package filesystem_service

import (
	"context"
)

type FilesystemService interface {
	// --- Lifecycle ---
	// Mount creates the root directory and returns its id. No other operation
	// is accepted before Mount.
	Mount(ctx context.Context) (uint64, error)
	// Unmount drops every inode, entry, content byte and journal entry.
	Unmount(ctx context.Context) error

	// --- Namespace ---
	// Lookup resolves a child name within a directory to an inode id. Misses are
	// remembered as negative entries.
	Lookup(ctx context.Context, parentID uint64, name string) (uint64, error)
	// LookupPath walks an absolute path from the root. Symlinks are not followed.
	LookupPath(ctx context.Context, path string) (uint64, error)

	Create(ctx context.Context, parentID uint64, name string, mode uint32, cred Credential) (*Inode, error)
	Mkdir(ctx context.Context, parentID uint64, name string, mode uint32, cred Credential) (*Inode, error)
	Rmdir(ctx context.Context, parentID uint64, name string, cred Credential) error
	Link(ctx context.Context, inodeID uint64, parentID uint64, name string, cred Credential) error
	Symlink(ctx context.Context, parentID uint64, name string, target string, cred Credential) (*Inode, error)
	Unlink(ctx context.Context, parentID uint64, name string, cred Credential) error

	// --- Data ---
	Open(ctx context.Context, inodeID uint64, flags OpenFlags, cred Credential) error
	Read(ctx context.Context, inodeID uint64, offset int64, length int64, cred Credential) ([]byte, int64, error)
	Write(ctx context.Context, inodeID uint64, offset int64, data []byte, cred Credential) (int, error)
	Readlink(ctx context.Context, inodeID uint64) (string, error)

	// --- Attributes & introspection ---
	GetAttributes(ctx context.Context, inodeID uint64) (*Attributes, error)
	Access(ctx context.Context, inodeID uint64, mask AccessMask, cred Credential) error
	ReadDir(ctx context.Context, inodeID uint64, cookie int, maxEntries int) ([]DirEntry, int, bool, error)
	Journal(ctx context.Context) ([]JournalEntry, error)
	GetFsStat(ctx context.Context) (*FileSystemStats, error)
}
