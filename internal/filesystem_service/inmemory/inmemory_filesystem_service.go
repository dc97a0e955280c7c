package inmemory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AnishMulay/vtfs/internal/content_store"
	"github.com/AnishMulay/vtfs/internal/directory_tree"
	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/AnishMulay/vtfs/internal/inode_table"
	"github.com/AnishMulay/vtfs/internal/journal_log"
	"github.com/AnishMulay/vtfs/internal/log_service"
	"github.com/AnishMulay/vtfs/internal/permission_checker"
	"github.com/google/uuid"
)

const (
	DefaultMaxFilenameSize    = 255
	DefaultMaxNegativeEntries = 4096
	MaxSymlinkTarget          = 4096
)

type Options struct {
	MaxInodes              int
	MaxFilenameSize        int
	ContentCapacity        int
	DefaultContent         string
	JournalCapacity        int
	LegacyJournalNumbering bool
	// MaxNegativeEntries bounds cached lookup misses. 0 means unbounded.
	MaxNegativeEntries int

	RootMode uint32
	RootUID  uint32
	RootGID  uint32

	// SuperuserBypass lets uid 0 skip permission checks.
	SuperuserBypass bool
}

func DefaultOptions() Options {
	return Options{
		MaxFilenameSize:    DefaultMaxFilenameSize,
		ContentCapacity:    content_store.DefaultCapacity,
		DefaultContent:     content_store.DefaultContent,
		JournalCapacity:    journal_log.DefaultCapacity,
		MaxNegativeEntries: DefaultMaxNegativeEntries,
		RootMode:           0o777,
	}
}

// InMemoryFilesystemService owns every structure of one mounted instance and
// serializes access to all of them with a single lock.
type InMemoryFilesystemService struct {
	opts Options
	ls   log_service.LogService

	mu         sync.RWMutex
	superblock *fss.Superblock
	inodes     *inode_table.InodeTable
	tree       *directory_tree.DirectoryTree
	content    *content_store.ContentStore
	journal    *journal_log.JournalLog
}

func NewInMemoryFilesystemService(opts Options, ls log_service.LogService) *InMemoryFilesystemService {
	if opts.MaxFilenameSize <= 0 {
		opts.MaxFilenameSize = DefaultMaxFilenameSize
	}
	if ls == nil {
		ls = log_service.NopLogService{}
	}
	return &InMemoryFilesystemService{opts: opts, ls: ls}
}

// --- Lifecycle ---

func (s *InMemoryFilesystemService) Mount(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.superblock != nil {
		return 0, fmt.Errorf("%w: already mounted as %s", fss.ErrInvalidOperation, s.superblock.FsID)
	}

	inodes := inode_table.New(s.opts.MaxInodes)
	tree := directory_tree.New(inodes)
	tree.SetNegativeLimit(s.opts.MaxNegativeEntries)
	root, err := tree.MakeRoot(s.opts.RootMode, s.opts.RootUID, s.opts.RootGID)
	if err != nil {
		return 0, err
	}

	s.inodes = inodes
	s.tree = tree
	s.content = content_store.New(s.opts.ContentCapacity)
	s.journal = journal_log.New(s.opts.JournalCapacity, s.opts.LegacyJournalNumbering, s.ls)
	s.superblock = &fss.Superblock{
		FsID:            uuid.New().String(),
		RootInodeID:     root.InodeID,
		MaxInodes:       s.opts.MaxInodes,
		ContentCapacity: s.content.Capacity(),
		JournalCapacity: s.journal.Capacity(),
		MaxFilenameSize: s.opts.MaxFilenameSize,
		MountedAt:       time.Now(),
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Mounted filesystem",
		Metadata: map[string]any{"fsId": s.superblock.FsID, "root": root.InodeID},
	})
	return root.InodeID, nil
}

func (s *InMemoryFilesystemService) Unmount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.superblock == nil {
		return fss.ErrNotMounted
	}

	fsID := s.superblock.FsID
	s.superblock = nil
	s.inodes = nil
	s.tree = nil
	s.content = nil
	s.journal = nil

	s.ls.Info(log_service.LogEvent{Message: "Unmounted filesystem", Metadata: map[string]any{"fsId": fsID}})
	return nil
}

// --- Helpers (must be called with a lock held) ---

func (s *InMemoryFilesystemService) mounted() error {
	if s.superblock == nil {
		return fss.ErrNotMounted
	}
	return nil
}

func (s *InMemoryFilesystemService) checkAccess(inode *fss.Inode, mask fss.AccessMask, cred fss.Credential, op string) error {
	if s.opts.SuperuserBypass && cred.UID == 0 {
		return nil
	}
	if err := permission_checker.Check(inode, mask, cred); err != nil {
		s.ls.Warn(log_service.LogEvent{
			Message:  "Permission denied",
			Metadata: map[string]any{"op": op, "inode": inode.InodeID, "uid": cred.UID, "gid": cred.GID, "want": mask.String()},
		})
		return err
	}
	return nil
}

// parentDir resolves a directory that is about to gain or lose an entry.
func (s *InMemoryFilesystemService) parentDir(parentID uint64, name string) (*fss.Inode, error) {
	if err := fss.ValidateName(name, s.opts.MaxFilenameSize); err != nil {
		return nil, err
	}
	parent, err := s.inodes.Get(parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsDir() {
		return nil, fmt.Errorf("%w: inode %d", fss.ErrNotDir, parentID)
	}
	return parent, nil
}

func (s *InMemoryFilesystemService) ensureAbsent(parentID uint64, name string) error {
	res, err := s.tree.Lookup(parentID, name)
	if err != nil {
		return err
	}
	if res.State == directory_tree.Found {
		return fmt.Errorf("%w: %q in directory %d", fss.ErrAlreadyExists, name, parentID)
	}
	return nil
}

func (s *InMemoryFilesystemService) sizeOf(inode *fss.Inode) int64 {
	switch inode.Kind {
	case fss.KindRegularFile:
		return int64(s.content.Len())
	case fss.KindSymlink:
		return int64(len(inode.SymlinkTarget))
	default:
		return 0
	}
}

func (s *InMemoryFilesystemService) snapshot(inode *fss.Inode) *fss.Inode {
	clone := *inode
	clone.Size = s.sizeOf(inode)
	return &clone
}

// allocateLinked allocates an inode and binds it under parentID. If binding
// fails the inode is released so nothing partial stays visible.
func (s *InMemoryFilesystemService) allocateLinked(parentID uint64, name string, kind fss.InodeKind, mode uint32, cred fss.Credential, init func(*fss.Inode)) (*fss.Inode, error) {
	inode, err := s.inodes.Allocate(kind, mode, cred.UID, cred.GID)
	if err != nil {
		return nil, err
	}
	if init != nil {
		init(inode)
	}
	if err := s.tree.Bind(parentID, name, inode.InodeID); err != nil {
		s.inodes.Release(inode.InodeID)
		return nil, err
	}
	if err := s.inodes.IncrementLink(inode.InodeID); err != nil {
		return nil, err
	}
	return inode, nil
}

// --- Namespace ---

func (s *InMemoryFilesystemService) Lookup(ctx context.Context, parentID uint64, name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mounted(); err != nil {
		return 0, err
	}
	if err := fss.ValidateName(name, s.opts.MaxFilenameSize); err != nil {
		return 0, err
	}

	res, err := s.tree.Lookup(parentID, name)
	if err != nil {
		return 0, err
	}

	switch res.State {
	case directory_tree.Found:
		return res.Target, nil
	case directory_tree.Missing:
		if err := s.tree.AddNegative(parentID, name); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("%w: %q in directory %d", fss.ErrNotFound, name, parentID)
}

// LookupPath walks an absolute path from the root. "." segments and repeated
// slashes are skipped. ".." is rejected with ErrInvalidName because entries do
// not record their parent; callers clean the path first.
func (s *InMemoryFilesystemService) LookupPath(ctx context.Context, path string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.mounted(); err != nil {
		return 0, err
	}
	if !strings.HasPrefix(path, "/") {
		return 0, fmt.Errorf("%w: %q is not absolute", fss.ErrInvalidName, path)
	}

	currentID := s.superblock.RootInodeID
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			return 0, fmt.Errorf("%w: %q contains \"..\"", fss.ErrInvalidName, path)
		}

		res, err := s.tree.Lookup(currentID, part)
		if err != nil {
			return 0, err
		}
		if res.State != directory_tree.Found {
			return 0, fmt.Errorf("%w: %q", fss.ErrNotFound, path)
		}
		currentID = res.Target
	}
	return currentID, nil
}

func (s *InMemoryFilesystemService) Create(ctx context.Context, parentID uint64, name string, mode uint32, cred fss.Credential) (*fss.Inode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mounted(); err != nil {
		return nil, err
	}
	parent, err := s.parentDir(parentID, name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAbsent(parentID, name); err != nil {
		return nil, err
	}
	if err := s.checkAccess(parent, fss.AccessWrite, cred, "create"); err != nil {
		return nil, err
	}

	inode, err := s.allocateLinked(parentID, name, fss.KindRegularFile, mode, cred, nil)
	if err != nil {
		return nil, err
	}
	// The parent gains a link per created file. Unlink leaves it as is.
	if err := s.inodes.IncrementLink(parentID); err != nil {
		return nil, err
	}

	s.journal.Begin()
	txn := s.journal.Record(inode.InodeID, fss.JournalCreate, "create "+name)
	s.ls.Debug(log_service.LogEvent{
		Message:  "Created file",
		Metadata: map[string]any{"parent": parentID, "name": name, "inode": inode.InodeID, "txn": txn},
	})
	return s.snapshot(inode), nil
}

func (s *InMemoryFilesystemService) Mkdir(ctx context.Context, parentID uint64, name string, mode uint32, cred fss.Credential) (*fss.Inode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mounted(); err != nil {
		return nil, err
	}
	parent, err := s.parentDir(parentID, name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAbsent(parentID, name); err != nil {
		return nil, err
	}
	if err := s.checkAccess(parent, fss.AccessWrite, cred, "mkdir"); err != nil {
		return nil, err
	}

	dir, err := s.tree.Mkdir(parentID, name, mode, cred.UID, cred.GID)
	if err != nil {
		return nil, err
	}

	// Only create and unlink are journaled.
	s.ls.Debug(log_service.LogEvent{
		Message:  "Created directory",
		Metadata: map[string]any{"parent": parentID, "name": name, "inode": dir.InodeID},
	})
	return s.snapshot(dir), nil
}

func (s *InMemoryFilesystemService) Rmdir(ctx context.Context, parentID uint64, name string, cred fss.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mounted(); err != nil {
		return err
	}
	parent, err := s.parentDir(parentID, name)
	if err != nil {
		return err
	}
	if err := s.checkAccess(parent, fss.AccessWrite, cred, "rmdir"); err != nil {
		return err
	}

	if err := s.tree.Rmdir(parentID, name); err != nil {
		return err
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Removed directory",
		Metadata: map[string]any{"parent": parentID, "name": name},
	})
	return nil
}

func (s *InMemoryFilesystemService) Link(ctx context.Context, inodeID uint64, parentID uint64, name string, cred fss.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mounted(); err != nil {
		return err
	}
	target, err := s.inodes.Get(inodeID)
	if err != nil {
		return err
	}
	if target.IsDir() {
		return fmt.Errorf("%w: cannot hard link directory %d", fss.ErrIsDir, inodeID)
	}
	parent, err := s.parentDir(parentID, name)
	if err != nil {
		return err
	}
	if err := s.ensureAbsent(parentID, name); err != nil {
		return err
	}
	if err := s.checkAccess(parent, fss.AccessWrite, cred, "link"); err != nil {
		return err
	}

	if err := s.tree.Bind(parentID, name, inodeID); err != nil {
		return err
	}
	if err := s.inodes.IncrementLink(inodeID); err != nil {
		return err
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Linked inode",
		Metadata: map[string]any{"parent": parentID, "name": name, "inode": inodeID, "links": target.LinkCount},
	})
	return nil
}

func (s *InMemoryFilesystemService) Symlink(ctx context.Context, parentID uint64, name string, target string, cred fss.Credential) (*fss.Inode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mounted(); err != nil {
		return nil, err
	}
	if target == "" || len(target) > MaxSymlinkTarget {
		return nil, fmt.Errorf("%w: symlink target length %d", fss.ErrInvalidOperation, len(target))
	}
	parent, err := s.parentDir(parentID, name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAbsent(parentID, name); err != nil {
		return nil, err
	}
	if err := s.checkAccess(parent, fss.AccessWrite, cred, "symlink"); err != nil {
		return nil, err
	}

	inode, err := s.allocateLinked(parentID, name, fss.KindSymlink, 0o777, cred, func(i *fss.Inode) {
		i.SymlinkTarget = target
		i.Size = int64(len(target))
	})
	if err != nil {
		return nil, err
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Created symlink",
		Metadata: map[string]any{"parent": parentID, "name": name, "inode": inode.InodeID, "target": target},
	})
	return s.snapshot(inode), nil
}

func (s *InMemoryFilesystemService) Unlink(ctx context.Context, parentID uint64, name string, cred fss.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mounted(); err != nil {
		return err
	}
	parent, err := s.parentDir(parentID, name)
	if err != nil {
		return err
	}

	res, err := s.tree.Lookup(parentID, name)
	if err != nil {
		return err
	}
	if res.State != directory_tree.Found {
		return fmt.Errorf("%w: %q in directory %d", fss.ErrNotFound, name, parentID)
	}
	target, err := s.inodes.Get(res.Target)
	if err != nil {
		return err
	}
	if target.IsDir() {
		return fmt.Errorf("%w: %q", fss.ErrIsDir, name)
	}
	if err := s.checkAccess(parent, fss.AccessWrite, cred, "unlink"); err != nil {
		return err
	}

	if _, err := s.tree.RemoveEntry(parentID, name); err != nil {
		return err
	}
	remaining, err := s.inodes.DecrementLink(res.Target)
	if err != nil {
		return err
	}

	txn := s.journal.Record(res.Target, fss.JournalDelete, "unlink "+name)
	s.ls.Debug(log_service.LogEvent{
		Message:  "Unlinked entry",
		Metadata: map[string]any{"parent": parentID, "name": name, "inode": res.Target, "links": remaining, "txn": txn},
	})
	return nil
}

// --- Data ---

func (s *InMemoryFilesystemService) Open(ctx context.Context, inodeID uint64, flags fss.OpenFlags, cred fss.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mounted(); err != nil {
		return err
	}
	inode, err := s.inodes.Get(inodeID)
	if err != nil {
		return err
	}

	switch inode.Kind {
	case fss.KindDirectory:
		if flags != fss.OpenReadOnly {
			return fmt.Errorf("%w: inode %d", fss.ErrIsDir, inodeID)
		}
		return s.checkAccess(inode, fss.AccessRead, cred, "open")
	case fss.KindSymlink:
		return fmt.Errorf("%w: inode %d is a symlink", fss.ErrInvalidOperation, inodeID)
	}

	if err := s.checkAccess(inode, flags.Access(), cred, "open"); err != nil {
		return err
	}
	if s.content.SeedDefault(s.opts.DefaultContent) {
		s.ls.Debug(log_service.LogEvent{
			Message:  "Seeded shared content",
			Metadata: map[string]any{"inode": inodeID, "bytes": s.content.Len()},
		})
	}
	return nil
}

// regularFile fetches inodeID and insists it is a regular file.
func (s *InMemoryFilesystemService) regularFile(inodeID uint64) (*fss.Inode, error) {
	inode, err := s.inodes.Get(inodeID)
	if err != nil {
		return nil, err
	}
	switch inode.Kind {
	case fss.KindRegularFile:
		return inode, nil
	case fss.KindDirectory:
		return nil, fmt.Errorf("%w: inode %d", fss.ErrIsDir, inodeID)
	default:
		return nil, fmt.Errorf("%w: inode %d is not a regular file", fss.ErrInvalidOperation, inodeID)
	}
}

func (s *InMemoryFilesystemService) Read(ctx context.Context, inodeID uint64, offset int64, length int64, cred fss.Credential) ([]byte, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.mounted(); err != nil {
		return nil, 0, err
	}
	if offset < 0 || length < 0 {
		return nil, 0, fmt.Errorf("%w: offset %d length %d", fss.ErrInvalidOperation, offset, length)
	}
	inode, err := s.regularFile(inodeID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.checkAccess(inode, fss.AccessRead, cred, "read"); err != nil {
		return nil, 0, err
	}

	data, next := s.content.Read(offset, length)
	return data, next, nil
}

func (s *InMemoryFilesystemService) Write(ctx context.Context, inodeID uint64, offset int64, data []byte, cred fss.Credential) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mounted(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: offset %d", fss.ErrInvalidOperation, offset)
	}
	inode, err := s.regularFile(inodeID)
	if err != nil {
		return 0, err
	}
	if err := s.checkAccess(inode, fss.AccessWrite, cred, "write"); err != nil {
		return 0, err
	}

	n := s.content.Write(offset, data)
	if n > 0 {
		now := time.Now()
		inode.ModifyTime = now
		inode.ChangeTime = now
	}
	if n < len(data) {
		s.ls.Debug(log_service.LogEvent{
			Message:  "Write truncated at content capacity",
			Metadata: map[string]any{"inode": inodeID, "offset": offset, "requested": len(data), "written": n},
		})
	}
	return n, nil
}

func (s *InMemoryFilesystemService) Readlink(ctx context.Context, inodeID uint64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.mounted(); err != nil {
		return "", err
	}
	inode, err := s.inodes.Get(inodeID)
	if err != nil {
		return "", err
	}
	if inode.Kind != fss.KindSymlink {
		return "", fmt.Errorf("%w: inode %d is not a symlink", fss.ErrInvalidOperation, inodeID)
	}
	return inode.SymlinkTarget, nil
}

// --- Attributes & introspection ---

func (s *InMemoryFilesystemService) GetAttributes(ctx context.Context, inodeID uint64) (*fss.Attributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.mounted(); err != nil {
		return nil, err
	}
	inode, err := s.inodes.Get(inodeID)
	if err != nil {
		return nil, err
	}

	return &fss.Attributes{
		InodeID:    inode.InodeID,
		Kind:       inode.Kind,
		Mode:       inode.Mode,
		Size:       s.sizeOf(inode),
		LinkCount:  inode.LinkCount,
		AccessTime: inode.AccessTime,
		ModifyTime: inode.ModifyTime,
		ChangeTime: inode.ChangeTime,
		UID:        inode.OwnerUID,
		GID:        inode.OwnerGID,
	}, nil
}

func (s *InMemoryFilesystemService) Access(ctx context.Context, inodeID uint64, mask fss.AccessMask, cred fss.Credential) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.mounted(); err != nil {
		return err
	}
	inode, err := s.inodes.Get(inodeID)
	if err != nil {
		return err
	}
	return s.checkAccess(inode, mask, cred, "access")
}

func (s *InMemoryFilesystemService) ReadDir(ctx context.Context, inodeID uint64, cookie int, maxEntries int) ([]fss.DirEntry, int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.mounted(); err != nil {
		return nil, 0, false, err
	}
	entries, err := s.tree.Children(inodeID)
	if err != nil {
		return nil, 0, false, err
	}

	if cookie < 0 {
		cookie = 0
	}
	if cookie >= len(entries) {
		return []fss.DirEntry{}, cookie, true, nil
	}

	end := len(entries)
	if maxEntries > 0 && cookie+maxEntries < end {
		end = cookie + maxEntries
	}
	return entries[cookie:end], end, end == len(entries), nil
}

func (s *InMemoryFilesystemService) Journal(ctx context.Context) ([]fss.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.mounted(); err != nil {
		return nil, err
	}
	return s.journal.Entries(), nil
}

func (s *InMemoryFilesystemService) GetFsStat(ctx context.Context) (*fss.FileSystemStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.mounted(); err != nil {
		return nil, err
	}

	return &fss.FileSystemStats{
		FsID:            s.superblock.FsID,
		TotalInodes:     int64(s.inodes.Limit()),
		UsedInodes:      int64(s.inodes.Count()),
		ContentLength:   int64(s.content.Len()),
		ContentCapacity: int64(s.content.Capacity()),
		JournalEntries:  s.journal.Len(),
		JournalCapacity: s.journal.Capacity(),
		LastTxnID:       s.journal.LastTxnID(),
	}, nil
}

var _ fss.FilesystemService = (*InMemoryFilesystemService)(nil)
