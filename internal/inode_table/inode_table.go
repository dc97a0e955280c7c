package inode_table

import (
	"fmt"
	"time"

	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
)

// InodeTable owns the inode records of one mounted instance. It has no lock of
// its own; the filesystem service serializes access.
type InodeTable struct {
	inodes    map[uint64]*fss.Inode
	nextID    uint64
	maxInodes int
}

// New returns an empty table. maxInodes <= 0 means unlimited.
func New(maxInodes int) *InodeTable {
	return &InodeTable{
		inodes:    make(map[uint64]*fss.Inode),
		nextID:    fss.RootInodeID,
		maxInodes: maxInodes,
	}
}

// Allocate creates a record with a fresh id. Files and symlinks start with no
// links; directories start at 1 for their own "." entry.
func (t *InodeTable) Allocate(kind fss.InodeKind, mode uint32, uid, gid uint32) (*fss.Inode, error) {
	if t.maxInodes > 0 && len(t.inodes) >= t.maxInodes {
		return nil, fmt.Errorf("%w: inode table full (%d)", fss.ErrOutOfSpace, t.maxInodes)
	}

	now := time.Now()
	inode := &fss.Inode{
		InodeID:    t.nextID,
		Kind:       kind,
		Mode:       mode & fss.PermMask,
		OwnerUID:   uid,
		OwnerGID:   gid,
		AccessTime: now,
		ModifyTime: now,
		ChangeTime: now,
	}
	if kind == fss.KindDirectory {
		inode.LinkCount = 1
	}

	t.inodes[inode.InodeID] = inode
	t.nextID++
	return inode, nil
}

func (t *InodeTable) Get(id uint64) (*fss.Inode, error) {
	inode, ok := t.inodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: inode %d", fss.ErrNotFound, id)
	}
	return inode, nil
}

func (t *InodeTable) IncrementLink(id uint64) error {
	inode, err := t.Get(id)
	if err != nil {
		return err
	}
	inode.LinkCount++
	inode.ChangeTime = time.Now()
	return nil
}

// DecrementLink drops one link and destroys the inode when none remain.
func (t *InodeTable) DecrementLink(id uint64) (uint32, error) {
	inode, err := t.Get(id)
	if err != nil {
		return 0, err
	}
	if inode.LinkCount == 0 {
		return 0, fmt.Errorf("%w: inode %d link count underflow", fss.ErrInvalidOperation, id)
	}

	inode.LinkCount--
	inode.ChangeTime = time.Now()
	if inode.LinkCount == 0 {
		delete(t.inodes, id)
	}
	return inode.LinkCount, nil
}

// Release destroys an inode regardless of its link count. Used to undo an
// allocation whose directory entry could not be created, and by rmdir.
func (t *InodeTable) Release(id uint64) {
	if inode, ok := t.inodes[id]; ok {
		inode.LinkCount = 0
		delete(t.inodes, id)
	}
}

func (t *InodeTable) Count() int {
	return len(t.inodes)
}

func (t *InodeTable) Limit() int {
	return t.maxInodes
}
