package directory_tree

import (
	"fmt"
	"strings"
	"time"

	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/AnishMulay/vtfs/internal/inode_table"
	"golang.org/x/exp/slices"
)

type LookupState int

const (
	Missing LookupState = iota
	Negative
	Found
)

type LookupResult struct {
	State  LookupState
	Target uint64
}

// entry is a name binding inside one directory. A negative entry records a
// name that is known not to resolve.
type entry struct {
	target   uint64
	negative bool
}

// DirectoryTree maps names to inodes per directory. Like the inode table it
// relies on the filesystem service for locking.
type DirectoryTree struct {
	inodes *inode_table.InodeTable
	dirs   map[uint64]map[string]*entry
	rootID uint64

	// negLimit caps how many negative entries the whole tree keeps; 0 means
	// no cap. Past the cap misses are simply not remembered.
	negLimit  int
	negatives int
}

func New(inodes *inode_table.InodeTable) *DirectoryTree {
	return &DirectoryTree{
		inodes: inodes,
		dirs:   make(map[uint64]map[string]*entry),
	}
}

// MakeRoot allocates the root directory. Its ".." points back at itself, so
// it starts with two links like any other directory.
func (d *DirectoryTree) MakeRoot(mode uint32, uid, gid uint32) (*fss.Inode, error) {
	if d.rootID != 0 {
		return nil, fmt.Errorf("%w: root already exists", fss.ErrAlreadyExists)
	}

	root, err := d.inodes.Allocate(fss.KindDirectory, mode, uid, gid)
	if err != nil {
		return nil, err
	}
	if err := d.inodes.IncrementLink(root.InodeID); err != nil {
		return nil, err
	}

	d.dirs[root.InodeID] = make(map[string]*entry)
	d.rootID = root.InodeID
	return root, nil
}

func (d *DirectoryTree) RootID() uint64 {
	return d.rootID
}

func (d *DirectoryTree) SetNegativeLimit(n int) {
	d.negLimit = n
}

func (d *DirectoryTree) NegativeCount() int {
	return d.negatives
}

func (d *DirectoryTree) negativeRoom() bool {
	return d.negLimit <= 0 || d.negatives < d.negLimit
}

func (d *DirectoryTree) AddEntry(parentID uint64, name string, target uint64) error {
	children, err := d.children(parentID)
	if err != nil {
		return err
	}
	if _, exists := children[name]; exists {
		return fmt.Errorf("%w: %q in directory %d", fss.ErrAlreadyExists, name, parentID)
	}

	children[name] = &entry{target: target}
	d.touch(parentID)
	return nil
}

// AddNegative remembers that name does not resolve in parentID. Existing
// entries are left alone, and nothing is recorded once the limit is reached.
func (d *DirectoryTree) AddNegative(parentID uint64, name string) error {
	children, err := d.children(parentID)
	if err != nil {
		return err
	}
	if _, exists := children[name]; !exists && d.negativeRoom() {
		children[name] = &entry{negative: true}
		d.negatives++
	}
	return nil
}

// Instantiate binds a negative entry to target.
func (d *DirectoryTree) Instantiate(parentID uint64, name string, target uint64) error {
	children, err := d.children(parentID)
	if err != nil {
		return err
	}

	e, exists := children[name]
	if !exists {
		return fmt.Errorf("%w: no negative entry %q in directory %d", fss.ErrNotFound, name, parentID)
	}
	if !e.negative {
		return fmt.Errorf("%w: %q in directory %d", fss.ErrAlreadyExists, name, parentID)
	}

	e.target = target
	e.negative = false
	d.negatives--
	d.touch(parentID)
	return nil
}

// Bind adds name, reusing a negative entry if one exists.
func (d *DirectoryTree) Bind(parentID uint64, name string, target uint64) error {
	res, err := d.Lookup(parentID, name)
	if err != nil {
		return err
	}
	if res.State == Negative {
		return d.Instantiate(parentID, name, target)
	}
	return d.AddEntry(parentID, name, target)
}

func (d *DirectoryTree) Lookup(parentID uint64, name string) (LookupResult, error) {
	children, err := d.children(parentID)
	if err != nil {
		return LookupResult{}, err
	}

	e, exists := children[name]
	switch {
	case !exists:
		return LookupResult{State: Missing}, nil
	case e.negative:
		return LookupResult{State: Negative}, nil
	default:
		return LookupResult{State: Found, Target: e.target}, nil
	}
}

// RemoveEntry unbinds name and leaves a negative entry in its place while the
// negative limit allows it.
func (d *DirectoryTree) RemoveEntry(parentID uint64, name string) (uint64, error) {
	children, err := d.children(parentID)
	if err != nil {
		return 0, err
	}

	e, exists := children[name]
	if !exists || e.negative {
		return 0, fmt.Errorf("%w: %q in directory %d", fss.ErrNotFound, name, parentID)
	}

	target := e.target
	if d.negativeRoom() {
		e.target = 0
		e.negative = true
		d.negatives++
	} else {
		delete(children, name)
	}
	d.touch(parentID)
	return target, nil
}

// Mkdir allocates a directory under parentID. The parent gains a link for the
// new ".." and the new directory gains one for its own ".".
func (d *DirectoryTree) Mkdir(parentID uint64, name string, mode uint32, uid, gid uint32) (*fss.Inode, error) {
	res, err := d.Lookup(parentID, name)
	if err != nil {
		return nil, err
	}
	if res.State == Found {
		return nil, fmt.Errorf("%w: %q in directory %d", fss.ErrAlreadyExists, name, parentID)
	}

	dir, err := d.inodes.Allocate(fss.KindDirectory, mode, uid, gid)
	if err != nil {
		return nil, err
	}
	if err := d.Bind(parentID, name, dir.InodeID); err != nil {
		d.inodes.Release(dir.InodeID)
		return nil, err
	}

	d.dirs[dir.InodeID] = make(map[string]*entry)
	if err := d.inodes.IncrementLink(parentID); err != nil {
		return nil, err
	}
	if err := d.inodes.IncrementLink(dir.InodeID); err != nil {
		return nil, err
	}
	return dir, nil
}

// Rmdir removes an empty directory. Negative entries do not count as children.
func (d *DirectoryTree) Rmdir(parentID uint64, name string) error {
	res, err := d.Lookup(parentID, name)
	if err != nil {
		return err
	}
	if res.State != Found {
		return fmt.Errorf("%w: %q in directory %d", fss.ErrNotFound, name, parentID)
	}

	children, ok := d.dirs[res.Target]
	if !ok {
		return fmt.Errorf("%w: %q", fss.ErrNotDir, name)
	}
	for _, e := range children {
		if !e.negative {
			return fmt.Errorf("%w: %q", fss.ErrNotEmpty, name)
		}
	}

	if _, err := d.RemoveEntry(parentID, name); err != nil {
		return err
	}
	d.negatives -= len(children)
	delete(d.dirs, res.Target)
	d.inodes.Release(res.Target)
	_, err = d.inodes.DecrementLink(parentID)
	return err
}

// IsDir reports whether id is a directory known to the tree.
func (d *DirectoryTree) IsDir(id uint64) bool {
	_, ok := d.dirs[id]
	return ok
}

// Children lists the positive entries of dirID ordered by name.
func (d *DirectoryTree) Children(dirID uint64) ([]fss.DirEntry, error) {
	children, err := d.children(dirID)
	if err != nil {
		return nil, err
	}

	entries := make([]fss.DirEntry, 0, len(children))
	for name, e := range children {
		if e.negative {
			continue
		}
		kind := fss.KindRegularFile
		if inode, err := d.inodes.Get(e.target); err == nil {
			kind = inode.Kind
		}
		entries = append(entries, fss.DirEntry{Name: name, InodeID: e.target, Kind: kind})
	}

	slices.SortFunc(entries, func(a, b fss.DirEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return entries, nil
}

func (d *DirectoryTree) children(dirID uint64) (map[string]*entry, error) {
	children, ok := d.dirs[dirID]
	if ok {
		return children, nil
	}
	if _, err := d.inodes.Get(dirID); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: inode %d", fss.ErrNotDir, dirID)
}

func (d *DirectoryTree) touch(dirID uint64) {
	if inode, err := d.inodes.Get(dirID); err == nil {
		now := time.Now()
		inode.ModifyTime = now
		inode.ChangeTime = now
	}
}
