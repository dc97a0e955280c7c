package directory_tree

import (
	"testing"

	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/AnishMulay/vtfs/internal/inode_table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTree(t *testing.T) (*DirectoryTree, *inode_table.InodeTable, uint64) {
	t.Helper()
	table := inode_table.New(0)
	tree := New(table)
	root, err := tree.MakeRoot(0o777, 0, 0)
	require.NoError(t, err)
	return tree, table, root.InodeID
}

func linkCount(t *testing.T, table *inode_table.InodeTable, id uint64) uint32 {
	t.Helper()
	inode, err := table.Get(id)
	require.NoError(t, err)
	return inode.LinkCount
}

func TestDirectoryTree_MakeRoot(t *testing.T) {
	tree, table, rootID := newTree(t)

	assert.Equal(t, fss.RootInodeID, rootID)
	assert.Equal(t, rootID, tree.RootID())
	assert.Equal(t, uint32(2), linkCount(t, table, rootID))

	_, err := tree.MakeRoot(0o777, 0, 0)
	assert.ErrorIs(t, err, fss.ErrAlreadyExists)
}

func TestDirectoryTree_AddAndLookup(t *testing.T) {
	tree, table, rootID := newTree(t)
	file, err := table.Allocate(fss.KindRegularFile, 0o644, 0, 0)
	require.NoError(t, err)

	require.NoError(t, tree.AddEntry(rootID, "f", file.InodeID))

	res, err := tree.Lookup(rootID, "f")
	require.NoError(t, err)
	assert.Equal(t, LookupResult{State: Found, Target: file.InodeID}, res)

	res, err = tree.Lookup(rootID, "missing")
	require.NoError(t, err)
	assert.Equal(t, Missing, res.State)

	err = tree.AddEntry(rootID, "f", file.InodeID)
	assert.ErrorIs(t, err, fss.ErrAlreadyExists)
}

func TestDirectoryTree_NegativeEntries(t *testing.T) {
	tree, table, rootID := newTree(t)

	require.NoError(t, tree.AddNegative(rootID, "ghost"))
	res, err := tree.Lookup(rootID, "ghost")
	require.NoError(t, err)
	assert.Equal(t, Negative, res.State)

	// A negative entry still occupies the name for AddEntry.
	file, err := table.Allocate(fss.KindRegularFile, 0o644, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, tree.AddEntry(rootID, "ghost", file.InodeID), fss.ErrAlreadyExists)

	require.NoError(t, tree.Instantiate(rootID, "ghost", file.InodeID))
	res, err = tree.Lookup(rootID, "ghost")
	require.NoError(t, err)
	assert.Equal(t, LookupResult{State: Found, Target: file.InodeID}, res)

	// Negative entries never shadow a live binding.
	require.NoError(t, tree.AddNegative(rootID, "ghost"))
	res, err = tree.Lookup(rootID, "ghost")
	require.NoError(t, err)
	assert.Equal(t, Found, res.State)
}

func TestDirectoryTree_RemoveEntryLeavesNegative(t *testing.T) {
	tree, table, rootID := newTree(t)
	file, err := table.Allocate(fss.KindRegularFile, 0o644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, tree.AddEntry(rootID, "f", file.InodeID))

	removed, err := tree.RemoveEntry(rootID, "f")
	require.NoError(t, err)
	assert.Equal(t, file.InodeID, removed)

	res, err := tree.Lookup(rootID, "f")
	require.NoError(t, err)
	assert.Equal(t, Negative, res.State)

	_, err = tree.RemoveEntry(rootID, "f")
	assert.ErrorIs(t, err, fss.ErrNotFound)
}

func TestDirectoryTree_MkdirLinkCounts(t *testing.T) {
	tree, table, rootID := newTree(t)
	before := linkCount(t, table, rootID)

	dir, err := tree.Mkdir(rootID, "a", 0o755, 100, 100)
	require.NoError(t, err)

	assert.Equal(t, before+1, linkCount(t, table, rootID))
	assert.Equal(t, uint32(2), linkCount(t, table, dir.InodeID))
	assert.True(t, tree.IsDir(dir.InodeID))

	_, err = tree.Mkdir(rootID, "a", 0o755, 100, 100)
	assert.ErrorIs(t, err, fss.ErrAlreadyExists)
	assert.Equal(t, before+1, linkCount(t, table, rootID))
}

func TestDirectoryTree_MkdirOutOfSpaceLeavesNoEntry(t *testing.T) {
	table := inode_table.New(1)
	tree := New(table)
	root, err := tree.MakeRoot(0o777, 0, 0)
	require.NoError(t, err)

	_, err = tree.Mkdir(root.InodeID, "a", 0o755, 0, 0)
	assert.ErrorIs(t, err, fss.ErrOutOfSpace)

	res, err := tree.Lookup(root.InodeID, "a")
	require.NoError(t, err)
	assert.Equal(t, Missing, res.State)
	assert.Equal(t, uint32(2), linkCount(t, table, root.InodeID))
}

func TestDirectoryTree_Rmdir(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, tree *DirectoryTree, table *inode_table.InodeTable, rootID uint64)
		target  string
		errorIs error
	}{
		{
			name:   "empty directory",
			target: "a",
			setup: func(t *testing.T, tree *DirectoryTree, _ *inode_table.InodeTable, rootID uint64) {
				_, err := tree.Mkdir(rootID, "a", 0o755, 0, 0)
				require.NoError(t, err)
			},
		},
		{
			name:    "missing directory",
			target:  "nope",
			errorIs: fss.ErrNotFound,
		},
		{
			name:    "non-empty directory",
			target:  "a",
			errorIs: fss.ErrNotEmpty,
			setup: func(t *testing.T, tree *DirectoryTree, table *inode_table.InodeTable, rootID uint64) {
				dir, err := tree.Mkdir(rootID, "a", 0o755, 0, 0)
				require.NoError(t, err)
				file, err := table.Allocate(fss.KindRegularFile, 0o644, 0, 0)
				require.NoError(t, err)
				require.NoError(t, tree.AddEntry(dir.InodeID, "f", file.InodeID))
			},
		},
		{
			name:   "only negative children",
			target: "a",
			setup: func(t *testing.T, tree *DirectoryTree, _ *inode_table.InodeTable, rootID uint64) {
				dir, err := tree.Mkdir(rootID, "a", 0o755, 0, 0)
				require.NoError(t, err)
				require.NoError(t, tree.AddNegative(dir.InodeID, "probe"))
			},
		},
		{
			name:    "regular file",
			target:  "f",
			errorIs: fss.ErrInvalidOperation,
			setup: func(t *testing.T, tree *DirectoryTree, table *inode_table.InodeTable, rootID uint64) {
				file, err := table.Allocate(fss.KindRegularFile, 0o644, 0, 0)
				require.NoError(t, err)
				require.NoError(t, tree.AddEntry(rootID, "f", file.InodeID))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, table, rootID := newTree(t)
			if tt.setup != nil {
				tt.setup(t, tree, table, rootID)
			}
			before := linkCount(t, table, rootID)

			err := tree.Rmdir(rootID, tt.target)
			if tt.errorIs != nil {
				assert.ErrorIs(t, err, tt.errorIs)
				assert.Equal(t, before, linkCount(t, table, rootID))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, before-1, linkCount(t, table, rootID))
			res, err := tree.Lookup(rootID, tt.target)
			require.NoError(t, err)
			assert.Equal(t, Negative, res.State)
		})
	}
}

func TestDirectoryTree_Children(t *testing.T) {
	tree, table, rootID := newTree(t)

	dir, err := tree.Mkdir(rootID, "b", 0o755, 0, 0)
	require.NoError(t, err)
	file, err := table.Allocate(fss.KindRegularFile, 0o644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, tree.AddEntry(rootID, "a", file.InodeID))
	require.NoError(t, tree.AddNegative(rootID, "c"))

	got, err := tree.Children(rootID)
	require.NoError(t, err)

	want := []fss.DirEntry{
		{Name: "a", InodeID: file.InodeID, Kind: fss.KindRegularFile},
		{Name: "b", InodeID: dir.InodeID, Kind: fss.KindDirectory},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Children() mismatch (-want +got):\n%s", diff)
	}

	_, err = tree.Children(file.InodeID)
	assert.ErrorIs(t, err, fss.ErrInvalidOperation)
	_, err = tree.Children(999)
	assert.ErrorIs(t, err, fss.ErrNotFound)
}

func TestDirectoryTree_NegativeLimit(t *testing.T) {
	tree, table, rootID := newTree(t)
	tree.SetNegativeLimit(2)

	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, tree.AddNegative(rootID, name))
	}
	assert.Equal(t, 2, tree.NegativeCount())

	res, err := tree.Lookup(rootID, "c")
	require.NoError(t, err)
	assert.Equal(t, Missing, res.State)

	file, err := table.Allocate(fss.KindRegularFile, 0o644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, tree.Bind(rootID, "a", file.InodeID))
	assert.Equal(t, 1, tree.NegativeCount())

	other, err := table.Allocate(fss.KindRegularFile, 0o644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, tree.AddEntry(rootID, "e", other.InodeID))
	require.NoError(t, tree.AddNegative(rootID, "x"))
	assert.Equal(t, 2, tree.NegativeCount())

	// At the limit a removed name is dropped instead of cached.
	_, err = tree.RemoveEntry(rootID, "e")
	require.NoError(t, err)
	assert.Equal(t, 2, tree.NegativeCount())
	res, err = tree.Lookup(rootID, "e")
	require.NoError(t, err)
	assert.Equal(t, Missing, res.State)
}

func TestDirectoryTree_RmdirReleasesNegatives(t *testing.T) {
	tree, _, rootID := newTree(t)

	dir, err := tree.Mkdir(rootID, "d", 0o755, 0, 0)
	require.NoError(t, err)
	require.NoError(t, tree.AddNegative(dir.InodeID, "ghost"))
	require.NoError(t, tree.AddNegative(dir.InodeID, "phantom"))
	assert.Equal(t, 2, tree.NegativeCount())

	require.NoError(t, tree.Rmdir(rootID, "d"))
	// Only the removed directory's own name stays cached.
	assert.Equal(t, 1, tree.NegativeCount())
}
