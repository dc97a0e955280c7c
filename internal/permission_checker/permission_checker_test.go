package permission_checker

import (
	"errors"
	"testing"

	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_PermissionMatrix(t *testing.T) {
	inode := &fss.Inode{InodeID: 7, Mode: 0o640, OwnerUID: 100, OwnerGID: 100}

	tests := []struct {
		name      string
		cred      fss.Credential
		canRead   bool
		canWrite  bool
		canSearch bool
	}{
		{name: "owner", cred: fss.Credential{UID: 100, GID: 100}, canRead: true, canWrite: true},
		{name: "group member", cred: fss.Credential{UID: 200, GID: 100}, canRead: true},
		{name: "other", cred: fss.Credential{UID: 300, GID: 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canRead, Check(inode, fss.AccessRead, tt.cred) == nil)
			assert.Equal(t, tt.canWrite, Check(inode, fss.AccessWrite, tt.cred) == nil)
			assert.Equal(t, tt.canSearch, Check(inode, fss.AccessExecute, tt.cred) == nil)
		})
	}
}

func TestCheck_OwnerClassIsAuthoritative(t *testing.T) {
	// Owner has nothing, everyone else has everything.
	inode := &fss.Inode{InodeID: 3, Mode: 0o077, OwnerUID: 10, OwnerGID: 10}

	err := Check(inode, fss.AccessRead, fss.Credential{UID: 10, GID: 99})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fss.ErrAccessDenied))

	assert.NoError(t, Check(inode, fss.AccessRead, fss.Credential{UID: 11, GID: 10}))
	assert.NoError(t, Check(inode, fss.AccessRead|fss.AccessWrite, fss.Credential{UID: 11, GID: 11}))
}

func TestCheck_GroupClassIsAuthoritative(t *testing.T) {
	inode := &fss.Inode{InodeID: 4, Mode: 0o707, OwnerUID: 1, OwnerGID: 50}

	err := Check(inode, fss.AccessRead, fss.Credential{UID: 2, GID: 50})
	assert.ErrorIs(t, err, fss.ErrAccessDenied)
}

func TestCheck_RequiresEveryRequestedBit(t *testing.T) {
	inode := &fss.Inode{InodeID: 5, Mode: 0o400, OwnerUID: 1, OwnerGID: 1}
	cred := fss.Credential{UID: 1, GID: 1}

	assert.NoError(t, Check(inode, fss.AccessRead, cred))
	assert.ErrorIs(t, Check(inode, fss.AccessRead|fss.AccessWrite, cred), fss.ErrAccessDenied)
	assert.NoError(t, Check(inode, 0, cred))
}

func TestCheck_NoSuperuserBypass(t *testing.T) {
	inode := &fss.Inode{InodeID: 6, Mode: 0o600, OwnerUID: 1000, OwnerGID: 1000}
	assert.ErrorIs(t, Check(inode, fss.AccessRead, fss.Credential{UID: 0, GID: 0}), fss.ErrAccessDenied)
}

func TestGranted_IgnoresTypeBits(t *testing.T) {
	inode := &fss.Inode{Mode: 0o040755, OwnerUID: 1, OwnerGID: 1}
	assert.Equal(t, fss.AccessRead|fss.AccessWrite|fss.AccessExecute, Granted(inode, fss.Credential{UID: 1}))
	assert.Equal(t, fss.AccessRead|fss.AccessExecute, Granted(inode, fss.Credential{UID: 2, GID: 2}))
}
