package permission_checker

import (
	"fmt"

	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
)

// Check evaluates requested against the single permission class the credential
// falls into. Owner wins over group, group over other, even when a later class
// would have granted more. There is no superuser bypass here.
func Check(inode *fss.Inode, requested fss.AccessMask, cred fss.Credential) error {
	granted := Granted(inode, cred)

	for _, bit := range []fss.AccessMask{fss.AccessRead, fss.AccessWrite, fss.AccessExecute} {
		if requested&bit != 0 && granted&bit == 0 {
			return fmt.Errorf("%w: inode %d wants %s, uid=%d gid=%d holds %s",
				fss.ErrAccessDenied, inode.InodeID, requested, cred.UID, cred.GID, granted)
		}
	}
	return nil
}

// Granted returns the rwx bits of the class matching cred.
func Granted(inode *fss.Inode, cred fss.Credential) fss.AccessMask {
	mode := inode.Mode & fss.PermMask

	switch {
	case cred.UID == inode.OwnerUID:
		return fss.AccessMask((mode >> 6) & 7)
	case cred.GID == inode.OwnerGID:
		return fss.AccessMask((mode >> 3) & 7)
	default:
		return fss.AccessMask(mode & 7)
	}
}
