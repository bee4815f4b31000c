//go:build windows

package fileutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// MkdirPrivate creates the directory tree and puts an owner-only DACL on
// the leaf. The 0700 handed to MkdirAll is ignored by the Windows kernel;
// without the DACL the directory would inherit the parent's entries,
// typically granting BUILTIN\Users read access.
func MkdirPrivate(path string) error {
	if err := os.MkdirAll(path, 0700); err != nil {
		return err
	}
	return Restrict(path)
}

// Restrict replaces the DACL on path with a single entry granting the
// current user full control. PROTECTED_DACL keeps the parent directory's
// entries from being inherited back onto the object.
func Restrict(path string) error {
	// The current user's SID comes from the process token.
	token, err := windows.OpenCurrentProcessToken()
	if err != nil {
		return fmt.Errorf("open process token: %w", err)
	}
	defer token.Close()

	user, err := token.GetTokenUser()
	if err != nil {
		return fmt.Errorf("get token user: %w", err)
	}

	ea := windows.EXPLICIT_ACCESS{
		AccessPermissions: windows.GENERIC_ALL,
		AccessMode:        windows.SET_ACCESS,
		Inheritance:       windows.NO_INHERITANCE,
		Trustee: windows.TRUSTEE{
			TrusteeForm:  windows.TRUSTEE_IS_SID,
			TrusteeType:  windows.TRUSTEE_IS_USER,
			TrusteeValue: windows.TrusteeValueFromSID(user.User.Sid),
		},
	}

	acl, err := windows.ACLFromEntries([]windows.EXPLICIT_ACCESS{ea}, nil)
	if err != nil {
		return fmt.Errorf("build ACL: %w", err)
	}

	return windows.SetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION|windows.PROTECTED_DACL_SECURITY_INFORMATION,
		nil, // owner unchanged
		nil, // group unchanged
		acl,
		nil, // sacl unchanged
	)
}
