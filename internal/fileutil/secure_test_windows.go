//go:build windows

package fileutil

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/windows"
)

// assertPrivateWindows verifies the DACL carries entries for the current
// user alone. Any other principal means the protected DACL did not take.
func assertPrivateWindows(t *testing.T, path string) {
	t.Helper()

	token, err := windows.OpenCurrentProcessToken()
	if err != nil {
		t.Fatalf("OpenCurrentProcessToken: %v", err)
	}
	defer token.Close()

	user, err := token.GetTokenUser()
	if err != nil {
		t.Fatalf("GetTokenUser: %v", err)
	}
	ownerSID := user.User.Sid

	sd, err := windows.GetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		t.Fatalf("GetNamedSecurityInfo(%s): %v", path, err)
	}

	dacl, _, err := sd.DACL()
	if err != nil {
		t.Fatalf("DACL(): %v", err)
	}
	if dacl == nil {
		t.Fatal("DACL is nil (NULL DACL grants everyone full access)")
	}

	aceCount := int(dacl.AceCount)
	if aceCount == 0 {
		t.Fatal("DACL has 0 ACEs (empty DACL denies everyone)")
	}

	foundOwner := false
	for i := range aceCount {
		var ace *windows.ACCESS_ALLOWED_ACE
		if err := windows.GetAce(dacl, uint32(i), &ace); err != nil {
			t.Fatalf("GetAce(%d): %v", i, err)
		}

		// The SID begins at the SidStart field of ACCESS_ALLOWED_ACE.
		aceSID := (*windows.SID)(unsafe.Pointer(&ace.SidStart))
		if aceSID.Equals(ownerSID) {
			foundOwner = true
			continue
		}
		t.Errorf("unexpected ACE for SID %s", aceSID.String())
	}

	if !foundOwner {
		t.Error("no ACE found for current user")
	}
}
