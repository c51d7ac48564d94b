package keytool

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"
)

// expands a leading ~/ to the current user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// validate private key integrity before handing it to ssh
func ValidateSSHPrivateKeyPerms(privKeyPath string) error {
	privKeyInfo, err := os.Stat(privKeyPath)
	if err != nil {
		return fmt.Errorf("unable to locate key file: %w", err)
	}

	// validate regular filetype
	if !privKeyInfo.Mode().IsRegular() {
		return fmt.Errorf("ssh private key is not a regular file")
	}

	// group & other must have no access
	perms := privKeyInfo.Mode().Perm()
	if perms&0077 != 0 {
		return fmt.Errorf("ssh key permissions are too open: %o (expected max 0600)", perms)
	}

	// determine file owner
	stat, ok := privKeyInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("failed to get stat info for ssh key")
	}

	// determine current user
	currentUser, err := user.Current()
	if err != nil {
		return fmt.Errorf("could not get current user: %w", err)
	}

	// ensure current user & file owner match
	if fmt.Sprint(stat.Uid) != currentUser.Uid {
		return fmt.Errorf("ssh key is not owned by the current user")
	}

	return nil
}
