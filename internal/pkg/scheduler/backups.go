package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
)

var backupSuffixes = []string{"_BackupOne.zip", "_BackupTwo.zip", "_BackupThree.zip"}

// rotateBackups installs newZip as the newest backup for baseName,
// keeping at most three generations: the previous newest becomes the
// second backup, the second becomes the third, and the oldest is
// removed.
func rotateBackups(zipDir, baseName, newZip string) (string, error) {
	oldest := filepath.Join(zipDir, baseName+backupSuffixes[2])
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("unable to remove the oldest backup %s: %w", oldest, err)
	}

	for i := 1; i >= 0; i-- {
		src := filepath.Join(zipDir, baseName+backupSuffixes[i])
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("unable to stat backup %s: %w", src, err)
		}
		dst := filepath.Join(zipDir, baseName+backupSuffixes[i+1])
		if err := os.Rename(src, dst); err != nil {
			return "", fmt.Errorf("unable to rotate backup %s: %w", src, err)
		}
	}

	newest := filepath.Join(zipDir, baseName+backupSuffixes[0])
	if err := os.Rename(newZip, newest); err != nil {
		return "", fmt.Errorf("unable to install the new backup %s: %w", newest, err)
	}
	return newest, nil
}
