package utils

import (
	"bytes"
	"os"
)

// FileExists checks if a file exists and is not a directory before we
// try using it to prevent further errors
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// SameFileContent reports whether the file at path exists and holds
// exactly the given bytes. The first return value is false when the
// file does not exist, in which case equal is meaningless.
func SameFileContent(path string, data []byte) (exists bool, equal bool, err error) {
	prev, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, bytes.Equal(prev, data), nil
}
