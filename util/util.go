package util

import (
	"os"
	"path"
	"strings"
)

// StringListContains returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	for i := range list {
		if list[i] == item {
			return true
		}
	}
	return false
}

// CleanETag strips the quotes that S3 providers wrap around object
// etags in list and stat responses.
func CleanETag(etag string) string {
	return strings.Replace(etag, "\"", "", -1)
}

// BaseNameWithoutExtension returns the last element of an object key
// with its file extension removed. "acme/orders.csv" becomes "orders".
func BaseNameWithoutExtension(key string) string {
	base := path.Base(key)
	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// KeySource returns the top-level folder of an object key, or an
// empty string if the key has no folder prefix. The bucket reader
// uses this to attribute uploads to a source system.
func KeySource(key string) string {
	key = strings.TrimPrefix(key, "/")
	if i := strings.Index(key, "/"); i > 0 {
		return key[:i]
	}
	return ""
}

// ExpandTilde replaces a leading ~ in dirName with the current
// user's home directory.
func ExpandTilde(dirName string) (string, error) {
	if !strings.HasPrefix(dirName, "~") {
		return dirName, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return path.Join(home, strings.TrimPrefix(dirName, "~")), nil
}

// FileExists returns true if the file at the given path exists.
func FileExists(pathToFile string) bool {
	_, err := os.Stat(pathToFile)
	return err == nil
}
