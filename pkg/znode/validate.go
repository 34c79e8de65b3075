package znode

import (
	"fmt"
	"strings"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

// ValidatePath verifies that the path received from the client is valid. A sequential create
// may end in "/" since the server appends the counter to it.
func ValidatePath(path string, sequential bool) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: path %q does not start at the root", zookeeper.ErrBadArguments, path)
	}
	if path == "/" {
		return nil
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("%w: path %q contains a null character", zookeeper.ErrBadArguments, path)
	}
	if sequential && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
		if path == "" {
			return nil
		}
	}
	if strings.HasSuffix(path, "/") {
		return fmt.Errorf("%w: path %q should end in a node name", zookeeper.ErrBadArguments, path)
	}

	// Since we have a leading /, then we expect the first name to be empty.
	for _, name := range strings.Split(path, "/")[1:] {
		switch name {
		case "":
			return fmt.Errorf("%w: path %q contains an empty node name", zookeeper.ErrBadArguments, path)
		case ".", "..":
			return fmt.Errorf("%w: path %q contains a relative node name", zookeeper.ErrBadArguments, path)
		}
	}
	return nil
}

// isValidVersion is used for conditional checks for update/delete operations. If the passed in version
// is -1, then skip the version check. Otherwise, make sure the versions are equal.
func isValidVersion(expected, actual int32) bool {
	return expected == -1 || expected == actual
}

// splitPath returns the path of the parent and the name of the last element.
func splitPath(path string) (string, string) {
	i := strings.LastIndexByte(path, '/')
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
