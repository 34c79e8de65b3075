package zookeeper

import "context"

// Zookeeper is the client view of a server. Every call belongs to the session the client holds, and
// a non-OK response code comes back as the matching sentinel error.
type Zookeeper interface {
	// Create creates a ZNode at path, stores data in it, and returns the name of the new ZNode. For a
	// sequential mode the name carries the suffix the server appended.
	Create(ctx context.Context, path string, data []byte, mode CreateMode) (string, error)
	// Delete deletes the ZNode at the given path if that ZNode is at the expected version. A version
	// of -1 matches any version.
	Delete(ctx context.Context, path string, version int32) error
	// Exists returns the Stat of the ZNode, or ErrNoNode.
	Exists(ctx context.Context, path string) (Stat, error)
	// GetData returns the data and metadata, such as version information, associated with the ZNode.
	GetData(ctx context.Context, path string) ([]byte, Stat, error)
	// SetData writes data to the ZNode path if the version number is the current version of the ZNode.
	SetData(ctx context.Context, path string, data []byte, version int32) (Stat, error)
	// GetChildren returns the sorted names of the children of a ZNode.
	GetChildren(ctx context.Context, path string) ([]string, error)
	// Sync is answered once every request the session sent before it has been applied.
	Sync(ctx context.Context, path string) error
	// Multi applies ops atomically. On failure the error is the one of the first failing op and the
	// results say which op that was.
	Multi(ctx context.Context, ops ...Op) ([]Result, error)
	// Close ends the session, which deletes its ephemeral nodes.
	Close(ctx context.Context) error
}
