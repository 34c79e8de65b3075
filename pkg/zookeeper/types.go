package zookeeper

import "fmt"

// OpCode identifies the kind of operation carried by a request. The numbering follows the
// ZooKeeper wire protocol so that values can be passed through an external codec unchanged.
type OpCode int32

const (
	OpNotify        OpCode = 0
	OpCreate        OpCode = 1
	OpDelete        OpCode = 2
	OpExists        OpCode = 3
	OpGetData       OpCode = 4
	OpSetData       OpCode = 5
	OpGetACL        OpCode = 6
	OpSetACL        OpCode = 7
	OpGetChildren   OpCode = 8
	OpSync          OpCode = 9
	OpPing          OpCode = 11
	OpGetChildren2  OpCode = 12
	OpCheck         OpCode = 13
	OpMulti         OpCode = 14
	OpCreate2       OpCode = 15
	OpCreateSession OpCode = -10
	OpCloseSession  OpCode = -11
	OpError         OpCode = -1
)

var opNames = map[OpCode]string{
	OpNotify:        "notification",
	OpCreate:        "create",
	OpDelete:        "delete",
	OpExists:        "exists",
	OpGetData:       "getData",
	OpSetData:       "setData",
	OpGetACL:        "getACL",
	OpSetACL:        "setACL",
	OpGetChildren:   "getChildren",
	OpSync:          "sync",
	OpPing:          "ping",
	OpGetChildren2:  "getChildren2",
	OpCheck:         "check",
	OpMulti:         "multi",
	OpCreate2:       "create2",
	OpCreateSession: "createSession",
	OpCloseSession:  "closeSession",
	OpError:         "error",
}

func (o OpCode) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int32(o))
}

// IsMutation reports whether a successful operation of this kind changes the namespace or the
// session table, and therefore has to be published to observers of applied transactions.
func (o OpCode) IsMutation() bool {
	switch o {
	case OpCreate, OpCreate2, OpDelete, OpSetData, OpSetACL, OpMulti, OpCloseSession:
		return true
	default:
		return false
	}
}

// Reserved xids used by the protocol for server initiated traffic.
const (
	NotificationXid int32 = -1
	PingXid         int32 = -2
)

// CreateMode holds the flags passed to a create request.
type CreateMode int32

const (
	// FlagEphemeral indicates that the ZNode to be created should be automatically destroyed once the session
	// has been terminated (either intentionally or on failure).
	FlagEphemeral CreateMode = 1
	// FlagSequence indicates that the node to be created should have a monotonically increasing counter appended
	// to the end of the provided name.
	FlagSequence CreateMode = 2

	ModePersistent           CreateMode = 0
	ModeEphemeral                       = FlagEphemeral
	ModePersistentSequential            = FlagSequence
	ModeEphemeralSequential             = FlagEphemeral | FlagSequence
)

func (m CreateMode) IsEphemeral() bool {
	return m&FlagEphemeral != 0
}

func (m CreateMode) IsSequential() bool {
	return m&FlagSequence != 0
}

func (m CreateMode) Valid() bool {
	return m >= 0 && m <= ModeEphemeralSequential
}

// Permission bits for an ACL entry. They are stored and returned, never enforced.
const (
	PermRead int32 = 1 << iota
	PermWrite
	PermCreate
	PermDelete
	PermAdmin
	PermAll = 0x1f
)

type ACL struct {
	Perms  int32
	Scheme string
	ID     string
}

// WorldACL produces an ACL list containing a single ACL which uses the
// provided permissions, with the scheme "world", and ID "anyone".
func WorldACL(perms int32) []ACL {
	return []ACL{{Perms: perms, Scheme: "world", ID: "anyone"}}
}

// Stat is the metadata attached to every ZNode.
type Stat struct {
	// Czxid is the zxid of the change that caused this znode to be created.
	Czxid int64
	// Mzxid is the zxid of the change that last modified this znode's data.
	Mzxid int64
	// Pzxid is the zxid of the change that last modified this znode's children.
	Pzxid int64
	// Ctime and Mtime are milliseconds since the epoch.
	Ctime int64
	Mtime int64
	// Version is the number of changes to the data of this znode.
	Version int32
	// Cversion is the number of changes to the children of this znode.
	Cversion int32
	// Aversion is the number of changes to the ACL of this znode.
	Aversion int32
	// EphemeralOwner is the session id of the owner if this is an ephemeral node, otherwise 0.
	EphemeralOwner int64
	DataLength     int32
	NumChildren    int32
}

// SessionRequest is a single operation submitted by an established session.
type SessionRequest struct {
	SessionID int64
	// Xid is chosen by the client and echoed back in the response.
	Xid int32
	Op  Op
}

// Response is what the server sends back for a SessionRequest.
type Response struct {
	Xid  int32
	Zxid int64
	// Err is CodeOK on success. When it is not, Result is either an ErrorResult or, for a failed
	// multi, a MultiResult holding the outcome of each sub-operation.
	Err    Code
	Result Result
}

/*
Pre-session and session establishment messages.
*/

type FourLetterRequest struct {
	Word string
}

type FourLetterResponse struct {
	Text string
}

type ConnectRequest struct {
	ProtocolVersion int32
	LastZxidSeen    int64
	TimeoutMs       int32
	// SessionID is 0 when the client asks for a brand-new session.
	SessionID int64
	Passwd    []byte
}

type ConnectResponse struct {
	ProtocolVersion int32
	// TimeoutMs is the negotiated timeout. A zero SessionID and TimeoutMs mean the session expired.
	TimeoutMs int32
	SessionID int64
	Passwd    []byte
}
