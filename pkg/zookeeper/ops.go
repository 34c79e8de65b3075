package zookeeper

// Op is one of the request payloads a session can submit. The set of implementations is closed:
// only types in this package satisfy it, so a type switch over Op in the dispatcher covers every
// kind of request the server can receive.
type Op interface {
	OpCode() OpCode
	isOp()
}

// Result is the payload of a successful (or, for ErrorResult, a failed) response.
type Result interface {
	OpCode() OpCode
	isResult()
}

// CreateRequest creates a ZNode with path name Path and stores Data in it. When ReturnStat is set
// the request is a create2 and the full stat of the new node is sent back.
type CreateRequest struct {
	Path       string
	Data       []byte
	ACL        []ACL
	Flags      CreateMode
	ReturnStat bool
}

// DeleteRequest deletes the ZNode at the given path if that ZNode is at the expected version.
// A Version of -1 skips the check.
type DeleteRequest struct {
	Path    string
	Version int32
}

// SetDataRequest writes Data to the ZNode if Version matches its data version (or is -1).
type SetDataRequest struct {
	Path    string
	Data    []byte
	Version int32
}

// CheckRequest asserts the data version of a node. It is only meaningful inside a multi.
type CheckRequest struct {
	Path    string
	Version int32
}

type ExistsRequest struct {
	Path  string
	Watch bool
}

type GetDataRequest struct {
	Path  string
	Watch bool
}

type GetChildrenRequest struct {
	Path  string
	Watch bool
	// WithStat turns the request into getChildren2.
	WithStat bool
}

type GetACLRequest struct {
	Path string
}

type SetACLRequest struct {
	Path    string
	ACL     []ACL
	Version int32
}

type SyncRequest struct {
	Path string
}

type PingRequest struct{}

type CloseSessionRequest struct{}

// MultiRequest applies Ops atomically: either all of them take effect or none do.
type MultiRequest struct {
	Ops []Op
}

func (r *CreateRequest) OpCode() OpCode {
	if r.ReturnStat {
		return OpCreate2
	}
	return OpCreate
}

func (*DeleteRequest) OpCode() OpCode       { return OpDelete }
func (*SetDataRequest) OpCode() OpCode      { return OpSetData }
func (*CheckRequest) OpCode() OpCode        { return OpCheck }
func (*ExistsRequest) OpCode() OpCode       { return OpExists }
func (*GetDataRequest) OpCode() OpCode      { return OpGetData }
func (*GetACLRequest) OpCode() OpCode       { return OpGetACL }
func (*SetACLRequest) OpCode() OpCode       { return OpSetACL }
func (*SyncRequest) OpCode() OpCode         { return OpSync }
func (*PingRequest) OpCode() OpCode         { return OpPing }
func (*CloseSessionRequest) OpCode() OpCode { return OpCloseSession }
func (*MultiRequest) OpCode() OpCode        { return OpMulti }

func (r *GetChildrenRequest) OpCode() OpCode {
	if r.WithStat {
		return OpGetChildren2
	}
	return OpGetChildren
}

func (*CreateRequest) isOp()       {}
func (*DeleteRequest) isOp()       {}
func (*SetDataRequest) isOp()      {}
func (*CheckRequest) isOp()        {}
func (*ExistsRequest) isOp()       {}
func (*GetDataRequest) isOp()      {}
func (*GetChildrenRequest) isOp()  {}
func (*GetACLRequest) isOp()       {}
func (*SetACLRequest) isOp()       {}
func (*SyncRequest) isOp()         {}
func (*PingRequest) isOp()         {}
func (*CloseSessionRequest) isOp() {}
func (*MultiRequest) isOp()        {}

type CreateResult struct {
	Path string
	// Stat is only set for create2.
	Stat *Stat
}

type DeleteResult struct{}

type SetDataResult struct {
	Stat Stat
}

type CheckResult struct{}

type ExistsResult struct {
	Stat Stat
}

type GetDataResult struct {
	Data []byte
	Stat Stat
}

type GetChildrenResult struct {
	Children []string
	// Stat is only set for getChildren2.
	Stat *Stat
}

type GetACLResult struct {
	ACL  []ACL
	Stat Stat
}

type SetACLResult struct {
	Stat Stat
}

type SyncResult struct {
	Path string
}

type PingResult struct{}

type CloseSessionResult struct{}

type MultiResult struct {
	Results []Result
}

// ErrorResult carries a failure code, either for a whole request or for one sub-operation of a multi.
type ErrorResult struct {
	Err Code
}

func (r *CreateResult) OpCode() OpCode {
	if r.Stat != nil {
		return OpCreate2
	}
	return OpCreate
}

func (*DeleteResult) OpCode() OpCode       { return OpDelete }
func (*SetDataResult) OpCode() OpCode      { return OpSetData }
func (*CheckResult) OpCode() OpCode        { return OpCheck }
func (*ExistsResult) OpCode() OpCode       { return OpExists }
func (*GetDataResult) OpCode() OpCode      { return OpGetData }
func (*GetACLResult) OpCode() OpCode       { return OpGetACL }
func (*SetACLResult) OpCode() OpCode       { return OpSetACL }
func (*SyncResult) OpCode() OpCode         { return OpSync }
func (*PingResult) OpCode() OpCode         { return OpPing }
func (*CloseSessionResult) OpCode() OpCode { return OpCloseSession }
func (*MultiResult) OpCode() OpCode        { return OpMulti }
func (*ErrorResult) OpCode() OpCode        { return OpError }

func (r *GetChildrenResult) OpCode() OpCode {
	if r.Stat != nil {
		return OpGetChildren2
	}
	return OpGetChildren
}

func (*CreateResult) isResult()       {}
func (*DeleteResult) isResult()       {}
func (*SetDataResult) isResult()      {}
func (*CheckResult) isResult()        {}
func (*ExistsResult) isResult()       {}
func (*GetDataResult) isResult()      {}
func (*GetChildrenResult) isResult()  {}
func (*GetACLResult) isResult()       {}
func (*SetACLResult) isResult()       {}
func (*SyncResult) isResult()         {}
func (*PingResult) isResult()         {}
func (*CloseSessionResult) isResult() {}
func (*MultiResult) isResult()        {}
func (*ErrorResult) isResult()        {}
