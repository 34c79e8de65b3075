package zookeeper

import (
	"errors"
	"fmt"
)

// ErrEmptyEnvelope is returned when an envelope does not carry exactly one payload.
var ErrEmptyEnvelope = errors.New("zk: envelope must carry exactly one payload")

// OpEnvelope is the encodable form of an Op. Exactly one field is set. Codecs that cannot decode
// into an interface (CBOR, JSON) go through this type.
type OpEnvelope struct {
	Create       *CreateRequest       `cbor:"1,keyasint,omitempty"`
	Delete       *DeleteRequest       `cbor:"2,keyasint,omitempty"`
	Exists       *ExistsRequest       `cbor:"3,keyasint,omitempty"`
	GetData      *GetDataRequest      `cbor:"4,keyasint,omitempty"`
	SetData      *SetDataRequest      `cbor:"5,keyasint,omitempty"`
	GetACL       *GetACLRequest       `cbor:"6,keyasint,omitempty"`
	SetACL       *SetACLRequest       `cbor:"7,keyasint,omitempty"`
	GetChildren  *GetChildrenRequest  `cbor:"8,keyasint,omitempty"`
	Sync         *SyncRequest         `cbor:"9,keyasint,omitempty"`
	Ping         *PingRequest         `cbor:"11,keyasint,omitempty"`
	Check        *CheckRequest        `cbor:"13,keyasint,omitempty"`
	Multi        *MultiEnvelope       `cbor:"14,keyasint,omitempty"`
	CloseSession *CloseSessionRequest `cbor:"20,keyasint,omitempty"`
}

type MultiEnvelope struct {
	Ops []OpEnvelope
}

// WrapOp converts op into its envelope.
func WrapOp(op Op) (OpEnvelope, error) {
	var e OpEnvelope
	switch o := op.(type) {
	case *CreateRequest:
		e.Create = o
	case *DeleteRequest:
		e.Delete = o
	case *ExistsRequest:
		e.Exists = o
	case *GetDataRequest:
		e.GetData = o
	case *SetDataRequest:
		e.SetData = o
	case *GetACLRequest:
		e.GetACL = o
	case *SetACLRequest:
		e.SetACL = o
	case *GetChildrenRequest:
		e.GetChildren = o
	case *SyncRequest:
		e.Sync = o
	case *PingRequest:
		e.Ping = o
	case *CheckRequest:
		e.Check = o
	case *CloseSessionRequest:
		e.CloseSession = o
	case *MultiRequest:
		ops := make([]OpEnvelope, 0, len(o.Ops))
		for _, sub := range o.Ops {
			wrapped, err := WrapOp(sub)
			if err != nil {
				return OpEnvelope{}, err
			}
			ops = append(ops, wrapped)
		}
		e.Multi = &MultiEnvelope{Ops: ops}
	default:
		return OpEnvelope{}, fmt.Errorf("%w: unsupported op %T", ErrEmptyEnvelope, op)
	}
	return e, nil
}

// Op returns the single payload carried by the envelope.
func (e OpEnvelope) Op() (Op, error) {
	var ops []Op
	add := func(set bool, op Op) {
		if set {
			ops = append(ops, op)
		}
	}
	add(e.Create != nil, e.Create)
	add(e.Delete != nil, e.Delete)
	add(e.Exists != nil, e.Exists)
	add(e.GetData != nil, e.GetData)
	add(e.SetData != nil, e.SetData)
	add(e.GetACL != nil, e.GetACL)
	add(e.SetACL != nil, e.SetACL)
	add(e.GetChildren != nil, e.GetChildren)
	add(e.Sync != nil, e.Sync)
	add(e.Ping != nil, e.Ping)
	add(e.Check != nil, e.Check)
	add(e.CloseSession != nil, e.CloseSession)
	if e.Multi != nil {
		multi := &MultiRequest{Ops: make([]Op, 0, len(e.Multi.Ops))}
		for _, sub := range e.Multi.Ops {
			op, err := sub.Op()
			if err != nil {
				return nil, err
			}
			multi.Ops = append(multi.Ops, op)
		}
		ops = append(ops, multi)
	}
	if len(ops) != 1 {
		return nil, ErrEmptyEnvelope
	}
	return ops[0], nil
}

// ResultEnvelope is the encodable form of a Result.
type ResultEnvelope struct {
	Create       *CreateResult        `cbor:"1,keyasint,omitempty"`
	Delete       *DeleteResult        `cbor:"2,keyasint,omitempty"`
	Exists       *ExistsResult        `cbor:"3,keyasint,omitempty"`
	GetData      *GetDataResult       `cbor:"4,keyasint,omitempty"`
	SetData      *SetDataResult       `cbor:"5,keyasint,omitempty"`
	GetACL       *GetACLResult        `cbor:"6,keyasint,omitempty"`
	SetACL       *SetACLResult        `cbor:"7,keyasint,omitempty"`
	GetChildren  *GetChildrenResult   `cbor:"8,keyasint,omitempty"`
	Sync         *SyncResult          `cbor:"9,keyasint,omitempty"`
	Ping         *PingResult          `cbor:"11,keyasint,omitempty"`
	Check        *CheckResult         `cbor:"13,keyasint,omitempty"`
	Multi        *MultiResultEnvelope `cbor:"14,keyasint,omitempty"`
	CloseSession *CloseSessionResult  `cbor:"20,keyasint,omitempty"`
	Error        *ErrorResult         `cbor:"21,keyasint,omitempty"`
}

type MultiResultEnvelope struct {
	Results []ResultEnvelope
}

// WrapResult converts r into its envelope.
func WrapResult(r Result) (ResultEnvelope, error) {
	var e ResultEnvelope
	switch o := r.(type) {
	case *CreateResult:
		e.Create = o
	case *DeleteResult:
		e.Delete = o
	case *ExistsResult:
		e.Exists = o
	case *GetDataResult:
		e.GetData = o
	case *SetDataResult:
		e.SetData = o
	case *GetACLResult:
		e.GetACL = o
	case *SetACLResult:
		e.SetACL = o
	case *GetChildrenResult:
		e.GetChildren = o
	case *SyncResult:
		e.Sync = o
	case *PingResult:
		e.Ping = o
	case *CheckResult:
		e.Check = o
	case *CloseSessionResult:
		e.CloseSession = o
	case *ErrorResult:
		e.Error = o
	case *MultiResult:
		results := make([]ResultEnvelope, 0, len(o.Results))
		for _, sub := range o.Results {
			wrapped, err := WrapResult(sub)
			if err != nil {
				return ResultEnvelope{}, err
			}
			results = append(results, wrapped)
		}
		e.Multi = &MultiResultEnvelope{Results: results}
	default:
		return ResultEnvelope{}, fmt.Errorf("%w: unsupported result %T", ErrEmptyEnvelope, r)
	}
	return e, nil
}

// Result returns the single payload carried by the envelope.
func (e ResultEnvelope) Result() (Result, error) {
	var results []Result
	add := func(set bool, r Result) {
		if set {
			results = append(results, r)
		}
	}
	add(e.Create != nil, e.Create)
	add(e.Delete != nil, e.Delete)
	add(e.Exists != nil, e.Exists)
	add(e.GetData != nil, e.GetData)
	add(e.SetData != nil, e.SetData)
	add(e.GetACL != nil, e.GetACL)
	add(e.SetACL != nil, e.SetACL)
	add(e.GetChildren != nil, e.GetChildren)
	add(e.Sync != nil, e.Sync)
	add(e.Ping != nil, e.Ping)
	add(e.Check != nil, e.Check)
	add(e.CloseSession != nil, e.CloseSession)
	add(e.Error != nil, e.Error)
	if e.Multi != nil {
		multi := &MultiResult{Results: make([]Result, 0, len(e.Multi.Results))}
		for _, sub := range e.Multi.Results {
			r, err := sub.Result()
			if err != nil {
				return nil, err
			}
			multi.Results = append(multi.Results, r)
		}
		results = append(results, multi)
	}
	if len(results) != 1 {
		return nil, ErrEmptyEnvelope
	}
	return results[0], nil
}

// RequestEnvelope is the encodable form of a SessionRequest.
type RequestEnvelope struct {
	SessionID int64
	Xid       int32
	Op        OpEnvelope
}

// ResponseEnvelope is the encodable form of a Response.
type ResponseEnvelope struct {
	Xid    int32
	Zxid   int64
	Err    Code
	Result *ResultEnvelope
}

func WrapRequest(req SessionRequest) (RequestEnvelope, error) {
	op, err := WrapOp(req.Op)
	if err != nil {
		return RequestEnvelope{}, err
	}
	return RequestEnvelope{SessionID: req.SessionID, Xid: req.Xid, Op: op}, nil
}

func (e RequestEnvelope) Request() (SessionRequest, error) {
	op, err := e.Op.Op()
	if err != nil {
		return SessionRequest{}, err
	}
	return SessionRequest{SessionID: e.SessionID, Xid: e.Xid, Op: op}, nil
}

func WrapResponse(resp Response) (ResponseEnvelope, error) {
	e := ResponseEnvelope{Xid: resp.Xid, Zxid: resp.Zxid, Err: resp.Err}
	if resp.Result != nil {
		r, err := WrapResult(resp.Result)
		if err != nil {
			return ResponseEnvelope{}, err
		}
		e.Result = &r
	}
	return e, nil
}

func (e ResponseEnvelope) Response() (Response, error) {
	resp := Response{Xid: e.Xid, Zxid: e.Zxid, Err: e.Err}
	if e.Result != nil {
		r, err := e.Result.Result()
		if err != nil {
			return Response{}, err
		}
		resp.Result = r
	}
	return resp, nil
}
