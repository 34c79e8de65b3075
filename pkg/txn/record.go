package txn

import (
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/mikekulinski/zkstate/pkg/zxid"
)

// Record is a client request that has been given its place in the global order. It is created
// once per request and consumed once by the dispatcher.
type Record struct {
	// Time is the wall clock in milliseconds when the zxid was assigned.
	Time    int64
	Zxid    zxid.ZXID
	Request zookeeper.SessionRequest
}

func (r Record) SessionID() int64 {
	return r.Request.SessionID
}

func (r Record) Op() zookeeper.Op {
	return r.Request.Op
}

// Wrapper stamps requests with a zxid and a timestamp.
type Wrapper struct {
	seq *zxid.Sequencer
}

func NewWrapper(seq *zxid.Sequencer) *Wrapper {
	return &Wrapper{seq: seq}
}

// Wrap assigns the next zxid to req. It does not look at the payload beyond its opcode, so every
// request, valid or not, consumes exactly one zxid.
func (w *Wrapper) Wrap(req zookeeper.SessionRequest) (Record, error) {
	var op zookeeper.OpCode = zookeeper.OpError
	if req.Op != nil {
		op = req.Op.OpCode()
	}
	a, err := w.seq.Assign(op)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Time:    a.Time,
		Zxid:    a.Zxid,
		Request: req,
	}, nil
}
