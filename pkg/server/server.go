package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/mikekulinski/zkstate/pkg/logging"
	"github.com/mikekulinski/zkstate/pkg/txn"
	"github.com/mikekulinski/zkstate/pkg/znode"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/mikekulinski/zkstate/pkg/zxid"
)

// Version is reported by the srvr command.
const Version = "0.1.0"

var _serverLogger = logging.NewLogger("server")

type Options struct {
	// InitialZxid is the zxid the sequencer considers already handed out.
	InitialZxid zxid.ZXID
	// Clock timestamps transactions. Nil means the system clock.
	Clock zxid.Clock
	// Metrics defaults to a fresh set in its own registry.
	Metrics *Metrics
}

// Server is the authoritative state of the coordination store: the zxid sequencer, the tree of
// nodes and the index of ephemeral nodes. All three are owned by the Server and only change inside
// its critical section, one request at a time, so the order in which requests are applied is
// exactly the order of their zxids.
type Server struct {
	// mu protects every field below. Process and Replay hold it for writing from the moment a
	// zxid is assigned until the transaction has been published. Diagnostics hold it for reading.
	mu         *sync.RWMutex
	seq        *zxid.Sequencer
	wrapper    *txn.Wrapper
	db         *znode.DB
	ephemerals *EphemeralIndex
	bus        *Bus
	metrics    *Metrics

	started   time.Time
	processed int64
}

func NewServer(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	seq := zxid.NewSequencer(opts.InitialZxid, opts.Clock)
	s := &Server{
		mu:         &sync.RWMutex{},
		seq:        seq,
		wrapper:    txn.NewWrapper(seq),
		db:         znode.NewDB(),
		ephemerals: NewEphemeralIndex(),
		bus:        &Bus{},
		metrics:    opts.Metrics,
		started:    time.Now(),
	}
	s.updateGauges()
	return s
}

// Subscribe registers p for every transaction applied from now on.
func (s *Server) Subscribe(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus.Subscribe(p)
}

// Process assigns req the next zxid and applies it. Every request consumes a zxid, including the
// ones that fail and the ones that only read.
//
// The response always carries a code. The returned error is reserved for faults that are not the
// client's doing: a protocol violation, or the sequencer running out of zxids. In both cases the
// response code is zookeeper.CodeSystemError.
func (s *Server) Process(req zookeeper.SessionRequest) (zookeeper.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.process(req)
}

// SessionGate says whether a session may still submit requests. It is consulted inside the
// server's critical section, so a session retired there cannot have a request applied after it.
type SessionGate interface {
	Touch(id int64) error
	Remove(id int64)
}

// ProcessSession is Process for a request of an established session. A session the gate refuses
// gets zookeeper.CodeSessionExpired without a zxid being assigned. A successful CloseSession retires
// the session in the same critical section that deleted its ephemeral nodes.
func (s *Server) ProcessSession(req zookeeper.SessionRequest, gate SessionGate) (zookeeper.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := gate.Touch(req.SessionID); err != nil {
		return errorResponse(req.Xid, int64(s.seq.Last()), zookeeper.CodeSessionExpired), err
	}
	resp, err := s.process(req)
	if _, ok := req.Op.(*zookeeper.CloseSessionRequest); ok && resp.Err == zookeeper.CodeOK {
		gate.Remove(req.SessionID)
	}
	return resp, err
}

func (s *Server) process(req zookeeper.SessionRequest) (zookeeper.Response, error) {
	rec, err := s.wrapper.Wrap(req)
	if err != nil {
		_serverLogger.Errorf("cannot assign a zxid to xid %d of session 0x%x: %s", req.Xid, req.SessionID, err)
		return errorResponse(req.Xid, int64(s.seq.Last()), zookeeper.CodeSystemError), err
	}
	return s.apply(rec)
}

// Replay applies records that were ordered somewhere else, usually the contents of a journal. The
// sequencer is moved to the zxid of each record instead of assigning a new one. Replay stops at the
// first record that does not apply cleanly.
func (s *Server) Replay(records []txn.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if err := s.seq.Advance(rec.Zxid); err != nil {
			return err
		}
		resp, err := s.apply(rec)
		if err != nil {
			return fmt.Errorf("replay %s: %w", rec.Zxid, err)
		}
		if resp.Err != zookeeper.CodeOK {
			return fmt.Errorf("replay %s: %w", rec.Zxid, resp.Err.Err())
		}
	}
	return nil
}

// apply runs the stages that follow zxid assignment. The caller holds the write lock.
func (s *Server) apply(rec txn.Record) (zookeeper.Response, error) {
	s.processed++
	resp, fault := s.dispatch(rec)
	if fault == nil {
		if err := s.indexEphemerals(rec, resp); err != nil {
			_serverLogger.Errorf("ephemeral index failed on %s: %s", rec.Zxid, err)
			resp = errorResponse(rec.Request.Xid, int64(rec.Zxid), zookeeper.CodeSystemError)
			fault = err
		}
	}

	s.metrics.observe(opName(rec.Op()), resp)
	s.updateGauges()
	if resp.Err == zookeeper.CodeOK && rec.Op() != nil && rec.Op().OpCode().IsMutation() {
		s.bus.Publish(rec, resp)
	}
	return resp, fault
}

// indexEphemerals runs the ephemeral stage, turning a panic into an error like dispatch does.
func (s *Server) indexEphemerals(rec txn.Record, resp zookeeper.Response) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.recoveredPanics.Inc()
			err = fmt.Errorf("%w: panic in ephemeral index: %v", zookeeper.ErrSystemError, r)
		}
	}()
	return s.ephemerals.Apply(s.db, rec, resp)
}

func (s *Server) updateGauges() {
	s.metrics.znodes.Set(float64(s.db.Size()))
	s.metrics.ephemerals.Set(float64(s.ephemerals.Len()))
}

func errorResponse(xid int32, z int64, code zookeeper.Code) zookeeper.Response {
	return zookeeper.Response{
		Xid:    xid,
		Zxid:   z,
		Err:    code,
		Result: &zookeeper.ErrorResult{Err: code},
	}
}

func opName(op zookeeper.Op) string {
	if op == nil {
		return "none"
	}
	return op.OpCode().String()
}

/*
Diagnostics. They only read, under the read lock.
*/

func (s *Server) LastZxid() zxid.ZXID {
	return s.seq.Last()
}

// Snapshot returns the canonical encoding of the tree. Two servers holding the same nodes return
// the same bytes.
func (s *Server) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Snapshot()
}

// Ephemerals returns the ephemeral nodes of every session that owns some.
func (s *Server) Ephemerals() map[int64][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dump := map[int64][]string{}
	for _, session := range s.ephemerals.Sessions() {
		dump[session] = s.ephemerals.Paths(session)
	}
	return dump
}

// EphemeralOwner returns the session owning the ephemeral node at path.
func (s *Server) EphemeralOwner(path string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ephemerals.Owner(path)
}

type Stats struct {
	LastZxid   zxid.ZXID
	NodeCount  int
	Ephemerals int
	Processed  int64
	Uptime     time.Duration
}

func (s *Server) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		LastZxid:   s.seq.Last(),
		NodeCount:  s.db.Size(),
		Ephemerals: s.ephemerals.Len(),
		Processed:  s.processed,
		Uptime:     time.Since(s.started),
	}
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}
