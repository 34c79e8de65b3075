package journal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/mikekulinski/zkstate/pkg/logging"
	"github.com/mikekulinski/zkstate/pkg/txn"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/mikekulinski/zkstate/pkg/zxid"
	"google.golang.org/protobuf/encoding/protowire"
)

var _journalLogger = logging.NewLogger("journal")

// ErrAlreadyAppended is returned for a record whose zxid is not after the last one in the journal.
var ErrAlreadyAppended = errors.New("journal: transaction has already been added to the log")

// Field numbers of a frame.
const (
	fieldZxid    protowire.Number = 1
	fieldTime    protowire.Number = 2
	fieldRequest protowire.Number = 3
)

// Journal is an in-memory, append-only log of the transactions the server applied. Every
// record is stored as a length-delimited frame:
//
//	frame   = length(varint) body
//	body    = zxid(field 1, varint) time(field 2, varint) request(field 3, bytes)
//	request = CBOR encoded zookeeper.RequestEnvelope
//
// Replaying the journal in order against an empty server rebuilds the same tree.
type Journal struct {
	// mu is a mutex that protects all the fields in the Journal. In order to keep Journal
	// thread-safe, we should hold the lock before reading/writing to any of the fields.
	mu       *sync.Mutex
	data     []byte
	count    int
	lastZxid zxid.ZXID
}

func New() *Journal {
	return &Journal{
		mu: &sync.Mutex{},
	}
}

// Append adds rec to the end of the journal.
func (j *Journal) Append(rec txn.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if rec.Zxid <= j.lastZxid {
		return fmt.Errorf("%w: %s is not after %s", ErrAlreadyAppended, rec.Zxid, j.lastZxid)
	}
	body, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	j.data = protowire.AppendBytes(j.data, body)
	j.count++
	// Update the last seen ZXID to be equal to the transaction we just wrote.
	// Do this after successfully encoding the transaction.
	j.lastZxid = rec.Zxid
	return nil
}

// Publish appends every applied transaction. It lets the journal subscribe to the server.
func (j *Journal) Publish(rec txn.Record, _ zookeeper.Response) {
	if err := j.Append(rec); err != nil {
		_journalLogger.Errorf("append %s failed: %s", rec.Zxid, err)
	}
}

func (j *Journal) LastZxid() zxid.ZXID {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastZxid
}

func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Bytes returns a copy of the encoded journal.
func (j *Journal) Bytes() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]byte(nil), j.data...)
}

// Records decodes every record in the journal, oldest first.
func (j *Journal) Records() ([]txn.Record, error) {
	return Decode(j.Bytes())
}

// Decode parses the output of Bytes.
func Decode(data []byte) ([]txn.Record, error) {
	var records []txn.Record
	for len(data) > 0 {
		body, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("journal: frame %d: %w", len(records), protowire.ParseError(n))
		}
		data = data[n:]
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, fmt.Errorf("journal: frame %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeRecord(rec txn.Record) ([]byte, error) {
	env, err := zookeeper.WrapRequest(rec.Request)
	if err != nil {
		return nil, err
	}
	req, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("error marshalling txn: %w", err)
	}
	var b []byte
	b = protowire.AppendTag(b, fieldZxid, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Zxid))
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Time))
	b = protowire.AppendTag(b, fieldRequest, protowire.BytesType)
	b = protowire.AppendBytes(b, req)
	return b, nil
}

func decodeRecord(b []byte) (txn.Record, error) {
	var rec txn.Record
	var sawRequest bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return txn.Record{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldZxid && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return txn.Record{}, protowire.ParseError(n)
			}
			rec.Zxid = zxid.ZXID(v)
			b = b[n:]
		case num == fieldTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return txn.Record{}, protowire.ParseError(n)
			}
			rec.Time = int64(v)
			b = b[n:]
		case num == fieldRequest && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return txn.Record{}, protowire.ParseError(n)
			}
			var env zookeeper.RequestEnvelope
			if err := cbor.Unmarshal(v, &env); err != nil {
				return txn.Record{}, err
			}
			req, err := env.Request()
			if err != nil {
				return txn.Record{}, err
			}
			rec.Request = req
			sawRequest = true
			b = b[n:]
		default:
			// Unknown fields are skipped so older readers can load newer journals.
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return txn.Record{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if !sawRequest {
		return txn.Record{}, errors.New("record without a request")
	}
	return rec, nil
}
