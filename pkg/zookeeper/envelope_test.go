package zookeeper

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpEnvelope_NestedMulti(t *testing.T) {
	req := SessionRequest{
		SessionID: 5,
		Xid:       7,
		Op: &MultiRequest{Ops: []Op{
			&CreateRequest{Path: "/a", Data: []byte("x"), Flags: ModeEphemeral},
			&CheckRequest{Path: "/a", Version: -1},
			&DeleteRequest{Path: "/b", Version: 3},
		}},
	}

	wrapped, err := WrapRequest(req)
	require.NoError(t, err)
	bytes, err := cbor.Marshal(wrapped)
	require.NoError(t, err)

	var decoded RequestEnvelope
	require.NoError(t, cbor.Unmarshal(bytes, &decoded))
	actual, err := decoded.Request()
	require.NoError(t, err)
	assert.Equal(t, req, actual)
}

func TestOpEnvelope_EmptyMulti(t *testing.T) {
	wrapped, err := WrapOp(&MultiRequest{})
	require.NoError(t, err)
	op, err := wrapped.Op()
	require.NoError(t, err)
	assert.Equal(t, OpMulti, op.OpCode())
}

func TestOpEnvelope_Invalid(t *testing.T) {
	_, err := OpEnvelope{}.Op()
	assert.ErrorIs(t, err, ErrEmptyEnvelope)

	_, err = OpEnvelope{Ping: &PingRequest{}, Sync: &SyncRequest{Path: "/"}}.Op()
	assert.ErrorIs(t, err, ErrEmptyEnvelope)
}

func TestResultEnvelope_FailedMulti(t *testing.T) {
	resp := Response{
		Xid:  1,
		Zxid: 42,
		Err:  CodeNoNode,
		Result: &MultiResult{Results: []Result{
			&ErrorResult{Err: CodeOK},
			&ErrorResult{Err: CodeNoNode},
		}},
	}
	wrapped, err := WrapResponse(resp)
	require.NoError(t, err)
	bytes, err := cbor.Marshal(wrapped)
	require.NoError(t, err)

	var decoded ResponseEnvelope
	require.NoError(t, cbor.Unmarshal(bytes, &decoded))
	actual, err := decoded.Response()
	require.NoError(t, err)
	assert.Equal(t, resp, actual)
}
