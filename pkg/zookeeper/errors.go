package zookeeper

import (
	"errors"
	"fmt"
)

// Code is the error code sent to clients in a response.
type Code int32

const (
	CodeOK                      Code = 0
	CodeSystemError             Code = -1
	CodeRuntimeInconsistency    Code = -2
	CodeUnimplemented           Code = -6
	CodeBadArguments            Code = -8
	CodeNoNode                  Code = -101
	CodeBadVersion              Code = -103
	CodeNoChildrenForEphemerals Code = -108
	CodeNodeExists              Code = -110
	CodeNotEmpty                Code = -111
	CodeSessionExpired          Code = -112
)

var (
	ErrSystemError             = errors.New("zk: system error")
	ErrRuntimeInconsistency    = errors.New("zk: runtime inconsistency")
	ErrUnimplemented           = errors.New("zk: not implemented")
	ErrBadArguments            = errors.New("zk: bad arguments")
	ErrNoNode                  = errors.New("zk: node does not exist")
	ErrBadVersion              = errors.New("zk: version conflict")
	ErrNoChildrenForEphemerals = errors.New("zk: ephemeral nodes may not have children")
	ErrNodeExists              = errors.New("zk: node already exists")
	ErrNotEmpty                = errors.New("zk: node has children")
	ErrSessionExpired          = errors.New("zk: session has been expired by the server")

	// ErrProtocolViolation is not a client error. It means a caller upstream of the server broke
	// the request contract (for example by nesting a closeSession inside a multi), and it is
	// never turned into a normal error code.
	ErrProtocolViolation = errors.New("zk: protocol violation")
)

var codeToErr = map[Code]error{
	CodeSystemError:             ErrSystemError,
	CodeRuntimeInconsistency:    ErrRuntimeInconsistency,
	CodeUnimplemented:           ErrUnimplemented,
	CodeBadArguments:            ErrBadArguments,
	CodeNoNode:                  ErrNoNode,
	CodeBadVersion:              ErrBadVersion,
	CodeNoChildrenForEphemerals: ErrNoChildrenForEphemerals,
	CodeNodeExists:              ErrNodeExists,
	CodeNotEmpty:                ErrNotEmpty,
	CodeSessionExpired:          ErrSessionExpired,
}

// Err returns the sentinel error for the code, or nil for CodeOK.
func (c Code) Err() error {
	if c == CodeOK {
		return nil
	}
	if err, ok := codeToErr[c]; ok {
		return err
	}
	return fmt.Errorf("zk: unknown error code %d", int32(c))
}

func (c Code) String() string {
	if c == CodeOK {
		return "ok"
	}
	return c.Err().Error()
}

// CodeOf maps an error returned by an operator back to the code sent to the client. Errors that
// do not wrap one of the sentinels are reported as a system error.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	for code, sentinel := range codeToErr {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeSystemError
}
