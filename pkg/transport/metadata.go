package transport

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"google.golang.org/grpc/metadata"
)

const (
	SessionIDHeader     = "x-session-id"
	SessionPasswdHeader = "x-session-passwd"
)

// extractSessionHeaders reads the session id and password the client attached to the call.
func extractSessionHeaders(ctx context.Context) (int64, []byte, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, nil, fmt.Errorf("no metadata on the call")
	}

	id, err := headerValue(md, SessionIDHeader)
	if err != nil {
		return 0, nil, err
	}
	sessionID, err := strconv.ParseInt(id, 16, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("malformed %s header %q: %w", SessionIDHeader, id, err)
	}

	passwd, err := headerValue(md, SessionPasswdHeader)
	if err != nil {
		return 0, nil, err
	}
	decoded, err := hex.DecodeString(passwd)
	if err != nil {
		return 0, nil, fmt.Errorf("malformed %s header: %w", SessionPasswdHeader, err)
	}
	return sessionID, decoded, nil
}

func headerValue(md metadata.MD, key string) (string, error) {
	values := md.Get(key)
	if len(values) == 0 {
		return "", fmt.Errorf("missing %s header", key)
	}
	return values[0], nil
}

func setSessionHeaders(ctx context.Context, id int64, passwd []byte) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		SessionIDHeader, strconv.FormatInt(id, 16),
		SessionPasswdHeader, hex.EncodeToString(passwd),
	)
}
