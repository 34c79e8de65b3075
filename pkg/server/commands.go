package server

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

// ErrUnknownCommand is returned for a four-letter word the server does not know.
var ErrUnknownCommand = errors.New("server: unknown command")

// command is the anonymous surface. It answers the four-letter words used to probe a server.
func (s *Service) command(req zookeeper.FourLetterRequest) (zookeeper.FourLetterResponse, error) {
	var text string
	switch req.Word {
	case "ruok":
		text = "imok"
	case "srvr":
		text = s.srvr()
	case "dump":
		text = s.dump()
	case "conf":
		text = s.conf()
	case "envi":
		text = envi()
	default:
		return zookeeper.FourLetterResponse{}, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Word)
	}
	return zookeeper.FourLetterResponse{Text: text}, nil
}

func (s *Service) srvr() string {
	stats := s.server.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "zkstate version: %s\n", Version)
	fmt.Fprintf(&b, "Uptime: %s\n", stats.Uptime.Round(time.Second))
	fmt.Fprintf(&b, "Processed: %d\n", stats.Processed)
	fmt.Fprintf(&b, "Sessions: %d\n", s.sessions.Len())
	fmt.Fprintf(&b, "Zxid: %s\n", stats.LastZxid)
	fmt.Fprintf(&b, "Mode: standalone\n")
	fmt.Fprintf(&b, "Node count: %d\n", stats.NodeCount)
	return b.String()
}

func (s *Service) dump() string {
	var b strings.Builder
	b.WriteString("SessionTracker dump:\n")
	for _, sess := range s.sessions.List() {
		fmt.Fprintf(&b, "\t0x%x\ttimeout %s\n", sess.ID, sess.Timeout)
	}
	ephemerals := s.server.Ephemerals()
	fmt.Fprintf(&b, "ephemeral nodes dump:\nSessions with Ephemerals (%d):\n", len(ephemerals))
	sessions := make([]int64, 0, len(ephemerals))
	for id := range ephemerals {
		sessions = append(sessions, id)
	}
	slices.Sort(sessions)
	for _, id := range sessions {
		fmt.Fprintf(&b, "0x%x:\n", id)
		for _, path := range ephemerals[id] {
			fmt.Fprintf(&b, "\t%s\n", path)
		}
	}
	return b.String()
}

func (s *Service) conf() string {
	var b strings.Builder
	keys := make([]string, 0, len(s.settings))
	for k := range s.settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, s.settings[k])
	}
	return b.String()
}

func envi() string {
	host, _ := os.Hostname()
	dir, _ := os.Getwd()
	var b strings.Builder
	b.WriteString("Environment:\n")
	fmt.Fprintf(&b, "zkstate.version=%s\n", Version)
	fmt.Fprintf(&b, "host.name=%s\n", host)
	fmt.Fprintf(&b, "go.version=%s\n", runtime.Version())
	fmt.Fprintf(&b, "os.name=%s\n", runtime.GOOS)
	fmt.Fprintf(&b, "os.arch=%s\n", runtime.GOARCH)
	fmt.Fprintf(&b, "user.dir=%s\n", dir)
	return b.String()
}
