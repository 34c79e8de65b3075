package session

import (
	"cmp"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/mikekulinski/zkstate/pkg/zxid"
)

// ErrBadPassword is returned when a client tries to re-attach to a session with the wrong password.
var ErrBadPassword = errors.New("session: password does not match")

type Session struct {
	ID      int64
	Passwd  []byte
	Timeout time.Duration
	// Deadline is when the session expires unless it is touched again.
	Deadline time.Time
	// Closing is set once the session was handed out for expiry. A closing session can no longer
	// be used even though it is still in the table.
	Closing bool
}

type Config struct {
	// ServerID goes into the top byte of every session id.
	ServerID   int64
	MinTimeout time.Duration
	MaxTimeout time.Duration
}

// Table holds every session the server knows about.
type Table struct {
	// mu is a mutex that protects all the fields in the Table. In order to keep Table
	// thread-safe, we should hold the lock before reading/writing to any of the fields.
	mu       *sync.Mutex
	cfg      Config
	clock    zxid.Clock
	nextID   int64
	sessions map[int64]*Session
}

func NewTable(cfg Config, clock zxid.Clock) *Table {
	if clock == nil {
		clock = zxid.SystemClock
	}
	return &Table{
		mu:       &sync.Mutex{},
		cfg:      cfg,
		clock:    clock,
		nextID:   initialID(cfg.ServerID, clock.Now()),
		sessions: map[int64]*Session{},
	}
}

// initialID follows the ZooKeeper layout: the server id in the top byte, a timestamp below it. Ids
// handed out after a restart therefore do not collide with the previous ones.
func initialID(serverID int64, now time.Time) int64 {
	ms := uint64(now.UnixMilli())
	return int64((ms<<24)>>8) | serverID<<56
}

func (t *Table) clamp(timeout time.Duration) time.Duration {
	return min(max(timeout, t.cfg.MinTimeout), t.cfg.MaxTimeout)
}

// Create opens a new session. The requested timeout is clamped to the configured bounds.
func (t *Table) Create(timeout time.Duration) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.New()
	t.nextID++
	s := &Session{
		ID:      t.nextID,
		Passwd:  id[:],
		Timeout: t.clamp(timeout),
	}
	s.Deadline = t.clock.Now().Add(s.Timeout)
	t.sessions[s.ID] = s
	return *s
}

// Reattach looks up a live session for a client that reconnects with the id and password it was given.
func (t *Table) Reattach(id int64, passwd []byte) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.live(id)
	if err != nil {
		return Session{}, err
	}
	if subtle.ConstantTimeCompare(s.Passwd, passwd) != 1 {
		return Session{}, fmt.Errorf("%w: session 0x%x", ErrBadPassword, id)
	}
	s.Deadline = t.clock.Now().Add(s.Timeout)
	return *s, nil
}

// Authenticate checks that passwd belongs to the live session id. Unlike Reattach it leaves the
// deadline alone.
func (t *Table) Authenticate(id int64, passwd []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.live(id)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(s.Passwd, passwd) != 1 {
		return fmt.Errorf("%w: session 0x%x", ErrBadPassword, id)
	}
	return nil
}

// Touch pushes the deadline of a live session back by its timeout.
func (t *Table) Touch(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.live(id)
	if err != nil {
		return err
	}
	s.Deadline = t.clock.Now().Add(s.Timeout)
	return nil
}

func (t *Table) live(id int64) (*Session, error) {
	s, ok := t.sessions[id]
	if !ok || s.Closing || !t.clock.Now().Before(s.Deadline) {
		return nil, fmt.Errorf("%w: session 0x%x", zookeeper.ErrSessionExpired, id)
	}
	return s, nil
}

func (t *Table) Get(id int64) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (t *Table) Remove(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Expired marks every session past its deadline as closing and returns their ids in order. A
// session is returned by Expired at most once.
func (t *Table) Expired() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var ids []int64
	for id, s := range t.sessions {
		if !s.Closing && !now.Before(s.Deadline) {
			s.Closing = true
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// List returns a copy of every session ordered by id.
func (t *Table) List() []Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		list = append(list, *s)
	}
	slices.SortFunc(list, func(a, b Session) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return list
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
