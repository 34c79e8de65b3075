package server

import (
	"github.com/mikekulinski/zkstate/pkg/txn"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

// Publisher observes transactions once they have been applied. Publish is called in zxid order from
// inside the server's critical section, so implementations must return quickly and never call back
// into the server.
//
//go:generate mockgen -source=publish.go -destination=mock_publisher_test.go -package=server
type Publisher interface {
	Publish(rec txn.Record, resp zookeeper.Response)
}

// PublisherFunc adapts a function to a Publisher.
type PublisherFunc func(rec txn.Record, resp zookeeper.Response)

func (f PublisherFunc) Publish(rec txn.Record, resp zookeeper.Response) {
	f(rec, resp)
}

// Bus fans every applied transaction out to its subscribers.
type Bus struct {
	subscribers []Publisher
}

func (b *Bus) Subscribe(p Publisher) {
	b.subscribers = append(b.subscribers, p)
}

func (b *Bus) Publish(rec txn.Record, resp zookeeper.Response) {
	for _, p := range b.subscribers {
		publishSafely(p, rec, resp)
	}
}

// publishSafely keeps one misbehaving subscriber from stopping the others.
func publishSafely(p Publisher, rec txn.Record, resp zookeeper.Response) {
	defer func() {
		if r := recover(); r != nil {
			_serverLogger.Errorf("subscriber panicked on %s: %v", rec.Zxid, r)
		}
	}()
	p.Publish(rec, resp)
}
