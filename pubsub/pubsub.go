// Package pubsub fans messages out to realtime subscribers.
// Production runs on NATS so every instance sees every message;
// the in-process implementation backs single-node setups and tests.
package pubsub

import (
	"sync"

	"github.com/nats-io/nats.go"
)

type PubSub interface {
	Pub(topic string, data []byte) error
	// Sub invokes cb for every message published to topic until the
	// returned unsubscribe function is called.
	Sub(topic string, cb func(data []byte)) (unsub func() error, err error)
}

type NATS struct {
	conn *nats.Conn
}

func NewNATS(conn *nats.Conn) *NATS {
	return &NATS{conn: conn}
}

func (n *NATS) Pub(topic string, data []byte) error {
	return n.conn.Publish(topic, data)
}

func (n *NATS) Sub(topic string, cb func(data []byte)) (func() error, error) {
	sub, err := n.conn.Subscribe(topic, func(msg *nats.Msg) {
		cb(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

type InProcess struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]func(data []byte)
}

func NewInProcess() *InProcess {
	return &InProcess{subs: map[string]map[uint64]func(data []byte){}}
}

func (p *InProcess) Pub(topic string, data []byte) error {
	p.mu.RLock()
	cbs := make([]func(data []byte), 0, len(p.subs[topic]))
	for _, cb := range p.subs[topic] {
		cbs = append(cbs, cb)
	}
	p.mu.RUnlock()

	for _, cb := range cbs {
		go cb(data)
	}
	return nil
}

func (p *InProcess) Sub(topic string, cb func(data []byte)) (func() error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.next++
	key := p.next
	if p.subs[topic] == nil {
		p.subs[topic] = map[uint64]func(data []byte){}
	}
	p.subs[topic][key] = cb

	return func() error {
		p.mu.Lock()
		defer p.mu.Unlock()

		delete(p.subs[topic], key)
		if len(p.subs[topic]) == 0 {
			delete(p.subs, topic)
		}
		return nil
	}, nil
}
