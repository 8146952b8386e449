// Package telemetry implements the one-way loopback publisher the rest of
// the supervisor core forwards classified output to. Downstream bus
// subscribers are external collaborators not modeled here; this package
// only owns the bind socket and the broadcast fan-out.
//
// No pub/sub library in the retrieval pack fits a self-bound loopback PUB
// socket: the one message-bus binding available (nats.go) requires an
// external broker process, which contradicts "bound directly by the
// supervisor". This is the other ambient concern built on the standard
// library instead of a pack dependency; see DESIGN.md.
package telemetry

import (
	"bufio"
	"log/slog"
	"net"
	"strconv"
	"sync"
)

// subscriberBuffer bounds how many unacked frames a slow subscriber can
// accumulate before Publisher starts dropping frames for it. Telemetry is
// advisory; a stalled subscriber must never block the stream reader that
// is the actual producer.
const subscriberBuffer = 256

// Publisher is a fire-and-forget, single-topic, text-frame broadcaster
// bound to a loopback TCP listener. Every accepted connection receives
// every frame published after it connects.
type Publisher struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}

	ln net.Listener
}

type subscriber struct {
	out chan string
}

// Bind starts listening on 127.0.0.1:port and accepting subscriber
// connections in the background. Returns an error only if the listener
// itself cannot be created; that is treated as an unrecoverable
// construction failure by Supervisor.
func Bind(log *slog.Logger, port int) (*Publisher, error) {
	ln, err := net.Listen("tcp", netAddr(port))
	if err != nil {
		return nil, err
	}
	p := &Publisher{log: log, subs: make(map[*subscriber]struct{}), ln: ln}
	go p.acceptLoop()
	return p, nil
}

func netAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

func (p *Publisher) acceptLoop() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return // listener closed
		}
		sub := &subscriber{out: make(chan string, subscriberBuffer)}
		p.mu.Lock()
		p.subs[sub] = struct{}{}
		p.mu.Unlock()
		go p.serveSubscriber(conn, sub)
	}
}

func (p *Publisher) serveSubscriber(conn net.Conn, sub *subscriber) {
	defer func() {
		p.mu.Lock()
		delete(p.subs, sub)
		p.mu.Unlock()
		_ = conn.Close()
	}()
	w := bufio.NewWriter(conn)
	for frame := range sub.out {
		if _, err := w.WriteString(frame + "\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// Publish broadcasts frame to every currently connected subscriber.
// Non-blocking: a subscriber whose buffer is full has the frame dropped
// for it rather than stalling the caller. Failure to deliver is never
// reported to the caller, matching the fire-and-forget contract.
func (p *Publisher) Publish(frame string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sub := range p.subs {
		select {
		case sub.out <- frame:
		default:
			if p.log != nil {
				p.log.Warn("telemetry subscriber buffer full, dropping frame")
			}
		}
	}
}

// Close stops accepting new subscribers and disconnects existing ones.
func (p *Publisher) Close() error {
	err := p.ln.Close()
	p.mu.Lock()
	for sub := range p.subs {
		close(sub.out)
	}
	p.subs = make(map[*subscriber]struct{})
	p.mu.Unlock()
	return err
}
