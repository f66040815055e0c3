package node

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"meshchat/internal/eventlog"
	"meshchat/internal/peer"
	"meshchat/internal/wire"
)

func (n *Node) acceptLoop() {
	var delay time.Duration
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || n.shuttingDown() {
				return
			}
			// Back off on repeated failures such as EMFILE, as net/http does.
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			log.Printf("NET: accept error: %v; retrying in %v", err, delay)
			select {
			case <-time.After(delay):
			case <-n.quit:
				return
			}
			continue
		}
		delay = 0

		id := remoteAddr(conn)
		if err := n.attach(peer.New(id, conn, false)); err != nil {
			log.Printf("NET: rejecting inbound %s: %v", id, err)
		}
	}
}

// Connect dials host:port and, on success, registers the connection and
// starts its handler. Failures are returned to the caller; the node keeps
// running.
func (n *Node) Connect(ctx context.Context, host string, port int) error {
	target := wire.Addr{Host: host, Port: port}
	if target == n.self {
		return ErrSelfConnect
	}
	if n.shuttingDown() {
		return ErrClosed
	}
	if _, err := n.registry.Get(target); err == nil {
		return fmt.Errorf("%w: %s", peer.ErrExists, target)
	}

	d := net.Dialer{Timeout: n.opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", target.String())
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	return n.attach(peer.New(target, conn, true))
}

// attach registers p and starts its read loop. On any failure the
// connection is closed.
func (n *Node) attach(p *peer.Peer) error {
	if err := n.registry.Add(p); err != nil {
		p.Close()
		if errors.Is(err, peer.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("%w: %s", err, p.ID)
	}
	n.display.ShowSystem(fmt.Sprintf("[connected] %s", p.ID))
	n.events.Emit(eventlog.PeerConnected, p.ID.String())

	if !n.spawn(func() { n.handle(p) }) {
		n.registry.RemoveIf(p.ID, p)
		return ErrClosed
	}
	return nil
}

// handle is the per-peer read loop. It returns when the connection fails
// or is closed, after deregistering the peer.
func (n *Node) handle(p *peer.Peer) {
	defer n.detach(p)

	scanner := bufio.NewScanner(p.Conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		msg, err := wire.Decode(line)
		switch {
		case errors.Is(err, wire.ErrCorrupt):
			log.Printf("NET: dropping corrupt line from %s (%d bytes)", p.ID, len(line))
			continue
		case err != nil:
			log.Printf("NET: malformed line from %s: %v", p.ID, err)
			n.display.ShowSystem(fmt.Sprintf("[?]: %s", strings.TrimSuffix(line, "\r")))
			continue
		}

		p.LearnName(msg.SenderName)
		n.receive(msg, p.ID)
	}

	if err := scanner.Err(); err != nil && !n.shuttingDown() && !errors.Is(err, net.ErrClosed) {
		log.Printf("NET: read error from %s: %v", p.ID, err)
	}
}

// receive shows an inbound message, logs it and re-floods it to every peer
// except the one it arrived from.
func (n *Node) receive(msg wire.Message, from wire.Addr) {
	line := msg.Encode()
	if n.seen != nil && !n.seen.Add(line, now()) {
		return
	}

	n.display.ShowMessage(msg)
	n.events.Emit(eventlog.MessageReceived,
		fmt.Sprintf("%s (%s) via %s: %s", msg.SenderName, msg.SenderAddr, from, msg.Content))
	n.flood(line, from)
}

func (n *Node) detach(p *peer.Peer) {
	if !n.registry.RemoveIf(p.ID, p) {
		return
	}
	n.display.ShowSystem(fmt.Sprintf("[disconnected] %s", p.ID))
	n.events.Emit(eventlog.PeerDisconnected, p.ID.String())
}

func remoteAddr(conn net.Conn) wire.Addr {
	if tcp, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return wire.Addr{Host: tcp.IP.String(), Port: tcp.Port}
	}
	addr, err := wire.ParseAddr(conn.RemoteAddr().String())
	if err != nil {
		return wire.Addr{Host: conn.RemoteAddr().String()}
	}
	return addr
}
