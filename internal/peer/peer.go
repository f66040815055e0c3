package peer

import (
	"net"
	"sync"
	"time"

	"meshchat/internal/wire"
)

// Peer owns one live connection to a remote node.
type Peer struct {
	ID       wire.Addr
	Conn     net.Conn
	Outbound bool

	nameMu sync.RWMutex
	name   string

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// New wraps conn. id is the dialed address for outbound peers and the
// remote socket address for inbound ones.
func New(id wire.Addr, conn net.Conn, outbound bool) *Peer {
	return &Peer{ID: id, Conn: conn, Outbound: outbound}
}

// Name is the display name learned from the first message, or "".
func (p *Peer) Name() string {
	p.nameMu.RLock()
	defer p.nameMu.RUnlock()
	return p.name
}

// LearnName records name if none is known yet. It reports whether the name
// was set by this call.
func (p *Peer) LearnName(name string) bool {
	p.nameMu.Lock()
	defer p.nameMu.Unlock()
	if p.name != "" || name == "" {
		return false
	}
	p.name = name
	return true
}

// Write sends one encoded line. Concurrent writers are serialized so lines
// never interleave. A zero timeout disables the write deadline.
func (p *Peer) Write(line []byte, timeout time.Duration) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if timeout > 0 {
		p.Conn.SetWriteDeadline(time.Now().Add(timeout))
		defer p.Conn.SetWriteDeadline(time.Time{})
	}
	_, err := p.Conn.Write(line)
	return err
}

// Close closes the connection once; later calls return the first result.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.Conn.Close()
	})
	return p.closeErr
}

// Info is a point-in-time description of a peer for listings.
type Info struct {
	ID       wire.Addr
	Name     string
	Outbound bool
}

func (p *Peer) Info() Info {
	return Info{ID: p.ID, Name: p.Name(), Outbound: p.Outbound}
}
