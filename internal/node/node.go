package node

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"meshchat/internal/display"
	"meshchat/internal/eventlog"
	"meshchat/internal/peer"
	"meshchat/internal/queue"
	"meshchat/internal/wire"
)

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultDedupWindow  = 30 * time.Second
	DefaultDedupSize    = 4096

	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second

	// maxLineSize bounds a single wire line; longer lines end the connection.
	maxLineSize = 1 << 20
)

var (
	ErrSelfConnect = errors.New("refusing to connect to self")
	ErrClosed      = errors.New("node is shut down")
)

// Local is the flood origin for locally typed messages; it excludes no peer.
var Local = wire.Addr{}

type Options struct {
	Host string
	Port int
	Name string

	Display display.Display
	Events  eventlog.Sink

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// Dedup enables the seen-message cache. Without it, flooding is naive
	// and cyclic topologies re-flood forever.
	Dedup       bool
	DedupWindow time.Duration
	DedupSize   int
}

// Node is one chat participant: listener, per-peer handlers, outbound
// dispatcher and flooding broadcaster around a shared peer registry.
type Node struct {
	opts     Options
	self     wire.Addr
	listener net.Listener
	registry *peer.Registry
	outbound *queue.Unbounded[wire.Message]
	seen     *seenCache

	display display.Display
	events  eventlog.Sink

	mu      sync.Mutex
	closing bool
	started bool
	wg      sync.WaitGroup

	quit         chan struct{}
	dispatched   chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once
}

// New binds the listening socket. A bind failure is returned as is; the
// caller treats it as fatal.
func New(opts Options) (*Node, error) {
	if opts.Display == nil {
		opts.Display = display.Multi()
	}
	if opts.Events == nil {
		opts.Events = eventlog.Discard
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	bind := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", bind, err)
	}

	// Port 0 asks the kernel for a port; advertise the one we got.
	self := wire.Addr{Host: opts.Host, Port: opts.Port}
	if tcp, ok := listener.Addr().(*net.TCPAddr); ok {
		self.Port = tcp.Port
	}

	n := &Node{
		opts:       opts,
		self:       self,
		listener:   listener,
		registry:   peer.NewRegistry(),
		outbound:   queue.NewUnbounded[wire.Message](),
		display:    opts.Display,
		events:     opts.Events,
		quit:       make(chan struct{}),
		dispatched: make(chan struct{}),
		done:       make(chan struct{}),
	}
	if opts.Dedup {
		window, size := opts.DedupWindow, opts.DedupSize
		if window <= 0 {
			window = DefaultDedupWindow
		}
		if size <= 0 {
			size = DefaultDedupSize
		}
		n.seen = newSeenCache(size, window)
	}
	return n, nil
}

// Addr is the advertised identity of this node.
func (n *Node) Addr() wire.Addr { return n.self }

func (n *Node) Name() string { return n.opts.Name }

// Peers returns a sorted snapshot of the registry.
func (n *Node) Peers() []peer.Info { return n.registry.Infos() }

// Done is closed once Shutdown has finished.
func (n *Node) Done() <-chan struct{} { return n.done }

// Start launches the accept loop and the outbound dispatcher.
func (n *Node) Start() {
	n.mu.Lock()
	if n.started || n.closing {
		n.mu.Unlock()
		return
	}
	n.started = true
	n.mu.Unlock()

	log.Printf("NET: listening on %s as %q", n.listener.Addr(), n.opts.Name)
	n.display.ShowSystem(fmt.Sprintf("[listening] %s", n.self))

	n.spawn(n.acceptLoop)
	if !n.spawn(n.dispatch) {
		close(n.dispatched)
	}
}

// Send enqueues a locally originated chat line for the dispatcher and
// returns the message that will go on the wire. Line breaks in content are
// flattened to spaces so the message stays one wire line.
func (n *Node) Send(content string) (wire.Message, error) {
	msg := wire.Message{
		SenderName: n.opts.Name,
		SenderAddr: n.self,
		Content:    wire.CleanContent(content),
	}
	if n.seen != nil {
		n.seen.Add(msg.Encode(), now())
	}
	if err := n.outbound.Push(msg); err != nil {
		return msg, ErrClosed
	}
	return msg, nil
}

// Shutdown stops accepting, flushes the outbound queue to the current
// peers, closes every peer connection and waits for all workers. It is
// idempotent.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.mu.Lock()
		n.closing = true
		started := n.started
		n.mu.Unlock()

		close(n.quit)
		n.listener.Close()

		n.outbound.Close()
		if started {
			<-n.dispatched
		}
		n.registry.Drain()

		n.wg.Wait()
		log.Printf("NET: node %s shut down", n.self)
		close(n.done)
	})
}

// spawn runs fn as a tracked worker unless shutdown has begun.
func (n *Node) spawn(fn func()) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closing {
		return false
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		fn()
	}()
	return true
}

func (n *Node) shuttingDown() bool {
	select {
	case <-n.quit:
		return true
	default:
		return false
	}
}
