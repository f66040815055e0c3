package peer

import (
	"errors"
	"sort"
	"sync"

	"meshchat/internal/wire"
)

var (
	ErrExists   = errors.New("peer already registered")
	ErrNotFound = errors.New("peer not registered")
	ErrClosed   = errors.New("registry closed")
)

// Registry is the authoritative set of live peers, keyed by address.
// The lock only ever covers map access, never socket I/O.
type Registry struct {
	mu     sync.Mutex
	peers  map[wire.Addr]*Peer
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[wire.Addr]*Peer)}
}

// Add registers p. It fails with ErrExists if the identity is taken and
// with ErrClosed once the registry was drained.
func (r *Registry) Add(p *Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, ok := r.peers[p.ID]; ok {
		return ErrExists
	}
	r.peers[p.ID] = p
	return nil
}

// Remove deregisters id and closes its connection in the same critical
// section. Closing a socket does not block, so the lock still never spans
// socket reads or writes.
func (r *Registry) Remove(id wire.Addr) (*Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Close()
	delete(r.peers, id)
	return p, nil
}

// RemoveIf removes id only if it still maps to p. Handlers use it so a stale
// handler cannot evict a newer connection registered under the same address.
func (r *Registry) RemoveIf(id wire.Addr, p *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.Close()
	if cur, ok := r.peers[id]; ok && cur == p {
		delete(r.peers, id)
		return true
	}
	return false
}

func (r *Registry) Get(id wire.Addr) (*Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// All returns a snapshot of the registered peers. Mutating the registry
// afterwards does not affect the returned slice.
func (r *Registry) All() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Infos returns a snapshot sorted by address.
func (r *Registry) Infos() []Info {
	peers := r.All()
	infos := make([]Info, 0, len(peers))
	for _, p := range peers {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ID.Host != infos[j].ID.Host {
			return infos[i].ID.Host < infos[j].ID.Host
		}
		return infos[i].ID.Port < infos[j].ID.Port
	})
	return infos
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Drain removes and closes every peer and refuses further Adds.
func (r *Registry) Drain() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	out := make([]*Peer, 0, len(r.peers))
	for id, p := range r.peers {
		p.Close()
		out = append(out, p)
		delete(r.peers, id)
	}
	return out
}
