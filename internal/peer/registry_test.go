package peer

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"meshchat/internal/wire"
)

func newTestPeer(t *testing.T, port int) (*Peer, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	return New(wire.Addr{Host: "127.0.0.1", Port: port}, local, false), remote
}

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	p, _ := newTestPeer(t, 5000)

	if err := r.Add(p); err != nil {
		t.Fatal(err)
	}
	dup, _ := newTestPeer(t, 5000)
	if err := r.Add(dup); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate add err = %v", err)
	}

	got, err := r.Get(p.ID)
	if err != nil || got != p {
		t.Fatalf("Get = %v, %v", got, err)
	}

	if _, err := r.Remove(p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Remove(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove err = %v", err)
	}
	if _, err := r.Get(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after remove err = %v", err)
	}
}

func TestRemoveClosesConnection(t *testing.T) {
	r := NewRegistry()
	p, remote := newTestPeer(t, 5001)
	r.Add(p)
	r.Remove(p.ID)

	remote.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := remote.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected read error after Remove closed the peer")
	}
}

func TestRemoveIfIgnoresStalePeer(t *testing.T) {
	r := NewRegistry()
	stale, _ := newTestPeer(t, 5002)
	fresh, _ := newTestPeer(t, 5002)
	r.Add(fresh)

	if r.RemoveIf(stale.ID, stale) {
		t.Fatal("RemoveIf removed a peer it does not own")
	}
	if got, _ := r.Get(fresh.ID); got != fresh {
		t.Fatal("fresh peer was evicted")
	}
	if !r.RemoveIf(fresh.ID, fresh) {
		t.Fatal("RemoveIf did not remove its own peer")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	r := NewRegistry()
	for port := 6000; port < 6005; port++ {
		p, _ := newTestPeer(t, port)
		r.Add(p)
	}
	snap := r.All()
	r.Remove(wire.Addr{Host: "127.0.0.1", Port: 6000})

	if len(snap) != 5 {
		t.Fatalf("snapshot changed: %d", len(snap))
	}
	if r.Len() != 4 {
		t.Fatalf("Len = %d", r.Len())
	}
}

func TestInfosSorted(t *testing.T) {
	r := NewRegistry()
	for _, port := range []int{7003, 7001, 7002} {
		p, _ := newTestPeer(t, port)
		p.LearnName(fmt.Sprintf("n%d", port))
		r.Add(p)
	}
	infos := r.Infos()
	for i, want := range []int{7001, 7002, 7003} {
		if infos[i].ID.Port != want {
			t.Fatalf("infos[%d] = %v", i, infos[i].ID)
		}
		if infos[i].Name != fmt.Sprintf("n%d", want) {
			t.Fatalf("infos[%d].Name = %q", i, infos[i].Name)
		}
	}
}

func TestConcurrentAddRemoveKeepsIdentitiesUnique(t *testing.T) {
	r := NewRegistry()
	var added, removed atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				port := 8000 + (w*7+i)%16
				p, _ := newTestPeer(t, port)
				if r.Add(p) == nil {
					added.Add(1)
				}
				if i%3 == 0 {
					if _, err := r.Remove(p.ID); err == nil {
						removed.Add(1)
					}
				}
				if n := len(r.All()); int64(n) > added.Load()-removed.Load()+8 {
					t.Errorf("snapshot size %d exceeds live adds", n)
				}
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[wire.Addr]bool)
	for _, p := range r.All() {
		if seen[p.ID] {
			t.Fatalf("duplicate identity %v", p.ID)
		}
		seen[p.ID] = true
	}
	if int64(r.Len()) != added.Load()-removed.Load() {
		t.Fatalf("Len = %d, adds-removes = %d", r.Len(), added.Load()-removed.Load())
	}
}

func TestDrainRefusesAdds(t *testing.T) {
	r := NewRegistry()
	p, _ := newTestPeer(t, 9000)
	r.Add(p)

	if got := r.Drain(); len(got) != 1 {
		t.Fatalf("drained %d peers", len(got))
	}
	q, _ := newTestPeer(t, 9001)
	if err := r.Add(q); !errors.Is(err, ErrClosed) {
		t.Fatalf("Add after Drain err = %v", err)
	}
}

func TestLearnNameOnlyOnce(t *testing.T) {
	p, _ := newTestPeer(t, 9100)
	if !p.LearnName("Ana") {
		t.Fatal("first LearnName should succeed")
	}
	if p.LearnName("Pedro") {
		t.Fatal("second LearnName should be ignored")
	}
	if p.Name() != "Ana" {
		t.Fatalf("Name = %q", p.Name())
	}
}
