package node

import (
	"fmt"
	"log"

	"meshchat/internal/eventlog"
	"meshchat/internal/wire"
)

// dispatch is the single consumer of the outbound queue. It floods local
// messages in enqueue order and exits once the queue is closed and drained.
func (n *Node) dispatch() {
	defer close(n.dispatched)
	for msg := range n.outbound.Out() {
		sent := n.flood(msg.Encode(), Local)
		n.events.Emit(eventlog.MessageSent, fmt.Sprintf("to %d peer(s): %s", sent, msg.Content))
	}
}

// flood writes line to every registered peer except origin. A failed write
// removes that peer and does not stop delivery to the rest. There is no
// hop limit; without the seen cache a message keeps circulating in any
// cycle of the topology.
func (n *Node) flood(line []byte, origin wire.Addr) int {
	sent := 0
	for _, p := range n.registry.All() {
		if p.ID == origin {
			continue
		}
		if err := p.Write(line, n.opts.WriteTimeout); err != nil {
			if n.registry.RemoveIf(p.ID, p) {
				log.Printf("FLOOD: write to %s failed: %v", p.ID, err)
				n.display.ShowSystem(fmt.Sprintf("[peer removed] %s", p.ID))
				n.events.Emit(eventlog.PeerDisconnected, fmt.Sprintf("%s (write failed)", p.ID))
			}
			continue
		}
		sent++
	}
	return sent
}
