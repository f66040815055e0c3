package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"meshchat/internal/display"
	"meshchat/internal/peer"
	"meshchat/internal/wire"
)

// Controller is the part of the node the command processor drives.
type Controller interface {
	Connect(ctx context.Context, host string, port int) error
	Send(content string) (wire.Message, error)
	Peers() []peer.Info
}

const HelpText = `Commands:
  /help               show this help
  /connect HOST PORT  connect to a running peer
  /peers              list connected peers
  /quit               leave the chat
Any other text is sent to every peer.`

// Processor interprets operator input lines one at a time.
type Processor struct {
	node Controller
	out  display.Display
	echo display.Display
}

// NewProcessor builds a processor writing feedback to out. echo, if not
// nil, is shown every message the operator sends; line-mode consoles leave
// it nil because the typed line is already on screen.
func NewProcessor(node Controller, out, echo display.Display) *Processor {
	return &Processor{node: node, out: out, echo: echo}
}

// Handle executes one line and reports whether the operator asked to quit.
func (p *Processor) Handle(ctx context.Context, line string) (quit bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return false
	}

	switch {
	case line == "/help":
		p.out.ShowSystem(HelpText)
	case line == "/peers":
		p.showPeers()
	case line == "/quit":
		p.out.ShowSystem("leaving the chat...")
		return true
	case line == "/connect" || strings.HasPrefix(line, "/connect "):
		p.connect(ctx, strings.Fields(line)[1:])
	default:
		msg, err := p.node.Send(line)
		if err != nil {
			p.out.ShowSystem(fmt.Sprintf("[error] message not sent: %v", err))
			return false
		}
		if p.echo != nil {
			p.echo.ShowMessage(msg)
		}
	}
	return false
}

func (p *Processor) connect(ctx context.Context, args []string) {
	if len(args) != 2 {
		p.out.ShowSystem("usage: /connect HOST PORT")
		return
	}
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		p.out.ShowSystem(fmt.Sprintf("invalid port %q", args[1]))
		return
	}

	p.Connect(ctx, wire.Addr{Host: args[0], Port: port})
}

// Connect dials target and reports progress on the display. It is also
// used for bootstrap peers at startup.
func (p *Processor) Connect(ctx context.Context, target wire.Addr) {
	p.out.ShowSystem(fmt.Sprintf("connecting to %s...", target))
	if err := p.node.Connect(ctx, target.Host, target.Port); err != nil {
		if errors.Is(err, peer.ErrExists) {
			p.out.ShowSystem(fmt.Sprintf("already connected to %s", target))
			return
		}
		p.out.ShowSystem(fmt.Sprintf("[error] could not connect to %s: %v", target, err))
	}
}

func (p *Processor) showPeers() {
	infos := p.node.Peers()
	if len(infos) == 0 {
		p.out.ShowSystem("no peers connected")
		return
	}

	var b strings.Builder
	b.WriteString("connected peers:")
	for _, info := range infos {
		name := info.Name
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(&b, "\n- %s %s", info.ID, name)
	}
	p.out.ShowSystem(b.String())
}

// Run feeds lines to proc until the operator quits, the source closes or
// ctx is cancelled. It reports whether the exit was an explicit /quit.
func Run(ctx context.Context, lines <-chan string, proc *Processor) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				return false
			}
			if proc.Handle(ctx, line) {
				return true
			}
		}
	}
}
