package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"meshchat/internal/chime"
	"meshchat/internal/cli"
	"meshchat/internal/config"
	"meshchat/internal/display"
	"meshchat/internal/eventlog"
	"meshchat/internal/node"
	"meshchat/internal/peer"
	"meshchat/internal/tui"
	"meshchat/internal/wire"
	"meshchat/internal/wsfeed"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	self := wire.Addr{Host: cfg.Host, Port: cfg.Port}

	if cfg.TUI {
		// The alt screen owns the terminal; diagnostics go to a file.
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log dir: %v\n", err)
			return 1
		}
		f, err := tea.LogToFile(filepath.Join(cfg.LogDir, fmt.Sprintf("debug_%d.log", cfg.Port)), "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open debug log: %v\n", err)
			return 1
		}
		defer f.Close()
	}

	var events eventlog.Sink = eventlog.Discard
	chatLog, err := eventlog.Open(cfg.LogDir, cfg.Port)
	if err != nil {
		log.Printf("EVENTLOG: chat history disabled: %v", err)
	} else {
		events = chatLog
	}
	session := uuid.NewString()
	events.Emit(eventlog.SessionStart, fmt.Sprintf("session %s %s at %s", session, cfg.Name, self))

	var sinks, echo []display.Display

	var ui *tui.Frontend
	var console *cli.Console
	var n *node.Node
	if cfg.TUI {
		// n is set before the program starts running.
		ui = tui.New(cfg.Name, self, tui.PeerFunc(func() []peer.Info { return n.Peers() }))
		sinks = append(sinks, ui)
		echo = append(echo, ui)
	} else {
		console = cli.NewConsole(os.Stdout, cfg.Name)
		sinks = append(sinks, console)
	}

	if cfg.Chime {
		c, err := chime.New(self, cfg.ChimeFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			closeLog(chatLog, session)
			return 1
		}
		sinks = append(sinks, c)
	}

	var feed *wsfeed.Server
	if cfg.WSAddr != "" {
		feed, err = wsfeed.Start(cfg.WSAddr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			closeLog(chatLog, session)
			return 1
		}
		defer feed.Close()
		sinks = append(sinks, feed)
		echo = append(echo, feed)
	}

	out := display.Multi(sinks...)

	n, err = node.New(node.Options{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Name:         cfg.Name,
		Display:      out,
		Events:       events,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Dedup:        cfg.Dedup,
		DedupWindow:  cfg.DedupWindow,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		closeLog(chatLog, session)
		return 1
	}

	var lines <-chan string
	uiDone := make(chan error, 1)
	if ui != nil {
		go func() { uiDone <- ui.Run() }()
		lines = ui.Lines()
	} else {
		console.Prompt()
		lines = console.ReadLines(os.Stdin)
	}

	n.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var proc *cli.Processor
	if len(echo) > 0 {
		proc = cli.NewProcessor(n, out, display.Multi(echo...))
	} else {
		proc = cli.NewProcessor(n, out, nil)
	}

	for _, addr := range cfg.Bootstrap {
		proc.Connect(ctx, addr)
	}

	if !cli.Run(ctx, lines, proc) && ctx.Err() != nil {
		out.ShowSystem("leaving the chat...")
	}

	if console != nil {
		console.Close()
	}
	n.Shutdown()
	if ui != nil {
		ui.Quit()
		if err := <-uiDone; err != nil {
			log.Printf("TUI: %v", err)
		}
	}

	closeLog(chatLog, session)
	return 0
}

func closeLog(l *eventlog.Log, session string) {
	if l == nil {
		return
	}
	l.Emit(eventlog.SessionEnd, "session "+session)
	if err := l.Close(); err != nil {
		log.Printf("EVENTLOG: %v", err)
	}
}
