// Package eventlog persists node lifecycle and message events to an
// append-only text file without ever blocking the caller.
package eventlog

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"meshchat/internal/queue"
)

type Kind string

const (
	SessionStart     Kind = "session-start"
	SessionEnd       Kind = "session-end"
	PeerConnected    Kind = "peer-connected"
	PeerDisconnected Kind = "peer-disconnected"
	MessageSent      Kind = "message-sent"
	MessageReceived  Kind = "message-received"
)

// TimeFormat is the timestamp layout of every log line.
const TimeFormat = time.RFC3339

type Event struct {
	Time   time.Time
	Kind   Kind
	Detail string
}

// Line renders e as "<timestamp> <kind> <detail>".
func (e Event) Line() string {
	detail := strings.NewReplacer("\r", " ", "\n", " ").Replace(e.Detail)
	return fmt.Sprintf("%s %s %s", e.Time.Format(TimeFormat), e.Kind, detail)
}

// Sink is what the node core needs from an event log.
type Sink interface {
	Emit(kind Kind, detail string)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Kind, string) {}

// Log is the asynchronous file sink. Emit enqueues; a single writer
// goroutine drains the queue and flushes after every line.
type Log struct {
	w     io.WriteCloser
	q     *queue.Unbounded[Event]
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
	errMu sync.Mutex
	err   error
}

// FileName is the per-node log file name, keyed by the listening port.
func FileName(port int) string {
	return fmt.Sprintf("chat_history_%d.log", port)
}

// Open opens (or creates) the log for port inside dir for appending.
func Open(dir string, port int) (*Log, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, FileName(port))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return New(f), nil
}

// New starts a sink writing to w. Close closes w.
func New(w io.WriteCloser) *Log {
	l := &Log{
		w:    w,
		q:    queue.NewUnbounded[Event](),
		now:  time.Now,
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Emit enqueues an event. Events emitted after Close are dropped.
func (l *Log) Emit(kind Kind, detail string) {
	l.q.Push(Event{Time: l.now(), Kind: kind, Detail: detail})
}

// Close flushes every pending event, then closes the file. It returns the
// first write error encountered, if any.
func (l *Log) Close() error {
	l.once.Do(func() {
		l.q.Close()
		<-l.done
		if err := l.w.Close(); err != nil {
			l.setErr(err)
		}
	})
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

func (l *Log) run() {
	defer close(l.done)

	bw := bufio.NewWriter(l.w)
	for ev := range l.q.Out() {
		if _, err := bw.WriteString(ev.Line() + "\n"); err != nil {
			l.setErr(err)
			continue
		}
		if err := bw.Flush(); err != nil {
			l.setErr(err)
		}
	}
}

func (l *Log) setErr(err error) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if l.err == nil {
		l.err = err
		log.Printf("EVENTLOG: write failed: %v", err)
	}
}
