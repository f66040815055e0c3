package cli

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"meshchat/internal/wire"
)

// Console is the line-mode front-end. It prints asynchronous events above
// the prompt and redraws the prompt afterwards.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	prompt string
	closed bool

	system lipgloss.Style
}

func NewConsole(out io.Writer, name string) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:    out,
		prompt: name + "> ",
		system: r.NewStyle().Faint(true),
	}
}

func (c *Console) ShowMessage(msg wire.Message) {
	c.print(msg.Display())
}

func (c *Console) ShowSystem(text string) {
	c.print(c.system.Render(text))
}

// Prompt writes the prompt without a preceding line.
func (c *Console) Prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		fmt.Fprint(c.out, c.prompt)
	}
}

// Close stops redrawing the prompt.
func (c *Console) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Console) print(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Clear whatever partial prompt is on the current line first.
	fmt.Fprintf(c.out, "\r\x1b[K%s\n", text)
	if !c.closed {
		fmt.Fprint(c.out, c.prompt)
	}
}

// ReadLines scans r in its own goroutine so a blocked read never stalls the
// caller. The channel closes at EOF or on a read error. After every line
// the prompt is redrawn.
func (c *Console) ReadLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
			c.Prompt()
		}
		if err := scanner.Err(); err != nil {
			log.Printf("CLI: read error: %v", err)
		}
	}()
	return lines
}
