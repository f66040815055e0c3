package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"meshchat/internal/queue"
	"meshchat/internal/wire"
)

// Frontend runs the bubbletea program and adapts it to display.Display.
type Frontend struct {
	program *tea.Program
	input   *queue.Unbounded[string]
}

// New prepares the full-screen UI. Call Run to take over the terminal.
func New(name string, self wire.Addr, peers PeerLister, opts ...tea.ProgramOption) *Frontend {
	input := queue.NewUnbounded[string]()
	model := NewModel(name, self, peers, input)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &Frontend{
		program: tea.NewProgram(model, opts...),
		input:   input,
	}
}

// Lines yields every submitted input line. It closes after Run returns.
func (f *Frontend) Lines() <-chan string {
	return f.input.Out()
}

// Run blocks until the UI quits (Ctrl-C, Esc or Quit).
func (f *Frontend) Run() error {
	defer f.input.Close()
	_, err := f.program.Run()
	return err
}

// Quit asks the program to exit. It is safe to call after it already has.
func (f *Frontend) Quit() {
	f.program.Quit()
}

func (f *Frontend) ShowMessage(msg wire.Message) {
	f.program.Send(messageMsg(msg))
}

func (f *Frontend) ShowSystem(text string) {
	f.program.Send(systemMsg(text))
}
