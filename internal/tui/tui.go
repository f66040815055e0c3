// Package tui is the full-screen terminal front-end: a scrolling chat
// panel, a live peer panel and a one-line input box.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"meshchat/internal/peer"
	"meshchat/internal/queue"
	"meshchat/internal/util"
	"meshchat/internal/wire"
)

var (
	primaryColor    = lipgloss.Color("#7C3AED") // Purple
	accentColor     = lipgloss.Color("#10B981") // Green
	errorColor      = lipgloss.Color("#EF4444") // Red
	mutedColor      = lipgloss.Color("#6B7280") // Gray
	backgroundColor = lipgloss.Color("#1F2937") // Dark gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Background(backgroundColor).
			Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	systemMessageStyle = lipgloss.NewStyle().
				Foreground(accentColor).
				Italic(true)

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(errorColor)

	ownMessageStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	peerMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#3B82F6"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Faint(true)

	outboundPeerStyle = lipgloss.NewStyle().
				Foreground(accentColor)

	inboundPeerStyle = lipgloss.NewStyle().
				Foreground(mutedColor)
)

const (
	// HistorySize caps the chat panel scrollback.
	HistorySize = 1000

	peerPanelWidth = 34
	maxPanelPeers  = 15
)

// PeerLister feeds the peer panel.
type PeerLister interface {
	Peers() []peer.Info
}

// PeerFunc adapts a function to PeerLister.
type PeerFunc func() []peer.Info

func (f PeerFunc) Peers() []peer.Info { return f() }

type entryKind int

const (
	entryPeer entryKind = iota
	entryOwn
	entrySystem
	entryError
)

type entry struct {
	at   time.Time
	kind entryKind
	text string
}

// tickMsg is sent periodically to refresh the peer panel and clock.
type tickMsg time.Time

// messageMsg carries a chat message into the update loop.
type messageMsg wire.Message

// systemMsg carries a status line into the update loop.
type systemMsg string

// Model is the bubbletea model. Submitted lines are pushed to input and
// never handled here.
type Model struct {
	name  string
	self  wire.Addr
	peers PeerLister
	input *queue.Unbounded[string]

	history  *util.RingBuffer[entry]
	peerList []peer.Info

	viewport viewport.Model
	textarea textarea.Model

	ready      bool
	showHelp   bool
	width      int
	height     int
	lastUpdate time.Time
}

// NewModel builds the model for the local node name at self. Lines the
// operator submits are pushed to input.
func NewModel(name string, self wire.Addr, peers PeerLister, input *queue.Unbounded[string]) *Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message or /help for commands..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 500
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return &Model{
		name:       name,
		self:       self,
		peers:      peers,
		input:      input,
		history:    util.NewRingBuffer[entry](HistorySize),
		viewport:   vp,
		textarea:   ta,
		lastUpdate: time.Now(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlH:
			m.showHelp = !m.showHelp
			m.updateViewport()
			return m, nil

		case tea.KeyEnter:
			// Pasted text can still carry line breaks.
			if line := wire.CleanContent(m.textarea.Value()); strings.TrimSpace(line) != "" {
				m.input.Push(line)
			}
			m.textarea.Reset()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		headerHeight := 3
		footerHeight := 5
		statusBarHeight := 1
		m.viewport.Width = max(m.width-peerPanelWidth-5, 10)
		m.viewport.Height = max(m.height-headerHeight-footerHeight-statusBarHeight-3, 1)
		m.textarea.SetWidth(max(m.width-4, 10))
		m.updateViewport()

	case messageMsg:
		kind := entryPeer
		if msg.SenderAddr == m.self {
			kind = entryOwn
		}
		m.append(kind, wire.Message(msg).Display())
		m.refreshPeers()
		return m, nil

	case systemMsg:
		kind := entrySystem
		if strings.HasPrefix(string(msg), "[error]") {
			kind = entryError
		}
		m.append(kind, string(msg))
		m.refreshPeers()
		return m, nil

	case tickMsg:
		m.refreshPeers()
		m.lastUpdate = time.Time(msg)
		return m, tickCmd()
	}

	var tiCmd, vpCmd tea.Cmd
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) append(kind entryKind, text string) {
	m.history.Push(entry{at: time.Now(), kind: kind, text: text})
	m.updateViewport()
	m.viewport.GotoBottom()
}

func (m *Model) refreshPeers() {
	if m.peers != nil {
		m.peerList = m.peers.Peers()
	}
}

func (m *Model) updateViewport() {
	if m.showHelp {
		m.viewport.SetContent(renderHelp())
		return
	}

	var content strings.Builder
	for _, e := range m.history.Snapshot() {
		content.WriteString(renderEntry(e))
		content.WriteString("\n")
	}
	m.viewport.SetContent(content.String())
}

func renderEntry(e entry) string {
	ts := timestampStyle.Render(e.at.Format("15:04:05"))
	var body string
	switch e.kind {
	case entryOwn:
		body = ownMessageStyle.Render(e.text)
	case entrySystem:
		body = systemMessageStyle.Render(e.text)
	case entryError:
		body = errorMessageStyle.Render(e.text)
	default:
		body = peerMessageStyle.Render(e.text)
	}
	return ts + " " + body
}

func renderHelp() string {
	return `KEYS
  Enter         send the line (commands start with /)
  Ctrl+H        toggle this help
  Ctrl+C / Esc  leave the chat

COMMANDS
  /connect HOST PORT   connect to a running peer
  /peers               list connected peers
  /help                print the command list
  /quit                leave the chat

The right panel lists connected peers: green were dialed by us,
gray connected to us.`
}

func (m *Model) View() string {
	if !m.ready {
		return "\n  Starting meshchat...\n"
	}

	header := headerStyle.Render(fmt.Sprintf("meshchat · %s @ %s", m.name, m.self))

	messagePanel := panelStyle.
		Width(m.viewport.Width + 2).
		Height(m.viewport.Height + 1).
		Render("Messages\n" + m.viewport.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, messagePanel, m.renderPeerPanel())

	inputArea := inputStyle.Width(max(m.width-4, 10)).Render(
		"Input (Ctrl+H for help)\n" + m.textarea.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, panels, m.renderStatusBar(), inputArea)
}

func (m *Model) renderPeerPanel() string {
	var content strings.Builder
	content.WriteString("Connected Peers\n")
	content.WriteString(strings.Repeat("─", peerPanelWidth-6) + "\n")

	if len(m.peerList) == 0 {
		content.WriteString("  No peers connected\n\n  Use /connect HOST PORT\n")
	}
	for i, info := range m.peerList {
		if i >= maxPanelPeers {
			fmt.Fprintf(&content, "  ... and %d more\n", len(m.peerList)-maxPanelPeers)
			break
		}
		dot := inboundPeerStyle.Render("●")
		if info.Outbound {
			dot = outboundPeerStyle.Render("●")
		}
		name := info.Name
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(&content, "  %s %s %s\n", dot, info.ID, name)
	}

	return panelStyle.Width(peerPanelWidth - 4).Height(m.viewport.Height + 1).Render(content.String())
}

func (m *Model) renderStatusBar() string {
	left := fmt.Sprintf("Node: %s", m.self)
	right := fmt.Sprintf("Peers: %d | %s", len(m.peerList), m.lastUpdate.Format("15:04:05"))

	width := max(m.width-4, 10)
	spacing := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return statusBarStyle.Width(width).Render(left + strings.Repeat(" ", spacing) + right)
}
