// MiniChat TUI client.
//
// Layout
// ------
//   header   – server address, own name, key hints
//   viewport – everything the server relayed, scrollable
//   footer   – text input; its prompt mirrors the server's pending prompt
//
// Concurrency
// -----------
//   A single goroutine reads raw chunks from the TCP connection and forwards
//   them to the chunks channel.  The Bubbletea event loop consumes one chunk at
//   a time via waitForChunk (a tea.Cmd), immediately queuing the next read
//   after each chunk is processed.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	purple = lipgloss.Color("99")
	yellow = lipgloss.Color("220")
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")
	orange = lipgloss.Color("214")
	blue   = lipgloss.Color("75")
	cyan   = lipgloss.Color("86")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(purple).
			Foreground(white).
			Padding(0, 1)

	footerBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(gray).
				Padding(0, 1)

	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(purple)
	sysStyle    = lipgloss.NewStyle().Foreground(yellow).Italic(true)
	promptStyle = lipgloss.NewStyle().Foreground(cyan)
	myNameStyle = lipgloss.NewStyle().Bold(true).Foreground(orange)
	peerStyle   = lipgloss.NewStyle().Bold(true).Foreground(blue)
)

// chatSep separates the sender from the text in relayed lines.
const chatSep = " >>> "

// ---------------------------------------------------------------------------
// Bubbletea message types
// ---------------------------------------------------------------------------

type serverChunkMsg string    // raw bytes arrived from the server
type disconnectedMsg struct{} // server closed the connection

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

type model struct {
	addr   string
	conn   net.Conn
	chunks chan string // goroutine → bubbletea bridge

	in    stream
	me    string // name sent during the handshake
	named bool

	ready    bool
	viewport viewport.Model
	input    textinput.Model
	lines    []string // rendered lines shown in the viewport

	width, height int
}

func newModel(addr string, conn net.Conn, chunks chan string) model {
	ti := textinput.New()
	ti.Placeholder = "your name"
	ti.CharLimit = 1000
	ti.Focus()

	return model{
		addr:   addr,
		conn:   conn,
		chunks: chunks,
		input:  ti,
	}
}

// ---------------------------------------------------------------------------
// Tea interface
// ---------------------------------------------------------------------------

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChunk(m.chunks))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.vpHeight())
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.vpHeight()
		}
		m.input.Width = msg.Width - 4
		return m, nil

	case serverChunkMsg:
		for _, line := range m.in.feed(string(msg)) {
			m.appendLine(renderLine(line))
		}
		m.syncPrompt()
		return m, waitForChunk(m.chunks)

	case disconnectedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// vpHeight returns the number of lines available for the viewport.
func (m model) vpHeight() int {
	// header (1) + footer border (1) + footer input (1) = 3 lines reserved
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEnter:
		text := m.input.Value()
		if _, err := io.WriteString(m.conn, text+"\n"); err != nil {
			return m, tea.Quit
		}
		m.in.answered()
		if !m.named {
			// The first line is the handshake reply.
			m.me, m.named = text, true
			m.input.Placeholder = "Type a message…"
		} else {
			// The server never echoes a message back to its sender.
			m.appendLine(myNameStyle.Render(m.me) + chatSep + text)
		}
		m.input.Reset()
		m.syncPrompt()
		return m, nil

	case tea.KeyPgUp:
		m.viewport.HalfViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "\n  Connecting…"
	}

	who := m.me
	if !m.named {
		who = "(unnamed)"
	}
	hdr := headerStyle.
		Width(m.width).
		Render(fmt.Sprintf(" MiniChat  ·  %s  ·  %s  ·  PgUp/Dn: Scroll  Ctrl+C: Quit", m.addr, who))

	footer := footerBorderStyle.
		Width(m.width - 2).
		Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left, hdr, m.viewport.View(), footer)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// renderLine styles one server line by its shape.
func renderLine(line string) string {
	switch {
	case strings.HasPrefix(line, "==="):
		return bannerStyle.Render(line)
	case strings.HasPrefix(line, "用户 "), strings.HasPrefix(line, "有用户"), strings.HasPrefix(line, "欢迎 "):
		return sysStyle.Render("⚡ " + line)
	}
	if i := strings.Index(line, chatSep); i > 0 {
		return peerStyle.Render(line[:i]) + chatSep + line[i+len(chatSep):]
	}
	return line
}

// appendLine adds a rendered line and scrolls the viewport to the bottom.
func (m *model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// syncPrompt shows the server's pending prompt in front of the input.
func (m *model) syncPrompt() {
	p := m.in.prompt()
	if p == "" {
		p = ">"
	}
	m.input.Prompt = promptStyle.Render(p) + " "
}

// waitForChunk returns a tea.Cmd that blocks until the next chunk arrives on
// ch.  When ch is closed (server disconnected), it returns disconnectedMsg.
func waitForChunk(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		data, ok := <-ch
		if !ok {
			return disconnectedMsg{}
		}
		return serverChunkMsg(data)
	}
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	addr := flag.String("addr", "localhost:8888", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	chunks := make(chan string, 64)

	// Reader goroutine: TCP → chunks channel.
	go func() {
		defer close(chunks)
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				chunks <- string(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	p := tea.NewProgram(
		newModel(*addr, conn, chunks),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
