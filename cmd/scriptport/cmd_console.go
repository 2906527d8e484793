package main

import (
	"fmt"
	"strings"
	"time"

	"scriptport/client"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	colorMuted  = lipgloss.Color("#71717a")
	colorGreen  = lipgloss.Color("#4ade80")
	colorRed    = lipgloss.Color("#f87171")
	colorYellow = lipgloss.Color("#fbbf24")

	stylePrompt = lipgloss.NewStyle().Bold(true)
	styleResult = lipgloss.NewStyle().Foreground(colorGreen)
	styleError  = lipgloss.NewStyle().Foreground(colorRed)
	styleAck    = lipgloss.NewStyle().Foreground(colorYellow)
	styleSystem = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)

// msgResponse carries a server response back into the console loop.
type msgResponse struct {
	response string
}

// msgSendFailed reports a command that never got a response.
type msgSendFailed struct {
	err error
}

// consoleModel is the Bubble Tea model for the interactive console. Every
// line is sent on its own connection; one command is in flight at a time.
type consoleModel struct {
	input      textinput.Model
	client     *client.Client
	addr       string
	history    []string
	historyIdx int
	waiting    bool
}

func newConsoleModel(addr string, timeout time.Duration) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "Lua expression, script path, STOP or RESTART"
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 80

	c := client.NewClient(addr)
	c.SetTimeout(timeout)

	return consoleModel{
		input:      ti,
		client:     c,
		addr:       addr,
		history:    make([]string, 0, 100),
		historyIdx: -1,
	}
}

// Init implements tea.Model.
func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tea.Println(styleSystem.Render(fmt.Sprintf("scriptport console, sending to %s (Ctrl+C to quit)", m.addr))),
	)
}

// Update implements tea.Model.
func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "ctrl+l":
			return m, tea.ClearScreen

		case "up":
			if m.historyIdx < len(m.history)-1 {
				m.historyIdx++
				m.input.SetValue(m.history[m.historyIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.historyIdx > 0 {
				m.historyIdx--
				m.input.SetValue(m.history[m.historyIdx])
				m.input.CursorEnd()
			} else if m.historyIdx == 0 {
				m.historyIdx = -1
				m.input.SetValue("")
			}
			return m, nil

		case "enter":
			command := strings.TrimSpace(m.input.Value())
			if command == "" || m.waiting {
				return m, nil
			}

			m.input.SetValue("")
			m.history = append([]string{command}, m.history...)
			m.historyIdx = -1
			m.waiting = true

			echo := fmt.Sprintf("%s %s", stylePrompt.Render("["+m.addr+"] >"), command)
			return m, tea.Sequence(tea.Println(echo), sendCmd(m.client, command))
		}

	case msgResponse:
		m.waiting = false
		return m, tea.Println(renderResponse(msg.response))

	case msgSendFailed:
		m.waiting = false
		return m, tea.Println(styleError.Render(fmt.Sprintf("✗ %v", msg.err)))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model. Responses are printed above the prompt, so the
// view is just the prompt line itself.
func (m consoleModel) View() string {
	prompt := stylePrompt.Render("[" + m.addr + "] >")
	if m.waiting {
		return fmt.Sprintf("%s %s", prompt, styleSystem.Render("waiting..."))
	}
	return fmt.Sprintf("%s %s", prompt, m.input.View())
}

// sendCmd sends the command on a fresh connection and delivers the outcome
// as a message.
func sendCmd(c *client.Client, command string) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.Send(command)
		if err != nil {
			return msgSendFailed{err: err}
		}
		return msgResponse{response: resp}
	}
}

// renderResponse styles a server response: errors red, lifecycle
// acknowledgements yellow, everything else green.
func renderResponse(resp string) string {
	switch {
	case strings.HasPrefix(resp, "Error executing:"):
		return styleError.Render(resp)
	case resp == "Server shutting down..." || resp == "Server restarting...":
		return styleAck.Render(resp)
	default:
		return styleResult.Render(resp)
	}
}

// newConsoleCmd creates the "scriptport console" subcommand.
func newConsoleCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive console against a running server",
		Long:  "Opens a line-oriented console. Every line is sent on its own\nconnection and the response prints above the prompt. Up and down\nrecall history, Ctrl+C exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(newConsoleModel(addr, timeout))
			_, err := p.Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:7777", "server address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-command timeout")

	return cmd
}
