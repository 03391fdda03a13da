/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/go-modemlink/internal/tui/components"
	"github.com/allbin/go-modemlink/internal/tui/keys"
	"github.com/allbin/go-modemlink/internal/tui/models"
	"github.com/allbin/go-modemlink/internal/tui/styles"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen [port]",
	Short: "Interactive modem console with real-time display",
	Long: `Open the modem through the transport and show traffic in a terminal UI.

Received data is pulled by the transport's receive callback and displayed as
it arrives. Press 'i' to enter insert mode and type AT commands; Enter sends
the line with a carriage return, Tab switches between ASCII and hex input.

Example usage:
  modemlink listen /dev/ttyUSB2
  modemlink listen --backend sim
  modemlink listen /dev/ttyUSB2 --baud 921600 --hex`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceArg(args)

		showHex, _ := cmd.Flags().GetBool("hex")
		noTimestamps, _ := cmd.Flags().GetBool("no-timestamps")

		s, err := loadSettings()
		if err != nil {
			return err
		}
		t, err := newTransport(s)
		if err != nil {
			return err
		}

		link := models.NewLinkModel(s.Device, t, s.SendTimeout)
		m := newListenModel(link)
		m.terminal.Formatter().SetDisplayMode(components.DisplayMode{
			ShowHex:        showHex,
			ShowASCII:      true,
			ShowTimestamps: !noTimestamps,
		})

		p := tea.NewProgram(m, tea.WithAltScreen())
		link.SetSender(p)

		_, err = p.Run()
		return errors.Join(err, link.Close())
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().Bool("hex", false, "Show hex next to ASCII")
	listenCmd.Flags().Bool("no-timestamps", false, "Hide timestamps from output")
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// inputHeight is the bordered single-line input box.
const inputHeight = 3

// listenModel represents the Bubble Tea model for the listen command
type listenModel struct {
	link      *models.LinkModel
	terminal  *components.Terminal
	input     *components.Input
	statusBar *components.StatusBar
	help      help.Model
	keys      keys.ListenKeys
}

func newListenModel(link *models.LinkModel) *listenModel {
	m := &listenModel{
		link:      link,
		terminal:  components.NewTerminal(80, 20),
		input:     components.NewInput("\r"),
		statusBar: components.NewStatusBar(link.Device()),
		help:      help.New(),
		keys:      keys.NewListenKeys(),
	}
	m.input.Blur()
	m.statusBar.SetLineConfig(link.Transport().Config().Line)
	return m
}

func (m *listenModel) notice(format string, args ...any) {
	m.terminal.AddNotice(components.NoticeMsg{
		Timestamp: time.Now(),
		Text:      fmt.Sprintf(format, args...),
	})
}

func (m *listenModel) Init() tea.Cmd {
	return tea.Batch(m.link.OpenCmd(), tick())
}

func (m *listenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// status bar, input box and the content border's top line
		m.terminal.SetSize(msg.Width, msg.Height-1-inputHeight-1)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.link.SetReady(true)
		_, cmd := m.terminal.Update(msg)
		cmds = append(cmds, cmd)

	case models.LinkStatusMsg:
		if msg.Open {
			m.statusBar.SetOpen()
			m.notice("link open: %s", m.link.Transport().Config().Line)
		} else {
			m.statusBar.SetClosed(msg.Err)
			m.notice("open failed: %v", msg.Err)
			if hint := portErrorHint(msg.Err); hint != "" {
				m.notice("%s", hint)
			}
		}

	case components.TrafficMsg:
		m.terminal.AddMessage(msg)

	case models.TxResultMsg:
		m.terminal.UpdateStatus(msg.ID, msg.Status())
		if msg.Err != nil {
			m.notice("send: %v (%d bytes queued)", msg.Err, msg.N)
		}

	case tickMsg:
		m.statusBar.SetStats(m.link.Stats())
		cmds = append(cmds, tick())

	case tea.KeyMsg:
		if m.link.IsInInsertMode() {
			cmds = append(cmds, m.updateInsert(msg))
		} else if cmd := m.updateNormal(msg); cmd != nil {
			return m, cmd
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *listenModel) updateInsert(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.link.SetInputMode(models.InputModeNormal)
		m.input.Blur()
		return nil

	case key.Matches(msg, m.keys.Enter):
		return m.sendInput()

	case key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
		return nil

	// Only arrows navigate history here; k and j are text.
	case msg.Type == tea.KeyUp:
		m.input.NavigateHistoryUp()
		return nil

	case msg.Type == tea.KeyDown:
		m.input.NavigateHistoryDown()
		return nil
	}

	_, cmd := m.input.Update(msg)
	return cmd
}

func (m *listenModel) sendInput() tea.Cmd {
	if !m.link.IsOpen() {
		m.notice("link is not open")
		return nil
	}

	value := m.input.Value()
	data, err := m.input.Encode()
	if err != nil {
		m.notice("invalid input: %v", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	entry, cmd := m.link.SendCmd(data)
	m.terminal.AddMessage(entry)
	m.input.AddToHistory(value)
	m.input.SetValue("")
	return cmd
}

// updateNormal returns a non-nil command only when the program should quit.
func (m *listenModel) updateNormal(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.InsertMode):
		m.link.SetInputMode(models.InputModeInsert)
		m.input.Focus()

	case key.Matches(msg, m.keys.Clear):
		m.terminal.Clear()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.ToggleHex):
		m.terminal.ToggleHex()

	case key.Matches(msg, m.keys.ToggleASCII):
		m.terminal.ToggleASCII()

	case key.Matches(msg, m.keys.ToggleTimestamps):
		m.terminal.ToggleTimestamps()

	case key.Matches(msg, m.keys.Up):
		m.terminal.ScrollUp()

	case key.Matches(msg, m.keys.Down):
		m.terminal.ScrollDown()

	case key.Matches(msg, m.keys.GotoTop):
		m.terminal.GotoTop()

	case key.Matches(msg, m.keys.GotoBottom):
		m.terminal.GotoBottom()

	case key.Matches(msg, m.keys.Stats):
		st := m.link.Stats()
		m.notice("events %d, callbacks %d (%d failed), overflows %d, line errors %d, unknown %d",
			st.Events, st.Callbacks, st.CallbackErrors, st.Overflows, st.LineErrors, st.UnknownEvents)
	}
	return nil
}

func (m *listenModel) View() string {
	content := "Initializing..."
	if m.link.IsReady() {
		content = m.terminal.View()
	}

	viewMode := "FOLLOW"
	if !m.terminal.Following() {
		viewMode = "SCROLL"
	}
	statusBar := m.statusBar.View(
		m.link.GetInputMode().String(),
		m.input.GetSendingMode().String(),
		viewMode,
		time.Now().Format("15:04:05"),
	)

	sections := []string{
		styles.ContentBorderStyle.Render(content),
		m.input.View(m.link.IsInInsertMode()),
	}
	if m.help.ShowAll {
		sections = append(sections, styles.HelpStyle.Render(m.help.View(m.keys)))
	}
	sections = append(sections, statusBar)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
