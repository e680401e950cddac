package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/hunt-engine/internal/handlers"
	"github.com/jwebster45206/hunt-engine/pkg/message"
)

const (
	BotName         = "Hunt"
	PlaceHolderText = "Type a message as the player..."
)

type speaker int

const (
	speakerPlayer speaker = iota
	speakerBot
	speakerSystem
	speakerError
)

type chatLine struct {
	from speaker
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	api          *APIClient
	lines        []chatLine
	progress     *handlers.ProgressResponse
	lastOutcome  string
	levelCount   int
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type playResponseMsg struct {
	response *handlers.PlayResponse
	err      error
}

type progressMsg struct {
	progress *handlers.ProgressResponse
	err      error
}

type levelsMsg struct {
	levels *handlers.LevelsResponse
	err    error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	imageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")). // lavender
			Italic(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, api *APIClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:       cfg,
		api:          api,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.refreshProgress(), m.loadLevels())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.7) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.lines = append(m.lines, chatLine{from: speakerPlayer, text: input})
			return m.startRequest(m.send("", input))
		}

	case playResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.lines = append(m.lines, chatLine{from: speakerError, text: msg.err.Error()})
			m.writeChatContent()
			return m, nil
		}
		m.lastOutcome = msg.response.Outcome
		m.lines = append(m.lines, renderDirectives(msg.response.Messages)...)
		m.writeChatContent()
		return m, m.refreshProgress()

	case progressMsg:
		switch {
		case msg.err == nil:
			m.progress = msg.progress
		case errors.Is(msg.err, errNoProgress):
			m.progress = nil
		default:
			m.lines = append(m.lines, chatLine{from: speakerError, text: msg.err.Error()})
			m.writeChatContent()
		}
		m.metaViewport.SetContent(m.writeMetadata())

	case levelsMsg:
		if msg.err == nil {
			m.levelCount = msg.levels.Count
			m.metaViewport.SetContent(m.writeMetadata())
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m ConsoleUI) startRequest(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.loading = true
	m.progressTick = 0
	m.writeChatContent()
	return m, tea.Batch(cmd, progressTick())
}

// renderDirectives turns the bot's outbound messages into chat lines.
func renderDirectives(ds []message.Directive) []chatLine {
	out := make([]chatLine, 0, len(ds))
	for _, d := range ds {
		switch d.Kind {
		case message.KindImage:
			out = append(out, chatLine{from: speakerBot, text: "[image] " + d.URL})
		default:
			out = append(out, chatLine{from: speakerBot, text: d.Text})
		}
	}
	return out
}

// writeChatContent rebuilds the transcript for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("HUNT PLAYTEST") + "\n\n")
	content.WriteString("You are playing as " + userStyle.Render(m.config.UserID) + ".\n")
	content.WriteString("Type messages as the player would in LINE. /help lists commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, l := range m.lines {
		content.WriteString(formatLine(l, chatWidth) + "\n\n")
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func formatLine(l chatLine, width int) string {
	switch l.from {
	case speakerPlayer:
		return userStyle.Render("You: ") + wordwrap.String(l.text, width-5)
	case speakerSystem:
		return systemStyle.Render(wordwrap.String(l.text, width))
	case speakerError:
		return errorStyle.Render("Error: " + wordwrap.String(l.text, width-7))
	}

	prefix := botStyle.Render(BotName + ": ")
	if strings.HasPrefix(l.text, "[image] ") {
		return prefix + imageStyle.Render(l.text)
	}
	return prefix + wordwrap.String(l.text, width-len(BotName)-2)
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("PLAYER") + "\n\n")

	content.WriteString("User ID:\n")
	content.WriteString(m.config.UserID + "\n\n")

	content.WriteString("State:\n")
	switch {
	case m.progress == nil:
		content.WriteString("(no record)\n\n")
	case m.progress.Corrupt:
		content.WriteString(errorStyle.Render("corrupt") + "\n\n")
	default:
		content.WriteString(m.progress.State + "\n\n")
	}

	if m.lastOutcome != "" {
		content.WriteString("Last outcome:\n")
		content.WriteString(m.lastOutcome + "\n\n")
	}

	if m.progress != nil {
		content.WriteString("Version:\n")
		content.WriteString(fmt.Sprintf("%d\n\n", m.progress.Version))
		content.WriteString("Last activity:\n")
		content.WriteString(m.progress.LastActivityTime.Local().Format("15:04:05") + "\n\n")
	}

	if m.levelCount > 0 {
		content.WriteString("Levels:\n")
		content.WriteString(fmt.Sprintf("%d\n", m.levelCount))
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /follow: Add friend\n")
	content.WriteString("• /reset: Admin reset\n")
	content.WriteString("• /copy: Copy user id\n")
	content.WriteString("• /new: New player\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))

	switch cmd {
	case "/help":
		m.lines = append(m.lines, chatLine{from: speakerSystem, text: `Commands:
• /follow - send a follow (friend-add) event
• /reset - reset progress through the admin API
• /state - reload the stored progress
• /copy - copy the player id to the clipboard
• /new - start over as a brand new player
• Ctrl+C - quit

Anything else is sent as a text message. Try 開始, an answer, or 到.`})

	case "/follow":
		m.lines = append(m.lines, chatLine{from: speakerSystem, text: "(player added the account as a friend)"})
		return m.startRequest(m.send("follow", ""))

	case "/reset":
		m.lines = append(m.lines, chatLine{from: speakerSystem, text: "(admin reset)"})
		return m.startRequest(m.reset())

	case "/state":
		m.writeChatContent()
		return m, m.refreshProgress()

	case "/copy":
		if err := clipboard.WriteAll(m.config.UserID); err != nil {
			m.lines = append(m.lines, chatLine{from: speakerError, text: "clipboard unavailable: " + err.Error()})
		} else {
			m.lines = append(m.lines, chatLine{from: speakerSystem, text: "Copied " + m.config.UserID})
		}

	case "/new":
		m.config.UserID = newPlayerID()
		m.lines = nil
		m.progress = nil
		m.lastOutcome = ""
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())
		return m, m.refreshProgress()

	default:
		m.lines = append(m.lines, chatLine{from: speakerError, text: "unknown command " + cmd})
	}

	m.writeChatContent()
	return m, nil
}

func (m ConsoleUI) send(event, text string) tea.Cmd {
	userID := m.config.UserID
	return func() tea.Msg {
		resp, err := m.api.play(userID, event, text)
		return playResponseMsg{resp, err}
	}
}

func (m ConsoleUI) reset() tea.Cmd {
	userID := m.config.UserID
	return func() tea.Msg {
		resp, err := m.api.resetProgress(userID)
		return playResponseMsg{resp, err}
	}
}

func (m ConsoleUI) refreshProgress() tea.Cmd {
	userID := m.config.UserID
	return func() tea.Msg {
		p, err := m.api.getProgress(userID)
		return progressMsg{p, err}
	}
}

func (m ConsoleUI) loadLevels() tea.Cmd {
	return func() tea.Msg {
		levels, err := m.api.listLevels()
		return levelsMsg{levels, err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Playtest?"))
	content.WriteString("\n\n")
	content.WriteString("Progress stays stored; rerun with -user " + m.config.UserID + " to continue.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar draws the indeterminate bar shown while a request is
// in flight.
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable > 60 {
		usable = 60
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 30
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
