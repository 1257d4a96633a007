package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ama/dialogue"
)

// TUI message types
type StateMsg struct{ Change dialogue.Change }
type NoticeMsg struct{ Text string }
type tickMsg time.Time

// controls is what the keyboard drives. *dialogue.Orchestrator implements it.
type controls interface {
	Toggle()
	RequestStop()
	RequestInterrupt()
	RequestHide()
	InputLevel() float64
	OutputLevel() float64
}

type tuiModel struct {
	agent         controls
	state         dialogue.State
	status        string
	frame         int
	level         float64
	width, height int
	deviceLine    string
	notice        string
	turns         int
	transcript    string
	reply         string
	hidden        bool
}

// Eye palettes, one per agent state. Index 0 is transparent; 14 and 15 are
// the glass highlights.
var palettes = map[dialogue.State][]string{
	dialogue.Idle:      {"", "231", "224", "217", "210", "160", "124", "88", "52", "236", "236", "236", "236", "236", "255", "249"},
	dialogue.Listening: {"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236", "236", "236", "236", "255", "249"},
	dialogue.Thinking:  {"", "195", "159", "123", "87", "45", "39", "33", "27", "17", "236", "236", "236", "236", "255", "249"},
	dialogue.Talking:   {"", "194", "157", "120", "83", "46", "40", "34", "28", "22", "236", "236", "236", "236", "255", "249"},
}

type eyeStyles struct {
	fg [16]lipgloss.Style
	bg [16][16]lipgloss.Style
}

// Pre-computed pixel styles to avoid allocations in render loop
var stateStyles = map[dialogue.State]*eyeStyles{}

func init() {
	for state, colors := range palettes {
		s := &eyeStyles{}
		for i, fg := range colors {
			if fg == "" {
				continue
			}
			s.fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
			for j, bg := range colors {
				if bg != "" {
					s.bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
				}
			}
		}
		stateStyles[state] = s
	}
}

func newTUIModel(agent controls, deviceLine string) tuiModel {
	return tuiModel{agent: agent, state: dialogue.Idle, deviceLine: deviceLine}
}

func NewTUIProgram(agent controls, deviceLine string) *tea.Program {
	return tea.NewProgram(newTUIModel(agent, deviceLine), tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ":
			m.hidden = false
			m.agent.Toggle()
		case "s":
			m.agent.RequestStop()
		case "i":
			m.agent.RequestInterrupt()
		case "h":
			m.hidden = true
			m.agent.RequestHide()
		}

	case tickMsg:
		m.frame++
		m.level = m.level*0.6 + m.liveLevel()*0.4
		return m, tuiTick()

	case StateMsg:
		ch := msg.Change
		m.state = ch.To
		m.status = ch.Status
		if ch.Event == dialogue.EventReply {
			m.turns++
			m.transcript = ch.Transcript
			m.reply = ch.Reply
		}
		if ch.To != dialogue.Idle {
			m.hidden = false
		}

	case NoticeMsg:
		m.notice = msg.Text
	}
	return m, nil
}

// liveLevel is the loudness that drives the eye: the microphone while
// listening, the reply while talking.
func (m tuiModel) liveLevel() float64 {
	switch m.state {
	case dialogue.Listening:
		return m.agent.InputLevel()
	case dialogue.Talking:
		return m.agent.OutputLevel()
	}
	return 0
}

var stateLabels = map[dialogue.State]struct {
	text  string
	color string
}{
	dialogue.Idle:      {"○ IDLE", "241"},
	dialogue.Listening: {"● LISTENING", "208"},
	dialogue.Thinking:  {"◌ THINKING", "39"},
	dialogue.Talking:   {"◉ TALKING", "40"},
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const eyeWidth = 45

	var infoLines []string
	if m.hidden {
		infoLines = append(infoLines, strings.Repeat("\n", 14), lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).Render("(hidden)"))
	} else {
		infoLines = append(infoLines, renderEye(m.frame, m.level, m.state))
	}

	label := stateLabels[m.state]
	infoLines = append(infoLines, lipgloss.NewStyle().
		Foreground(lipgloss.Color(label.color)).
		Bold(m.state != dialogue.Idle).
		Render(label.text))

	if m.status != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Render("  ⚠ "+m.status))
	}
	if m.deviceLine != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render(m.deviceLine))
	}
	if m.notice != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Render(m.notice))
	}

	infoLines = append(infoLines, "")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	infoLines = append(infoLines,
		boldStyle.Render("Ctrl+Shift+Space")+helpStyle.Render(" or ")+boldStyle.Render("space")+helpStyle.Render(" to talk"),
		helpStyle.Render("s stop · i interrupt · h hide · q quit"),
		helpStyle.Render("ama "+version))

	eyeLines := strings.Split(strings.Join(infoLines, "\n"), "\n")

	logWidth := max(m.width-eyeWidth-1, 20)
	wrapWidth := max(logWidth-2, 10)

	var right strings.Builder
	if m.turns > 0 {
		right.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")).
			Render(fmt.Sprintf("Last exchange (#%d)", m.turns)) + "\n\n")
		youStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
		for _, line := range wrapText("you: "+m.transcript, wrapWidth) {
			right.WriteString(youStyle.Render(line) + "\n")
		}
		right.WriteString("\n")
		agentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
		for _, line := range wrapText("ama: "+m.reply, wrapWidth) {
			right.WriteString(agentStyle.Render(line) + "\n")
		}
	} else {
		right.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render("Nothing said yet"))
	}

	logPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	// Pad eye panel to full height (eye at top)
	eyePadded := make([]string, m.height)
	for i := range eyePadded {
		if i < len(eyeLines) {
			eyePadded[i] = eyeLines[i]
		} else {
			eyePadded[i] = strings.Repeat(" ", eyeWidth-1)
		}
	}

	eyePanel := lipgloss.NewStyle().
		Width(eyeWidth - 1).
		Height(m.height).
		Render(strings.Join(eyePadded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, eyePanel, logPanel)
}

// breathe is how far the rings swell this frame.
func breathe(frame int, level float64, state dialogue.State) float64 {
	f := float64(frame)
	switch state {
	case dialogue.Listening, dialogue.Talking:
		return math.Sin(f*0.10)*0.03 + level*10.0 - 0.05
	case dialogue.Thinking:
		return math.Sin(f*0.35)*0.06 - 0.02
	}
	return math.Sin(f*0.08)*0.02 - 0.05
}

func renderEye(frame int, level float64, state dialogue.State) string {
	const charsW = 44
	const charsH = 15
	const pixW = charsW
	const pixH = charsH * 2

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2
	swell := breathe(frame, level, state)

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	rings := []struct {
		radius     float64
		breatheAmt float64
		colorIdx   int
	}{
		{0.6, 0.10, 1},
		{1.3, 0.12, 2},
		{2.0, 0.15, 3},
		{2.8, 0.35, 4},
		{3.5, 0.40, 5},
		{4.2, 0.38, 6},
		{5.0, 0.30, 7},
		{5.8, 0.15, 8},
		{6.5, 0.03, 9},
		{7.2, 0.0, 10},
		{8.0, 0.0, 11},
		{10.0, 0.0, 12},
		{12.0, 0.0, 13},
	}

	for y := range pixH {
		for x := range pixW {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := min(r.radius+swell*r.breatheAmt*20, 10.0)
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	// Glass reflections
	spots := []struct {
		ox, oy float64
		radius float64
		color  int
	}{
		{-9.0 * 0.707, -9.0 * 0.707, 0.7, 14},
		{-7.2 * 0.707, -7.2 * 0.707, 0.4, 15},
		{0, -10.0, 0.8, 14},
		{0, -8.2, 0.6, 15},
		{9.0 * 0.707, -9.0 * 0.707, 0.7, 14},
		{7.2 * 0.707, -7.2 * 0.707, 0.4, 15},
		{0, -2.0, 0.6, 14},
	}
	for y := range pixH {
		for x := range pixW {
			px := float64(x) - centerX
			py := float64(y) - centerY
			for _, s := range spots {
				dx, dy := px-s.ox, py-s.oy
				rLen := math.Sqrt(s.ox*s.ox + s.oy*s.oy)
				if rLen < 0.001 {
					rLen = 1
				}
				tx, ty := -s.oy/rLen, s.ox/rLen
				dt := dx*tx + dy*ty
				dn := dx*(-ty) + dy*tx
				if (dt*dt)/9.0+dn*dn < s.radius*s.radius {
					pixels[y][x] = s.color
				}
			}
		}
	}

	styles := stateStyles[state]
	if styles == nil {
		styles = stateStyles[dialogue.Idle]
	}

	var result strings.Builder
	for cy := range charsH {
		for cx := range charsW {
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			switch {
			case top == 0 && bot == 0:
				result.WriteString(" ")
			case top == bot:
				result.WriteString(styles.fg[top].Render("█"))
			case bot == 0:
				result.WriteString(styles.fg[top].Render("▀"))
			case top == 0:
				result.WriteString(styles.fg[bot].Render("▄"))
			default:
				result.WriteString(styles.bg[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return strings.TrimSuffix(result.String(), "\n")
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// tuiSink forwards events to the program without blocking the orchestrator.
type tuiSink struct {
	msgs chan tea.Msg
}

func newTUISink(p *tea.Program) *tuiSink {
	s := &tuiSink{msgs: make(chan tea.Msg, 64)}
	go func() {
		for msg := range s.msgs {
			p.Send(msg)
		}
	}()
	return s
}

func (s *tuiSink) push(msg tea.Msg) {
	select {
	case s.msgs <- msg:
	default:
	}
}

func (s *tuiSink) StateChanged(ch dialogue.Change) { s.push(StateMsg{Change: ch}) }
func (s *tuiSink) Notice(text string)              { s.push(NoticeMsg{Text: text}) }
