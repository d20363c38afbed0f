package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// replScrollback is how many output lines the TUI keeps on screen.
const replScrollback = 200

func newReplCmd(a *app) *cobra.Command {
	var lineMode bool
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive request console",
		Long: `Open an interactive console. Requests run in the background while you
type; their callbacks print as they complete. The transport is ticked every
repl.tick. Without a terminal on stdin the console reads one command per line
and exits after the input ends and every request has been delivered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			in := cmd.InOrStdin()
			if !lineMode && in == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
				return a.runTUI(ctx)
			}
			out := cmd.OutOrStdout()
			s := newReplSession(a, func(line string) { _, _ = fmt.Fprintln(out, line) })
			return runLineMode(ctx, in, out, s, a.cfg.REPL.Tick)
		},
	}
	cmd.Flags().BoolVar(&lineMode, "line", false, "force line mode even on a terminal")
	return cmd
}

// runLineMode reads commands from in and ticks the session between them.
// It returns once in is exhausted and nothing is pending, or on quit.
func runLineMode(ctx context.Context, in io.Reader, out io.Writer, s *replSession, tick time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = s.Close() }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	eof := false
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				eof = true
				lines = nil
				break
			}
			if err := s.Exec(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				_, _ = fmt.Fprintln(out, "error:", err)
			}
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				_, _ = fmt.Fprintln(out, "error:", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		if eof && s.Pending() == 0 {
			return nil
		}
	}
}

type replTickMsg time.Time

func replTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return replTickMsg(t)
	})
}

type replModel struct {
	ctx     context.Context
	session *replSession
	input   textinput.Model
	lines   []string
	tick    time.Duration
}

func newReplModel(ctx context.Context, a *app) *replModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "get https://example.com"
	ti.Width = 80
	ti.Focus()

	m := &replModel{ctx: ctx, input: ti, tick: a.cfg.REPL.Tick}
	m.session = newReplSession(a, func(line string) { m.appendLine(line) })
	return m
}

func (a *app) runTUI(ctx context.Context) error {
	_, err := tea.NewProgram(newReplModel(ctx, a), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (m *replModel) appendLine(line string) {
	m.lines = append(m.lines, strings.Split(line, "\n")...)
	if over := len(m.lines) - replScrollback; over > 0 {
		m.lines = m.lines[over:]
	}
}

func (m *replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, replTick(m.tick))
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			_ = m.session.Close()
			return m, tea.Quit
		case "enter":
			line := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			m.appendLine(sentStyle.Render("> " + line))
			if err := m.session.Exec(line); err != nil {
				if errors.Is(err, errQuit) {
					_ = m.session.Close()
					return m, tea.Quit
				}
				m.appendLine(errorStyle.Render("error: " + err.Error()))
			}
			return m, nil
		}

	case replTickMsg:
		if err := m.session.Tick(m.ctx); err != nil {
			m.appendLine(errorStyle.Render("error: " + err.Error()))
		}
		return m, replTick(m.tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *replModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("scriptnet"))
	b.WriteString(fmt.Sprintf(" %d pending\n\n", m.session.Pending()))
	for _, l := range m.lines {
		if strings.HasPrefix(l, "<- ") {
			l = resultStyle.Render(l)
		}
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • help commands • ctrl+c quit"))
	return b.String()
}
