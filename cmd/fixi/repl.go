package main

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/mgomes/hyperfixi/fixi"
	"github.com/mgomes/hyperfixi/htmldoc"
)

var (
	accentColor    = lipgloss.Color("#3B82F6")
	successColor   = lipgloss.Color("#10B981")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#F59E0B")

	promptStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(successColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true).
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(highlightColor)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)

type entryKind int

const (
	entryResult entryKind = iota
	entryError
	entryLog
)

type historyEntry struct {
	input  string
	output string
	kind   entryKind
}

type replModel struct {
	textInput   textinput.Model
	engine      *fixi.Engine
	runtime     *fixi.Runtime
	doc         *htmldoc.Document
	me          fixi.Element
	locals      map[string]fixi.Value
	it          fixi.Value
	logs        *bytes.Buffer
	history     []historyEntry
	cmdHistory  []string
	historyIdx  int
	width       int
	height      int
	showHelp    bool
	showVars    bool
	quitting    bool
	initialized bool
}

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	CtrlC key.Binding
	CtrlD key.Binding
	CtrlL key.Binding
	Tab   key.Binding
	CtrlV key.Binding
	CtrlH key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "previous command"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next command"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "execute"),
	),
	CtrlC: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	CtrlD: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("ctrl+d", "quit"),
	),
	CtrlL: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "autocomplete"),
	),
	CtrlV: key.NewBinding(
		key.WithKeys("ctrl+v"),
		key.WithHelp("ctrl+v", "toggle vars"),
	),
	CtrlH: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("ctrl+k", "toggle help"),
	),
}

// nodeTypes feeds autocomplete with the type discriminants the decoder knows.
var nodeTypes = []string{
	"identifier", "literal", "member", "binary", "unary", "call", "new",
	"selector", "css", "template", "array", "object", "conditional",
	"possessive", "propertyOf", "me", "you", "it", "result", "event", "target",
	"detail", "set", "put", "add", "remove", "toggle", "show", "hide",
	"increment", "decrement", "log", "send", "trigger", "wait", "get",
	"return", "exit", "halt", "break", "continue", "throw", "if", "unless",
	"for", "repeat", "tell", "async",
}

func newREPLModel(cfg fileConfig, doc *htmldoc.Document) (replModel, error) {
	ti := textinput.New()
	ti.Placeholder = "{type: binary, operator: +, left: 1, right: 2}"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60
	ti.PromptStyle = promptStyle
	ti.Prompt = "fixi> "

	logs := new(bytes.Buffer)
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:          logs,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}).Level(zerolog.InfoLevel)
	engine, err := fixi.NewEngine(cfg.engineConfig(&logger))
	if err != nil {
		return replModel{}, err
	}

	me, err := doc.QueryOne("body")
	if err != nil {
		return replModel{}, err
	}
	if me == nil {
		me = doc.Root()
	}

	return replModel{
		textInput:  ti,
		engine:     engine,
		runtime:    engine.NewRuntime(doc),
		doc:        doc,
		me:         me,
		locals:     make(map[string]fixi.Value),
		it:         fixi.Undefined(),
		logs:       logs,
		history:    make([]historyEntry, 0),
		cmdHistory: make([]string, 0),
		historyIdx: -1,
	}, nil
}

func (m replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tea.EnterAltScreen)
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.CtrlC), key.Matches(msg, keys.CtrlD):
			m.quitting = true
			m.runtime.Close()
			return m, tea.Quit

		case key.Matches(msg, keys.CtrlL):
			m.history = make([]historyEntry, 0)
			return m, nil

		case key.Matches(msg, keys.CtrlV):
			m.showVars = !m.showVars
			return m, nil

		case key.Matches(msg, keys.CtrlH):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, keys.Up):
			if len(m.cmdHistory) > 0 {
				if m.historyIdx == -1 {
					m.historyIdx = len(m.cmdHistory) - 1
				} else if m.historyIdx > 0 {
					m.historyIdx--
				}
				m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Down):
			if m.historyIdx != -1 {
				if m.historyIdx < len(m.cmdHistory)-1 {
					m.historyIdx++
					m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				} else {
					m.historyIdx = -1
					m.textInput.SetValue("")
				}
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Tab):
			m = m.handleAutocomplete()
			return m, nil

		case key.Matches(msg, keys.Enter):
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}

			if strings.HasPrefix(input, ":") {
				var cmd tea.Cmd
				m, cmd = m.handleCommand(input)
				m.textInput.SetValue("")
				m.historyIdx = -1
				return m, cmd
			}

			output, isErr := m.evaluate(input)
			for _, line := range m.drainLogs() {
				m.history = append(m.history, historyEntry{output: line, kind: entryLog})
			}
			kind := entryResult
			if isErr {
				kind = entryError
			}
			m.history = append(m.history, historyEntry{
				input:  input,
				output: output,
				kind:   kind,
			})
			m.cmdHistory = append(m.cmdHistory, input)
			m.textInput.SetValue("")
			m.historyIdx = -1
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m replModel) handleCommand(input string) (replModel, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case ":help", ":h":
		m.showHelp = !m.showHelp
	case ":clear", ":c":
		m.history = make([]historyEntry, 0)
	case ":vars", ":v":
		m.showVars = !m.showVars
	case ":html":
		m.history = append(m.history, historyEntry{input: input, output: m.doc.String()})
	case ":reset", ":r":
		m.runtime.Close()
		m.runtime = m.engine.NewRuntime(m.doc)
		m.locals = make(map[string]fixi.Value)
		m.it = fixi.Undefined()
		m.history = append(m.history, historyEntry{
			input:  input,
			output: "Environment reset",
		})
	case ":quit", ":q":
		m.quitting = true
		m.runtime.Close()
		return m, tea.Quit
	default:
		m.history = append(m.history, historyEntry{
			input:  input,
			output: fmt.Sprintf("Unknown command: %s", cmd),
			kind:   entryError,
		})
	}
	return m, nil
}

func (m replModel) handleAutocomplete() replModel {
	input := m.textInput.Value()
	if input == "" {
		return m
	}

	// complete the trailing word
	cut := strings.LastIndexAny(input, " {[,:") + 1
	lastWord := input[cut:]
	if lastWord == "" {
		return m
	}

	var completions []string
	candidates := append(append([]string{}, nodeTypes...), m.engine.Registry().Names()...)
	for name := range m.locals {
		candidates = append(candidates, name)
	}
	candidates = append(candidates, m.runtime.Globals().Keys()...)
	seen := make(map[string]struct{})
	for _, c := range candidates {
		if _, dup := seen[c]; dup || !strings.HasPrefix(c, lastWord) {
			continue
		}
		seen[c] = struct{}{}
		completions = append(completions, c)
	}
	sort.Strings(completions)

	if len(completions) == 1 {
		m.textInput.SetValue(input[:cut] + completions[0])
		m.textInput.CursorEnd()
	} else if len(completions) > 1 {
		m.history = append(m.history, historyEntry{
			output: "Completions: " + strings.Join(completions, ", "),
		})
	}

	return m
}

// evaluate decodes one flow-style node and runs it against the persistent
// runtime. Locals and it carry over between inputs.
func (m *replModel) evaluate(input string) (string, bool) {
	expr, cmd, err := fixi.DecodeNode([]byte(input))
	if err != nil {
		return err.Error(), true
	}
	if cmd == nil {
		cmd = &fixi.ExprCommand{Expr: expr}
	}
	cmds := []fixi.Command{cmd}
	if err := m.engine.CheckCommands(cmds); err != nil {
		return err.Error(), true
	}

	result := fixi.Undefined()
	err = m.runtime.Execute(context.Background(), m.me, func(exec *fixi.Execution, frame *fixi.Frame) error {
		for name, val := range m.locals {
			frame.SetLocal(name, val)
		}
		frame.SetIt(m.it)
		val, sig, err := exec.RunCommands(cmds, frame)
		if err != nil {
			return err
		}
		switch sig.Kind {
		case fixi.SignalReturn, fixi.SignalExit:
			val = sig.Value
		}
		result = val
		m.locals = frame.Locals()
		m.it = frame.It()
		return nil
	})
	if err != nil {
		return err.Error(), true
	}
	return formatValue(result), false
}

func (m *replModel) drainLogs() []string {
	if m.logs.Len() == 0 {
		return nil
	}
	text := strings.TrimRight(m.logs.String(), "\n")
	m.logs.Reset()
	return strings.Split(text, "\n")
}

func formatValue(v fixi.Value) string {
	if v.Kind() == fixi.KindString {
		return fmt.Sprintf("%q", v.String())
	}
	return v.String()
}

func (m replModel) View() string {
	if !m.initialized {
		return "Loading..."
	}

	if m.quitting {
		return mutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder

	header := headerStyle.Render("fixi REPL")
	version := mutedStyle.Render(m.engine.ConfigSummary())
	b.WriteString(header + " " + version + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", min(m.width-2, 60))) + "\n\n")

	vars := m.variables()
	reservedLines := 8
	if m.showHelp {
		reservedLines += 12
	}
	if m.showVars {
		reservedLines += len(vars) + 3
	}
	availableHeight := m.height - reservedLines

	historyStart := 0
	if len(m.history) > availableHeight {
		historyStart = len(m.history) - availableHeight
	}

	for i := historyStart; i < len(m.history); i++ {
		entry := m.history[i]
		if entry.input != "" {
			b.WriteString(mutedStyle.Render("  › ") + entry.input + "\n")
		}
		switch entry.kind {
		case entryError:
			b.WriteString("  " + errorStyle.Render("✗ "+entry.output) + "\n")
		case entryLog:
			b.WriteString("  " + mutedStyle.Render(entry.output) + "\n")
			continue
		default:
			b.WriteString("  " + resultStyle.Render("→ "+entry.output) + "\n")
		}
		b.WriteString("\n")
	}

	if m.showVars {
		b.WriteString(renderVarsPanel(vars))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(renderHelpPanel())
		b.WriteString("\n")
	}

	b.WriteString(m.textInput.View() + "\n\n")

	footer := helpKeyStyle.Render("ctrl+k") + helpDescStyle.Render(" help  ") +
		helpKeyStyle.Render("ctrl+v") + helpDescStyle.Render(" vars  ") +
		helpKeyStyle.Render("ctrl+l") + helpDescStyle.Render(" clear  ") +
		helpKeyStyle.Render("ctrl+c") + helpDescStyle.Render(" quit")
	b.WriteString(footer)

	return b.String()
}

type replVar struct {
	name  string
	scope string
	value fixi.Value
}

func (m replModel) variables() []replVar {
	vars := make([]replVar, 0, len(m.locals))
	for name, val := range m.locals {
		vars = append(vars, replVar{name: name, scope: "local", value: val})
	}
	globals := m.runtime.Globals()
	for _, name := range globals.Keys() {
		if val, ok := globals.Get(name); ok {
			vars = append(vars, replVar{name: name, scope: "global", value: val})
		}
	}
	sort.SliceStable(vars, func(i, j int) bool {
		if vars[i].scope != vars[j].scope {
			return vars[i].scope > vars[j].scope
		}
		return vars[i].name < vars[j].name
	})
	return vars
}

func renderVarsPanel(vars []replVar) string {
	if len(vars) == 0 {
		return borderStyle.Render(mutedStyle.Render("No variables defined"))
	}

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Variables"))
	varNameStyle := lipgloss.NewStyle().Foreground(highlightColor)
	for _, v := range vars {
		line := fmt.Sprintf("  %s %s = %s", mutedStyle.Render(v.scope), varNameStyle.Render(v.name), formatValue(v.value))
		lines = append(lines, line)
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}

func renderHelpPanel() string {
	help := []struct {
		key  string
		desc string
	}{
		{"↑/↓", "Navigate command history"},
		{"Tab", "Autocomplete node types and names"},
		{"Enter", "Evaluate a flow YAML node"},
		{":html", "Print the current page"},
		{":help", "Toggle this help"},
		{":vars", "Toggle variables panel"},
		{":clear", "Clear history"},
		{":reset", "Reset variables and handlers"},
		{":quit", "Exit REPL"},
	}

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Help"))
	for _, h := range help {
		line := fmt.Sprintf("  %s  %s",
			helpKeyStyle.Render(fmt.Sprintf("%-8s", h.key)),
			helpDescStyle.Render(h.desc))
		lines = append(lines, line)
	}

	return borderStyle.Render(strings.Join(lines, "\n"))
}

func runREPL(model replModel) error {
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
