package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/trickle"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	run     AgentFunc
	session *trickle.Session
	cfg     Config
	styles  Styles
	frames  *Frames
	logger  *slog.Logger

	blocks     []MessageBlock
	blockFocus int // index of focused thinking block (-1 = none)

	// Streaming blocks of the current turn, keyed by event Index.
	activeText     map[int]StreamingBlock
	activeThinking map[int]*ThinkingBlock

	running bool
	cancel  context.CancelFunc
	eventCh chan trickle.Event
	doneCh  chan error
	err     error
	ready   bool
}

// New creates a TUI Model for session. Zero fields of cfg take their
// defaults.
func New(run AgentFunc, session *trickle.Session, cfg Config) Model {
	cfg = cfg.withDefaults()

	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	return Model{
		Input:          ti,
		run:            run,
		session:        session,
		cfg:            cfg,
		styles:         NewStyles(cfg.Theme),
		frames:         NewFrames(cfg.FPS),
		logger:         cfg.Logger,
		blockFocus:     -1,
		activeText:     make(map[int]StreamingBlock),
		activeThinking: make(map[int]*ThinkingBlock),
	}
}

// Running returns whether an agent turn is in progress.
func (m Model) Running() bool { return m.running }

// Err returns the last error, if any.
func (m Model) Err() error { return m.err }

// Blocks returns the transcript blocks.
func (m Model) Blocks() []MessageBlock { return m.blocks }

// Animating reports whether any block is still revealing text.
func (m Model) Animating() bool {
	for _, b := range m.streaming() {
		if b.Animating() {
			return true
		}
	}
	return false
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m, m.frames.Schedule()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case FrameMsg:
		m.frames.Fire(msg.Time)
		m = m.refresh()
		return m, m.frames.Schedule()

	case StreamEventMsg:
		m = m.processEvent(msg.Event)
		m = m.refresh()
		cmds = append(cmds, m.frames.Schedule())
		if m.eventCh != nil {
			cmds = append(cmds, listenForEvent(m.eventCh, m.doneCh))
		}
		return m, tea.Batch(cmds...)

	case AgentDoneMsg:
		m.running = false
		m.cancel = nil
		m.eventCh = nil
		m.doneCh = nil
		for _, b := range m.streaming() {
			b.End()
		}
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
			m.blocks = append(m.blocks, NewErrorBlock(msg.Err, m.styles))
			m.logger.Error("turn failed", "error", msg.Err)
		}
		m = m.updateBlockFocus()
		m = m.refresh()
		cmds = append(cmds, m.Input.Focus(), m.frames.Schedule())
		return m, tea.Batch(cmds...)
	}

	// Viewport always receives remaining messages for scrolling.
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := max(msg.Height-inputH-statusHeight-borderHeight, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m = m.renderSession()
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = msg.Width
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		for _, b := range m.streaming() {
			b.Stop()
		}
		return m, tea.Quit

	case tea.KeyEsc:
		m = m.skip()
		return m, nil

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)

	case tea.KeyTab:
		if !m.running && m.blockFocus >= 0 {
			block, cmd := m.blocks[m.blockFocus].Update(ToggleMsg{})
			m.blocks[m.blockFocus] = block
			m.Viewport.SetContent(m.renderContent())
			return m, cmd
		}
		return m, nil

	case tea.KeyShiftTab:
		if !m.running {
			m = m.cycleFocusPrev()
		}
		return m, nil
	}

	// When idle, character keys go to the input only; navigation keys also
	// scroll the viewport.
	if !m.running {
		var cmd tea.Cmd
		var cmds []tea.Cmd
		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

// skip reveals all received text in every streaming block.
func (m Model) skip() Model {
	for _, b := range m.streaming() {
		b.Skip()
	}
	return m.refresh()
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.err = nil
	m = m.skip()

	m.session.Messages = append(m.session.Messages, trickle.UserMessage{
		Content:   []trickle.ContentBlock{trickle.TextBlock{Text: text}},
		Timestamp: time.Now(),
	})
	m.blocks = append(m.blocks, NewUserMessageBlock(text, m.styles))
	m = m.refresh()

	m.activeText = make(map[int]StreamingBlock)
	m.activeThinking = make(map[int]*ThinkingBlock)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.eventCh = make(chan trickle.Event, 256)
	m.doneCh = make(chan error, 1)
	m.running = true
	m.Input.Blur()
	m.logger.Debug("turn started", "messages", len(m.session.Messages))

	return m, tea.Batch(
		startAgent(m.run, ctx, m.session, m.eventCh, m.doneCh),
		listenForEvent(m.eventCh, m.doneCh),
	)
}

// renderSession creates blocks from existing session messages. Restored
// text is shown in full without animation.
func (m Model) renderSession() Model {
	for _, msg := range m.session.Messages {
		switch msg := msg.(type) {
		case trickle.UserMessage:
			for _, b := range msg.Content {
				if tb, ok := b.(trickle.TextBlock); ok {
					m.blocks = append(m.blocks, NewUserMessageBlock(tb.Text, m.styles))
				}
			}
		case trickle.AssistantMessage:
			for _, b := range msg.Content {
				var (
					block StreamingBlock
					text  string
				)
				switch cb := b.(type) {
				case trickle.TextBlock:
					block, text = NewAssistantTextBlock(m.frames, m.cfg), cb.Text
				case trickle.ThinkingBlock:
					block, text = NewThinkingBlock(m.frames, m.cfg), cb.Thinking
				default:
					continue
				}
				if err := block.Push(text); err != nil {
					m.logger.Warn("restored block dropped", "error", err)
				}
				block.End()
				block.Skip()
				m.blocks = append(m.blocks, block)
			}
		}
	}
	return m.updateBlockFocus()
}

func (m Model) renderContent() string {
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

// refresh re-renders the transcript, following the bottom when the
// viewport was already there.
func (m Model) refresh() Model {
	if !m.ready {
		return m
	}
	follow := m.Viewport.AtBottom()
	m.Viewport.SetContent(m.renderContent())
	if follow {
		m.Viewport.GotoBottom()
	}
	return m
}

// processEvent routes a streaming event to the block for its index.
func (m Model) processEvent(evt trickle.Event) Model {
	var (
		block StreamingBlock
		delta string
	)
	switch e := evt.(type) {
	case trickle.EventTextDelta:
		b, ok := m.activeText[e.Index]
		if !ok {
			b = m.newTextBlock()
			m.activeText[e.Index] = b
			m.blocks = append(m.blocks, b)
		}
		block, delta = b, e.Delta
	case trickle.EventThinkingDelta:
		b, ok := m.activeThinking[e.Index]
		if !ok {
			b = NewThinkingBlock(m.frames, m.cfg)
			m.activeThinking[e.Index] = b
			m.blocks = append(m.blocks, b)
			m = m.updateBlockFocus()
		}
		block, delta = b, e.Delta
	default:
		return m
	}
	if err := block.Push(delta); err != nil {
		m.logger.Warn("delta dropped", "error", err)
	}
	return m
}

func (m Model) newTextBlock() StreamingBlock {
	if m.cfg.Renderer == RendererSnapshot {
		return NewSnapshotTextBlock(m.frames, m.cfg)
	}
	return NewAssistantTextBlock(m.frames, m.cfg)
}

func (m Model) streaming() []StreamingBlock {
	var out []StreamingBlock
	for _, b := range m.blocks {
		if sb, ok := b.(StreamingBlock); ok {
			out = append(out, sb)
		}
	}
	return out
}

// updateBlockFocus focuses the last thinking block. Only the focused block
// responds to Tab.
func (m Model) updateBlockFocus() Model {
	m.blockFocus = -1
	for i := len(m.blocks) - 1; i >= 0; i-- {
		if _, ok := m.blocks[i].(*ThinkingBlock); ok {
			m.blockFocus = i
			return m
		}
	}
	return m
}

// cycleFocusPrev moves blockFocus to the previous thinking block, wrapping
// around.
func (m Model) cycleFocusPrev() Model {
	start := m.blockFocus - 1
	if start < 0 {
		start = len(m.blocks) - 1
	}
	for i := range len(m.blocks) {
		idx := (start - i + len(m.blocks)) % len(m.blocks)
		if _, ok := m.blocks[idx].(*ThinkingBlock); ok {
			m.blockFocus = idx
			return m
		}
	}
	m.blockFocus = -1
	return m
}

func (m Model) statusLine() string {
	style := m.styles.Muted
	var line string
	switch {
	case m.err != nil:
		style = m.styles.Error
		line = fmt.Sprintf("Error: %v", m.err)
	case m.Animating():
		var v float64
		var backlog int
		for _, b := range m.streaming() {
			if b.Animating() {
				v = max(v, b.Velocity())
				backlog += b.Backlog()
			}
		}
		line = "Generating..."
		if v > 0 {
			line += fmt.Sprintf(" %.0f chars/s", v)
		}
		line += fmt.Sprintf(", %d queued. Esc to skip", backlog)
	case m.running:
		line = "Generating..."
	default:
		line = "Enter to send, Ctrl+C to quit"
	}
	if w := m.Viewport.Width; w > 0 {
		line = runewidth.Truncate(line, w, "…")
	}
	return style.Render(line)
}

// startAgent runs the agent turn in a goroutine and signals completion.
func startAgent(run AgentFunc, ctx context.Context, session *trickle.Session, eventCh chan<- trickle.Event, doneCh chan<- error) tea.Cmd {
	return func() tea.Msg {
		err := run(ctx, session, func(e trickle.Event) {
			select {
			case eventCh <- e:
			case <-ctx.Done():
			}
		})
		close(eventCh)
		doneCh <- err
		return nil
	}
}

// listenForEvent waits for the next event from the channel. When the
// channel closes, it reads the error from doneCh and returns AgentDoneMsg.
func listenForEvent(ch <-chan trickle.Event, doneCh <-chan error) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return AgentDoneMsg{Err: <-doneCh}
		}
		return StreamEventMsg{Event: evt}
	}
}
