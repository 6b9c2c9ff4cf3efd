package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/events"
	"github.com/braindrive/docchat/internal/logger"
	"github.com/braindrive/docchat/internal/scroll"
	"github.com/braindrive/docchat/internal/state"
	"github.com/braindrive/docchat/internal/tui/theme"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/editor"
)

const (
	// continuePrompt asks the backend to resume a cut-off reply.
	continuePrompt = "Please continue from where you left off."
	// wheelLines is the distance of one mouse wheel notch.
	wheelLines = 3
	// indicatorLabel is the jump-to-bottom indicator text.
	indicatorLabel = "↓ new messages"
	// streamBuffer is the capacity of the stream message channel.
	streamBuffer = 256
)

// EventBus is the part of the event bus the TUI uses: it turns bus events
// into toasts and publishes its own notices through it.
type EventBus interface {
	Subscribe(ctx context.Context, conversation string) (<-chan events.Event, error)
	Notify(ctx context.Context, conversation, text string) error
}

// Options configures an App.
type Options struct {
	Session *chat.Session
	Bus     EventBus // optional
	// Request is the template of every prompt; Prompt is filled per send.
	Request      chat.PromptRequest
	ModelLabel   string
	PersonaLabel string
	Scroll       scroll.Config
	DataDir      string
	// UIState is updated and saved as the chat goes on. Nil loads it from DataDir.
	UIState *state.UIState
}

// Messages posted to the update loop.
type (
	streamChunkMsg struct {
		messageID string
		text      string
	}
	conversationMsg struct {
		id string
	}
	streamDoneMsg struct {
		final   chat.Message
		outcome chat.Outcome
		err     error
	}
	busEventMsg struct {
		event events.Event
	}
	editorDoneMsg struct {
		messageID string
		content   string
		err       error
	}
)

// App is the main Bubbletea model: a transcript above a composer, with a
// status bar and toasts.
type App struct {
	// View components
	pane     *TranscriptPane
	composer textarea.Model
	status   *StatusBar
	toast    *Toast
	keys     keyMap

	// Chat state
	session    *chat.Session
	transcript chat.Transcript
	request    chat.PromptRequest
	streamCh   chan tea.Msg
	live       *liveStream // most recently started prompt
	pending    int         // prompts started but not yet finished

	// Scroll state
	scroll      *scroll.Controller
	sched       *teaScheduler
	scrollState scroll.State
	indicator   uv.Rectangle // last drawn indicator, for clicks

	// Layout management
	layout      Layout
	layoutDirty bool

	bus     EventBus
	busCh   <-chan events.Event
	uiState *state.UIState
	dataDir string
	ctx     context.Context
	cancel  context.CancelFunc
	width   int
	height  int

	quitting bool
}

// NewApp creates a new TUI application.
func NewApp(ctx context.Context, opts Options) *App {
	ctx, cancel := context.WithCancel(ctx)

	uiState := opts.UIState
	if uiState == nil {
		uiState = state.Load(opts.DataDir)
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about your documents..."
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(ComposerLines)
	// Enter sends; a newline needs alt+enter or ctrl+j.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))

	sched := newTeaScheduler()
	a := &App{
		pane:        NewTranscriptPane(uiState.Transcript.RenderMarkdown),
		composer:    ta,
		status:      NewStatusBar(opts.ModelLabel, opts.PersonaLabel),
		toast:       NewToast(),
		keys:        defaultKeyMap(),
		session:     opts.Session,
		request:     opts.Request,
		streamCh:    make(chan tea.Msg, streamBuffer),
		sched:       sched,
		bus:         opts.Bus,
		uiState:     uiState,
		dataDir:     opts.DataDir,
		ctx:         ctx,
		cancel:      cancel,
		layoutDirty: true,
	}
	if a.session != nil {
		a.transcript.ConversationID = a.session.ConversationID()
		a.status.SetConversation(a.transcript.ConversationID)
	}

	a.scroll = scroll.NewController(opts.Scroll,
		scroll.WithScheduler(sched),
		scroll.WithLogger(logger.Named("tui.scroll")),
	)
	a.scroll.OnStateChange(func(st scroll.State) { a.scrollState = st })
	a.pane.OnScroll(a.scroll.HandleScroll)
	a.scroll.Attach(a.pane)
	a.scrollState = a.scroll.State()

	return a
}

// Init initializes the application and returns any initial commands.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		a.composer.Focus(),
		a.waitForStream(),
	}
	if a.bus != nil {
		cmds = append(cmds, a.subscribeToEvents())
	}
	if id := a.transcript.ConversationID; id != "" {
		cmds = append(cmds, a.notify("Resumed conversation "+id))
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages. Commands queued by scroll callbacks
// are collected after every message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := a.update(msg)
	return a, tea.Batch(cmd, a.sched.Drain())
}

func (a *App) update(msg tea.Msg) tea.Cmd {
	if a.sched.Handle(msg) {
		return nil
	}

	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return a.handleKeyPress(msg)

	case tea.PasteMsg:
		var cmd tea.Cmd
		a.composer, cmd = a.composer.Update(msg)
		return cmd

	case tea.MouseClickMsg:
		return a.handleMouse(msg)

	case tea.MouseWheelMsg:
		return a.handleMouseWheel(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.applyLayout()
		// A resize reflows the transcript; follow it if allowed.
		a.scroll.DebouncedScrollToBottom(scroll.ScrollOptions{})
		return nil

	case streamChunkMsg:
		if a.transcript.Apply(chat.ChunkReceived{MessageID: msg.messageID, Text: msg.text}) {
			a.syncMessages()
			a.scroll.FollowStreamIfAllowed()
		}
		return a.waitForStream()

	case conversationMsg:
		return tea.Batch(a.assignConversation(msg.id), a.waitForStream())

	case streamDoneMsg:
		return tea.Batch(a.finishStream(msg), a.waitForStream())

	case editorDoneMsg:
		return a.applyEdit(msg)

	case busEventMsg:
		return tea.Batch(a.handleBusEvent(msg.event), a.waitForBus())

	case ShowToastMsg, ToastDismissMsg:
		return a.toast.Update(msg)
	}

	// Spinner ticks, cursor blinks and anything else the components care about.
	var cmd tea.Cmd
	a.composer, cmd = a.composer.Update(msg)
	return tea.Batch(cmd, a.status.Update(msg))
}

// handleKeyPress routes keys by priority: global keys, chat actions,
// scrolling, then the composer.
func (a *App) handleKeyPress(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a.quit()

	case key.Matches(msg, a.keys.Send):
		return a.send()

	case key.Matches(msg, a.keys.Stop):
		return a.stop()

	case key.Matches(msg, a.keys.Regenerate):
		return a.regenerate("")

	case key.Matches(msg, a.keys.Continue):
		return a.continueReply()

	case key.Matches(msg, a.keys.Edit):
		return a.editLastPrompt()

	case key.Matches(msg, a.keys.Markdown):
		return a.toggleMarkdown()

	case key.Matches(msg, a.keys.NewChat):
		return a.newConversation()

	case key.Matches(msg, a.keys.Bottom):
		a.scroll.HandleScrollToBottomClick()
		return nil

	case key.Matches(msg, a.keys.Page):
		a.scroll.HandleUserScrollIntent(scroll.IntentKey)
		a.pane.Update(msg)
		return nil
	}

	var cmd tea.Cmd
	a.composer, cmd = a.composer.Update(msg)
	return cmd
}

// handleMouse jumps to the bottom when the indicator is clicked.
func (a *App) handleMouse(msg tea.MouseClickMsg) tea.Cmd {
	mouse := msg.Mouse()
	if mouse.Button != tea.MouseLeft {
		return nil
	}
	if a.scrollState.ShowScrollToBottom && inRect(a.indicator, mouse.X, mouse.Y) {
		a.scroll.HandleScrollToBottomClick()
	}
	return nil
}

// handleMouseWheel scrolls the transcript as a deliberate user gesture.
func (a *App) handleMouseWheel(msg tea.MouseWheelMsg) tea.Cmd {
	mouse := msg.Mouse()

	var lines int
	switch mouse.Button {
	case tea.MouseWheelUp:
		lines = -wheelLines
	case tea.MouseWheelDown:
		lines = wheelLines
	default:
		return nil
	}

	a.scroll.HandleUserScrollIntent(scroll.IntentWheel)
	a.pane.ScrollBy(lines)
	return nil
}

// send submits the composer text as a new prompt.
func (a *App) send() tea.Cmd {
	prompt := strings.TrimSpace(a.composer.Value())
	if prompt == "" {
		return nil
	}
	a.composer.Reset()

	user := chat.NewUserMessage(prompt)
	reply := chat.NewPlaceholder()
	return a.startPrompt(prompt, chat.PromptSent{User: user, Reply: reply}, reply)
}

// regenerate re-sends the last prompt, replacing the last reply. A
// non-empty override replaces the prompt text.
func (a *App) regenerate(override string) tea.Cmd {
	if a.transcript.Streaming() {
		return nil
	}
	user := a.transcript.LastUser()
	if user == nil {
		return nil
	}
	prompt := user.Content
	if override != "" {
		prompt = override
	}
	reply := chat.NewPlaceholder()
	return a.startPrompt(prompt, chat.RegenerateStarted{Reply: reply}, reply)
}

// continueReply resumes the last reply when it was cut off.
func (a *App) continueReply() tea.Cmd {
	last := a.transcript.Last()
	if last == nil || last.Sender != chat.SenderAI || !last.CanContinue || a.transcript.Streaming() {
		return nil
	}
	reply := chat.NewPlaceholder()
	return a.startPrompt(continuePrompt, chat.ContinueStarted{From: last.ID, Reply: reply}, reply)
}

// startPrompt applies ev to the transcript and streams prompt into reply.
// A prompt still streaming is stopped first.
func (a *App) startPrompt(prompt string, ev chat.Event, reply *chat.Message) tea.Cmd {
	if a.session == nil {
		return a.toast.ShowError("no backend session")
	}

	a.transcript.Apply(ev)
	a.syncMessages()
	// Sending is an explicit request to see the newest content.
	a.scroll.ScrollToBottom(scroll.ScrollOptions{Force: true})

	req := a.request
	req.Prompt = prompt

	ctx, cancel := context.WithCancel(a.ctx)
	prev := a.live
	a.live = &liveStream{cancel: cancel, done: make(chan struct{})}
	a.pending++
	// The session mutates its own copy; the transcript follows via messages.
	go a.stream(ctx, req, reply.Clone(), prev, a.live)

	return a.status.SetStreaming(true)
}

// liveStream is the handle of one stream goroutine. done closes once its
// prompt has left the session.
type liveStream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// stream runs one prompt off the update loop and posts its chunks, the
// conversation id and the final reply, in that order. The previous
// prompt, if any, is stopped and drained before this one is sent.
func (a *App) stream(ctx context.Context, req chat.PromptRequest, working *chat.Message, prev, cur *liveStream) {
	defer close(cur.done)
	defer cur.cancel()

	if prev != nil {
		// prev may not have reached the session yet; cancelling its context
		// ends it either way.
		a.session.StopGeneration(a.ctx)
		prev.cancel()
		<-prev.done
	}
	outcome, err := a.session.SendPrompt(ctx, req, working, chat.Callbacks{
		OnChunk: func(text string) {
			a.post(streamChunkMsg{messageID: working.ID, text: text})
		},
		OnConversationID: func(id string) {
			a.post(conversationMsg{id: id})
		},
	})
	a.post(streamDoneMsg{final: *working, outcome: outcome, err: err})
}

// post delivers msg to the update loop in order, giving up when the app stops.
func (a *App) post(msg tea.Msg) {
	select {
	case a.streamCh <- msg:
	case <-a.ctx.Done():
	}
}

// waitForStream delivers the next stream message.
// This command is re-issued after every stream message.
func (a *App) waitForStream() tea.Cmd {
	ch := a.streamCh
	done := a.ctx.Done()
	return func() tea.Msg {
		select {
		case msg := <-ch:
			return msg
		case <-done:
			return nil
		}
	}
}

// stop ends the live prompt. The backend cancel runs off the update loop.
func (a *App) stop() tea.Cmd {
	if a.session == nil || a.pending == 0 {
		return nil
	}
	live := a.live
	go func() {
		a.session.StopGeneration(a.ctx)
		live.cancel()
	}()
	return nil
}

// finishStream replaces the streamed reply with its final copy.
func (a *App) finishStream(msg streamDoneMsg) tea.Cmd {
	a.transcript.Apply(chat.StreamFinished{Final: msg.final, Outcome: msg.outcome, Err: msg.err})
	a.syncMessages()
	a.scroll.DebouncedScrollToBottom(scroll.ScrollOptions{})

	var cmds []tea.Cmd
	if a.pending > 0 {
		a.pending--
	}
	if a.pending == 0 {
		a.live = nil
		cmds = append(cmds, a.status.SetStreaming(false))
	}
	if errors.Is(msg.err, chat.ErrAlreadyStreaming) {
		cmds = append(cmds, a.toast.ShowError("a reply is still streaming"))
	}

	// With a bus, failures and stops come back as bus events.
	if a.bus == nil {
		switch msg.outcome {
		case chat.OutcomeFailed:
			cmds = append(cmds, a.toast.ShowError(failureText(msg.err)))
		case chat.OutcomeStopped:
			cmds = append(cmds, a.toast.Show("Generation stopped"))
		}
	}
	return tea.Batch(cmds...)
}

func failureText(err error) string {
	if err == nil {
		return "Request failed"
	}
	return "Request failed: " + err.Error()
}

// assignConversation records the backend conversation id and remembers it
// for --resume.
func (a *App) assignConversation(id string) tea.Cmd {
	if !a.transcript.Apply(chat.ConversationAssigned{ID: id}) {
		return nil
	}
	a.status.SetConversation(id)

	title := ""
	if u := a.transcript.LastUser(); u != nil {
		title = truncateString(firstLine(u.Content), 60)
	}
	a.uiState.Remember(id, title, time.Now())
	a.saveUIState()
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// editLastPrompt opens the last prompt in $EDITOR.
func (a *App) editLastPrompt() tea.Cmd {
	if a.transcript.Streaming() {
		return nil
	}
	user := a.transcript.LastUser()
	if user == nil {
		return nil
	}

	tmp, err := os.CreateTemp("", "docchat_prompt_*.md")
	if err != nil {
		return a.toast.ShowError("cannot create temp file: " + err.Error())
	}
	path := tmp.Name()
	if _, err := tmp.WriteString(user.Content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(path)
		return a.toast.ShowError("cannot write temp file: " + err.Error())
	}
	_ = tmp.Close()

	cmd, err := editor.Command("docchat", path)
	if err != nil {
		_ = os.Remove(path)
		return a.toast.ShowError("no editor: " + err.Error())
	}

	id := user.ID
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		defer func() { _ = os.Remove(path) }()
		if err != nil {
			return editorDoneMsg{messageID: id, err: err}
		}
		content, err := os.ReadFile(path)
		return editorDoneMsg{messageID: id, content: strings.TrimSpace(string(content)), err: err}
	})
}

// applyEdit stores the edited prompt and regenerates the reply to it.
func (a *App) applyEdit(msg editorDoneMsg) tea.Cmd {
	if msg.err != nil {
		return a.toast.ShowError("edit failed: " + msg.err.Error())
	}
	if msg.content == "" {
		return nil
	}
	if !a.transcript.Apply(chat.MessageEdited{MessageID: msg.messageID, Content: msg.content}) {
		return nil
	}
	a.syncMessages()
	return a.regenerate(msg.content)
}

// toggleMarkdown switches AI replies between markdown and plain text.
func (a *App) toggleMarkdown() tea.Cmd {
	on := !a.pane.Markdown()
	a.pane.SetMarkdown(on)
	a.uiState.Transcript.RenderMarkdown = on
	a.saveUIState()
	a.scroll.UpdateScrollState(scroll.UpdateOptions{})
	if on {
		return a.toast.Show("Markdown on")
	}
	return a.toast.Show("Markdown off")
}

// newConversation clears the transcript; the next prompt starts a new
// backend conversation.
func (a *App) newConversation() tea.Cmd {
	if a.transcript.Streaming() {
		return nil
	}
	prev := a.transcript.ConversationID
	if a.session != nil {
		a.session.Reset()
	}
	if !a.transcript.Apply(chat.ConversationCleared{}) {
		return nil
	}
	a.status.SetConversation("")
	a.syncMessages()
	a.scroll.ScrollToBottom(scroll.ScrollOptions{Force: true})
	return a.notifyIn(prev, "Started a new conversation")
}

// syncMessages pushes transcript changes to the pane and the controller.
func (a *App) syncMessages() {
	a.pane.SetMessages(a.transcript.Messages)
	a.scroll.SetMessages(a.transcript.Tracked())
}

// notify publishes a notice for the current conversation.
func (a *App) notify(text string) tea.Cmd {
	return a.notifyIn(a.transcript.ConversationID, text)
}

// notifyIn publishes a notice through the bus, which shows it as a toast.
// Without a bus the toast is shown directly.
func (a *App) notifyIn(conversation, text string) tea.Cmd {
	if a.bus == nil {
		return a.toast.Show(text)
	}
	bus := a.bus
	ctx := a.ctx
	return func() tea.Msg {
		if err := bus.Notify(ctx, conversation, text); err != nil {
			logger.Warn("notice not published: %v", err)
			return ShowToastMsg{Text: text}
		}
		return nil
	}
}

// subscribeToEvents subscribes to bus events of every conversation.
func (a *App) subscribeToEvents() tea.Cmd {
	ch, err := a.bus.Subscribe(a.ctx, "*")
	if err != nil {
		logger.Warn("event subscription failed: %v", err)
		return a.toast.ShowError("events unavailable")
	}
	a.busCh = ch
	a.status.SetBusOnline(true)
	return a.waitForBus()
}

// waitForBus listens on the bus channel and converts events to messages.
// This command is re-issued after every event.
func (a *App) waitForBus() tea.Cmd {
	ch := a.busCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return busEventMsg{event: ev}
	}
}

// handleBusEvent turns notices, stops and failures into toasts.
func (a *App) handleBusEvent(ev events.Event) tea.Cmd {
	switch ev.Type {
	case events.TypeNotice:
		return a.toast.Show(ev.Text)
	case events.TypeStopped:
		return a.toast.Show("Generation stopped")
	case events.TypeFailed:
		if ev.Error != "" {
			return a.toast.ShowError("Request failed: " + ev.Error)
		}
		return a.toast.ShowError("Request failed")
	}
	return nil
}

// saveUIState persists the current UI state to disk.
func (a *App) saveUIState() {
	if a.dataDir == "" {
		return
	}
	if err := state.Save(a.dataDir, a.uiState); err != nil {
		logger.Warn("failed to save UI state: %v", err)
	}
}

// quit aborts any live prompt and stops the program.
func (a *App) quit() tea.Cmd {
	a.quitting = true
	if a.session != nil {
		a.session.Cleanup()
	}
	a.scroll.Cleanup()
	a.scroll.Detach()
	a.cancel()
	return tea.Quit
}

// applyLayout recalculates regions and resizes components.
func (a *App) applyLayout() {
	a.layout = CalculateLayout(a.width, a.height)
	a.pane.SetSize(a.layout.Transcript.Dx(), a.layout.Transcript.Dy())
	a.composer.SetWidth(max(a.layout.Composer.Dx()-2, 1))
	a.composer.SetHeight(max(a.layout.ComposerTextLines(), 1))
	a.status.SetSize(a.layout.Status.Dx(), a.layout.Status.Dy())
	a.layoutDirty = false
}

// View renders the current view. In Bubbletea v2, this returns tea.View
// with display options like AltScreen and MouseMode.
func (a *App) View() tea.View {
	var view tea.View
	view.AltScreen = true
	view.MouseMode = tea.MouseModeCellMotion

	if a.quitting {
		// Exit alt screen for proper terminal restoration
		view.AltScreen = false
		view.MouseMode = 0
		view.Content = lipgloss.NewLayer("")
		return view
	}

	if a.layoutDirty {
		a.applyLayout()
	}

	canvas := uv.NewScreenBuffer(a.width, a.height)
	view.Cursor = a.Draw(canvas, canvas.Bounds())
	view.Content = lipgloss.NewLayer(canvas.Render())
	view.BackgroundColor = theme.HexToColor(theme.Current().BgBase)
	return view
}

// Draw renders all components to the screen buffer.
func (a *App) Draw(scr uv.Screen, area uv.Rectangle) *tea.Cursor {
	s := theme.Current().S()

	a.pane.Draw(scr, a.layout.Transcript)

	// Indicator floats over the bottom-right of the transcript.
	a.indicator = uv.Rectangle{}
	if a.scrollState.ShowScrollToBottom && a.layout.Transcript.Dy() > 0 {
		label := s.Indicator.Render(indicatorLabel)
		a.indicator = placeBottomRight(a.layout.Transcript, label, 0)
		uv.NewStyledString(label).Draw(scr, a.indicator)
	}

	if a.layout.Composer.Dy() > 0 {
		box := s.Composer.
			Width(a.layout.Composer.Dx()).
			Height(a.layout.Composer.Dy()).
			Render(a.composer.View())
		uv.NewStyledString(box).Draw(scr, a.layout.Composer)
	}

	if a.layout.Footer.Dy() > 0 {
		hints := RenderHintBar(a.layout.Footer.Dx()-1, a.keys.hints(a.transcript.Streaming())...)
		DrawText(scr, a.layout.Footer, " "+hints)
	}
	a.status.Draw(scr, a.layout.Status)

	// Draw toast last so it appears on top of everything, above the status bar
	if content := a.toast.View(area.Dx()); content != "" {
		rowsAbove := a.layout.Status.Dy() + a.layout.Footer.Dy()
		uv.NewStyledString(content).Draw(scr, placeBottomRight(area, content, rowsAbove))
	}

	return nil
}

// ScrollState returns the rendered scroll state.
func (a *App) ScrollState() scroll.State {
	return a.scrollState
}

// Run starts the program and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	app := NewApp(ctx, opts)
	p := tea.NewProgram(app, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
