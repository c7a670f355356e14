package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/shared"
	"github.com/desertthunder/stocksync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	PreviewView
	ConfirmView
	ApplyView
	ResultView
)

// Syncer is the part of [tasks.Engine] the TUI drives.
type Syncer interface {
	Preview(ctx context.Context, req tasks.Request, progress chan<- tasks.ProgressUpdate) (*tasks.Plan, error)
	Execute(ctx context.Context, plan *tasks.Plan, req tasks.Request, progress chan<- tasks.ProgressUpdate) (*models.SyncResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx           context.Context
	view          ViewState
	engine        Syncer
	req           tasks.Request
	width         int
	height        int
	plan          *tasks.Plan
	opList        list.Model
	unmatchedList list.Model
	showUnmatched bool
	spinner       spinner.Model
	progressChan  chan tasks.ProgressUpdate
	doneChan      chan tea.Msg
	progress      tasks.ProgressUpdate
	cancel        *tasks.Flag
	cancelling    bool
	result        *models.SyncResult
	err           error
	help          help.Model
	keys          keyMap
}

// NewModel creates a new TUI model that previews and runs req through engine.
func NewModel(ctx context.Context, engine Syncer, req tasks.Request) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:     ctx,
		view:    LoadingView,
		engine:  engine,
		req:     req,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the finished run, if any.
func (m *Model) Result() *models.SyncResult { return m.result }

// Plan returns the reviewed plan, if loaded.
func (m *Model) Plan() *tasks.Plan { return m.plan }

// Err returns the last preview or run error.
func (m *Model) Err() error { return m.err }

// State returns the current view state.
func (m *Model) State() ViewState { return m.view }

// Init starts loading the preview.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startPreview())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case spinner.TickMsg:
		if m.view != LoadingView && m.view != ApplyView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ApplyView:
			return m.handleApplyKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgPreviewReady:
		data := msg.data.(previewReady)
		m.progressChan, m.doneChan = nil, nil
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.err = nil
		m.setPlan(data.plan)
		m.view = PreviewView
		return m, nil

	case MsgRunComplete:
		data := msg.data.(runComplete)
		m.progressChan, m.doneChan = nil, nil
		m.result = data.result
		m.err = data.err
		m.cancelling = false
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return m.renderLoading()
	case PreviewView:
		return m.renderPreview()
	case ConfirmView:
		return m.renderConfirm()
	case ApplyView:
		return m.renderApply()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	active := &m.opList
	if m.showUnmatched {
		active = &m.unmatchedList
	}
	if active.FilterState() == list.Filtering {
		var cmd tea.Cmd
		*active, cmd = active.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab):
		m.showUnmatched = !m.showUnmatched
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if m.plan != nil && len(m.plan.Preview.Planned) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	case key.Matches(msg, m.keys.restart):
		return m, m.reload()
	}

	var cmd tea.Cmd
	*active, cmd = active.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = ApplyView
		return m, tea.Batch(m.spinner.Tick, m.startRun())
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PreviewView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleApplyKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.cancel != nil && !m.cancelling {
		m.cancel.Cancel()
		m.cancelling = true
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		return m, m.reload()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != PreviewView {
		return m, nil
	}
	var cmd tea.Cmd
	if m.showUnmatched {
		m.unmatchedList, cmd = m.unmatchedList.Update(msg)
	} else {
		m.opList, cmd = m.opList.Update(msg)
	}
	return m, cmd
}

func (m *Model) setPlan(plan *tasks.Plan) {
	m.plan = plan

	ops := make([]list.Item, len(plan.Preview.Planned))
	for i, op := range plan.Preview.Planned {
		ops[i] = operationItem{op: op}
	}
	m.opList = list.New(ops, list.NewDefaultDelegate(), 0, 0)
	prices, inventory := plan.Preview.CountByType()
	m.opList.Title = fmt.Sprintf("Planned updates (%d prices, %d inventory)", prices, inventory)
	m.opList.SetShowHelp(false)

	rows := make([]list.Item, len(plan.Preview.UnmatchedRows))
	for i, row := range plan.Preview.UnmatchedRows {
		rows[i] = unmatchedItem{row: row}
	}
	m.unmatchedList = list.New(rows, list.NewDefaultDelegate(), 0, 0)
	m.unmatchedList.Title = fmt.Sprintf("Unmatched rows (%d)", len(rows))
	m.unmatchedList.SetShowHelp(false)

	m.showUnmatched = false
	m.resizeLists()
}

func (m *Model) resizeLists() {
	if m.plan == nil {
		return
	}
	w, h := max(m.width-4, 20), max(m.height-10, 5)
	m.opList.SetSize(w, h)
	m.unmatchedList.SetSize(w, h)
}

func (m *Model) reload() tea.Cmd {
	m.view = LoadingView
	m.plan = nil
	m.result = nil
	m.err = nil
	m.progress = tasks.ProgressUpdate{}
	return tea.Batch(m.spinner.Tick, m.startPreview())
}

func (m *Model) startPreview() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan tea.Msg, 1)

	progress, done := m.progressChan, m.doneChan
	engine, req, ctx := m.engine, m.req, m.ctx
	go func() {
		plan, err := engine.Preview(ctx, req, progress)
		done <- previewReadyMsg(plan, err)
	}()

	return m.waitForProgress()
}

func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan tea.Msg, 1)
	m.cancel = &tasks.Flag{}
	m.cancelling = false

	req := m.req
	req.Cancel = tasks.AnySignal(req.Cancel, m.cancel)

	progress, done := m.progressChan, m.doneChan
	engine, plan, ctx := m.engine, m.plan, m.ctx
	go func() {
		result, err := engine.Execute(ctx, plan, req, progress)
		done <- runCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

// waitForProgress relays the next progress update, or the completion message once the worker is done.
func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if done == nil {
			return nil
		}
		select {
		case update := <-progress:
			return progressUpdateMsg(update)
		case msg := <-done:
			return msg
		}
	}
}

func (m *Model) renderLoading() string {
	msg := m.progress.Message
	if msg == "" {
		msg = "Preparing preview..."
	}
	title := styles.title.Render("stocksync")
	return fmt.Sprintf("%s\n\n%s %s\n\n%s", title, m.spinner.View(), msg, m.help.ShortHelpView([]key.Binding{m.keys.quit}))
}

func (m *Model) renderPreview() string {
	var b strings.Builder

	p := m.plan.Preview
	fmt.Fprintf(&b, "%s rows • %s matched • %s catalog variants\n",
		styles.title.UnsetMarginBottom().Render(fmt.Sprint(p.TotalRows)),
		styles.ok.Render(fmt.Sprint(p.MatchedRows)),
		fmt.Sprint(m.plan.Variants))
	if n := len(p.Warnings); n > 0 {
		b.WriteString(styles.warn.Render(fmt.Sprintf("%d warnings (low-confidence matches or unknown values)", n)))
		b.WriteString("\n")
	}
	if m.req.DryRun {
		b.WriteString(styles.warn.Render("Dry run: nothing will be written to the shop"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.showUnmatched {
		b.WriteString(m.unmatchedList.View())
	} else if len(p.Planned) == 0 {
		b.WriteString(styles.ok.Render("Nothing to update: the shop already matches the file."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.opList.View())
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.tab, m.keys.restart, m.keys.quit}
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderConfirm() string {
	prices, inventory := m.plan.Preview.CountByType()

	action := "Apply"
	if m.req.DryRun {
		action = "Simulate"
	}
	title := styles.title.Render(fmt.Sprintf("%s %d updates?", action, prices+inventory))
	info := styles.box.Render(fmt.Sprintf("Source: %s\nPrice updates: %d\nInventory updates: %d\nUnmatched rows: %d",
		m.req.SourceName, prices, inventory, len(m.plan.Preview.UnmatchedRows)))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderApply() string {
	title := styles.title.Render("Applying updates")

	status := m.progress.Message
	if status == "" {
		status = "Starting..."
	}
	if m.progress.Phase == tasks.ApplyOperations && m.progress.Total > 0 {
		status = fmt.Sprintf("%s\n%s", progressBar(m.progress.Step, m.progress.Total, 30), status)
	}

	footer := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	if m.cancelling {
		footer = styles.warn.Render("Cancelling after the current operation...")
	}
	return fmt.Sprintf("%s\n\n%s %s\n\n%s", title, m.spinner.View(), status, footer)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Sync failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	r := m.result
	title := styles.title.Render(fmt.Sprintf("Sync %s", styles.Status(r.Status())))
	info := styles.box.Render(fmt.Sprintf("Planned: %d\nSucceeded: %d\nFailed: %d\nSkipped: %d\nDuration: %s",
		r.TotalPlanned, r.TotalSuccess, r.TotalFailed, r.TotalSkipped, shared.FormatDuration(r.Duration)))

	var notes strings.Builder
	var aborted *tasks.RunAbortedError
	if errors.As(m.err, &aborted) {
		notes.WriteString("\n")
		notes.WriteString(styles.warn.Render(fmt.Sprintf("Run stopped (%s): %d operations not attempted", aborted.Reason, aborted.Remaining)))
	} else if m.err != nil {
		notes.WriteString("\n")
		notes.WriteString(styles.err.Render(m.err.Error()))
	}

	shown := 0
	for _, op := range r.Operations {
		if op.Status != models.StatusFailed {
			continue
		}
		if shown == 0 {
			notes.WriteString("\n\n")
			notes.WriteString(styles.warn.Render(fmt.Sprintf("%d failed operations:", r.TotalFailed)))
		}
		if shown == 10 {
			notes.WriteString(fmt.Sprintf("\n  … and %d more", r.TotalFailed-shown))
			break
		}
		notes.WriteString(fmt.Sprintf("\n  • row %d %s %s: %s", op.RowNumber, op.Type, valueOr(op.SKU, op.ProductTitle), op.Message))
		shown++
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, notes.String(), helpView)
}

func progressBar(step, total, width int) string {
	if total <= 0 {
		return ""
	}
	filled := min(step*width/total, width)
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("█", filled), strings.Repeat("░", width-filled), step, total)
}
