package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stocksync/internal/models"
	"github.com/desertthunder/stocksync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPreviewReady MsgKind = iota
	MsgProgressUpdate
	MsgRunComplete
)

type previewReady struct {
	plan *tasks.Plan
	err  error
}

type runComplete struct {
	result *models.SyncResult
	err    error
}

// previewReadyMsg is the constructor for [MsgPreviewReady]
func previewReadyMsg(plan *tasks.Plan, err error) Msg {
	return Msg{kind: MsgPreviewReady, data: previewReady{plan, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(result *models.SyncResult, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runComplete{result, err}}
}
