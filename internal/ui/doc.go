// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks one sync run through its stages:
//  1. [LoadingView] : Read rows and load the catalog while a spinner runs
//  2. [PreviewView] : Review planned operations (tab switches to unmatched rows)
//  3. [ConfirmView] : Confirm applying the plan to the shop
//  4. [ApplyView] : Monitor per-operation progress; c or esc cancels after the current operation
//  5. [ResultView] : Display counters and failed operations
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sync [Syncer], providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
