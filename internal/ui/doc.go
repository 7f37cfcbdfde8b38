// Package ui implements an interactive terminal browser over the media library and the scheduled posts
// board using bubbletea's Elm architecture.
//
// Views:
//  1. [MediaView] : page through uploaded media, filter by type, load more, delete
//  2. [ConfirmView] : confirm a destructive action
//  3. [ScheduleView] : list scheduled posts and cancel them
//
// The [Model] implements the standard Init/Update/View pattern. Every backend call runs in a [tea.Cmd]
// and reports back through the [Msg] union, so the library and board state are only read on the update loop.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help from charmbracelet/bubbles/help.
package ui
