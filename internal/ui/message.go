package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/postsiva/internal/media"
	"github.com/desertthunder/postsiva/internal/schedule"
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
	MsgMediaLoaded MsgKind = iota
	MsgMediaDeleted
	MsgScheduleLoaded
	MsgScheduleCancelled
)

type mediaResult struct {
	state media.State
	err   error
}

type scheduleResult struct {
	state schedule.State
	err   error
}

// mediaLoadedMsg is the constructor for [MsgMediaLoaded]
func mediaLoadedMsg(state media.State, err error) Msg {
	return Msg{kind: MsgMediaLoaded, data: mediaResult{state, err}}
}

// mediaDeletedMsg is the constructor for [MsgMediaDeleted]
func mediaDeletedMsg(state media.State, err error) Msg {
	return Msg{kind: MsgMediaDeleted, data: mediaResult{state, err}}
}

// scheduleLoadedMsg is the constructor for [MsgScheduleLoaded]
func scheduleLoadedMsg(state schedule.State, err error) Msg {
	return Msg{kind: MsgScheduleLoaded, data: scheduleResult{state, err}}
}

// scheduleCancelledMsg is the constructor for [MsgScheduleCancelled]
func scheduleCancelledMsg(state schedule.State, err error) Msg {
	return Msg{kind: MsgScheduleCancelled, data: scheduleResult{state, err}}
}
