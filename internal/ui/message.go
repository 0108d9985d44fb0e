package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/jukebox/internal/models"
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
	MsgSnapshot MsgKind = iota
	MsgProgress
	MsgReply
	MsgSendFailed
	MsgDisconnected
)

// Kind reports which message this is.
func (m Msg) Kind() MsgKind { return m.kind }

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(snap *models.Snapshot) Msg {
	return Msg{kind: MsgSnapshot, data: snap}
}

// progressMsg is the constructor for [MsgProgress]
func progressMsg(delta models.ProgressDelta) Msg {
	return Msg{kind: MsgProgress, data: delta}
}

// replyMsg is the constructor for [MsgReply]; err is the failure an error reply carried.
func replyMsg(ref string, err error) Msg {
	return Msg{
		kind: MsgReply,
		data: struct {
			ref string
			err error
		}{ref, err},
	}
}

// sendFailedMsg is the constructor for [MsgSendFailed]
func sendFailedMsg(command string, err error) Msg {
	return Msg{
		kind: MsgSendFailed,
		data: struct {
			command string
			err     error
		}{command, err},
	}
}

// disconnectedMsg is the constructor for [MsgDisconnected]
func disconnectedMsg(err error) Msg {
	return Msg{kind: MsgDisconnected, data: err}
}
