package trainer

import "strings"

// Command is a recognised non-move answer at a prompt.
type Command int

const (
	CmdNone Command = iota
	CmdHint
	CmdUndo
	CmdReset
	CmdQuit
	CmdYes
	CmdNo
)

var commandNames = map[Command]string{
	CmdNone:  "none",
	CmdHint:  "hint",
	CmdUndo:  "undo",
	CmdReset: "reset",
	CmdQuit:  "quit",
	CmdYes:   "yes",
	CmdNo:    "no",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return "unknown"
}

var commandAliases = map[string]Command{
	"h":     CmdHint,
	"hint":  CmdHint,
	"u":     CmdUndo,
	"undo":  CmdUndo,
	"back":  CmdUndo,
	"r":     CmdReset,
	"reset": CmdReset,
	"q":     CmdQuit,
	"quit":  CmdQuit,
	"exit":  CmdQuit,
	"y":     CmdYes,
	"yes":   CmdYes,
	"n":     CmdNo,
	"no":    CmdNo,
}

// ParseCommand maps a prompt answer to a command; CmdNone means the text
// should be read as a move.
func ParseCommand(token string) Command {
	if c, ok := commandAliases[strings.ToLower(strings.TrimSpace(token))]; ok {
		return c
	}
	return CmdNone
}

// State is the position of the session in its turn cycle.
type State int

const (
	StateAwaitingPlayerMove State = iota
	StateAwaitingOpponentMove
	StateSessionEnded
)

func (s State) String() string {
	switch s {
	case StateAwaitingPlayerMove:
		return "awaiting_player_move"
	case StateAwaitingOpponentMove:
		return "awaiting_opponent_move"
	case StateSessionEnded:
		return "session_ended"
	default:
		return "unknown"
	}
}

// EndReason records why the turn cycle stopped.
type EndReason string

const (
	EndPlayerBook   EndReason = "player_book_exhausted"
	EndOpponentBook EndReason = "opponent_book_exhausted"
	EndQuit         EndReason = "quit"
	EndInputClosed  EndReason = "input_closed"
	EndCancelled    EndReason = "cancelled"
)

// Analysed reports whether the reason leads to post-session analysis.
func (r EndReason) Analysed() bool {
	return r == EndPlayerBook || r == EndOpponentBook
}
