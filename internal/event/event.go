package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	CopyStarted Type = iota + 1
	CopyCompleted
	FileCopied
	DirCreated
	SymlinkCreated
	SpecialSkipped
	TargetSkipped
	TargetReplaced
	CopyFailed
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	CopyStarted:    "CopyStarted",
	CopyCompleted:  "CopyCompleted",
	FileCopied:     "FileCopied",
	DirCreated:     "DirCreated",
	SymlinkCreated: "SymlinkCreated",
	SpecialSkipped: "SpecialSkipped",
	TargetSkipped:  "TargetSkipped",
	TargetReplaced: "TargetReplaced",
	CopyFailed:     "CopyFailed",
	VerifyOK:       "VerifyOK",
	VerifyFailed:   "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Src       string // source path on its backend
	Dst       string // target path on its backend
	Size      int64  // bytes written (FileCopied)
	FastPath  bool   // content never left the backend (FileCopied)
	Error     error
}
