package present

type EventKind int

const (
	EventCloseRequested EventKind = iota
	EventResized
	EventMinimized
	EventRestored
)

var eventKindNames = map[EventKind]string{
	EventCloseRequested: "CloseRequested",
	EventResized:        "Resized",
	EventMinimized:      "Minimized",
	EventRestored:       "Restored",
}

func (k EventKind) String() string {
	name, ok := eventKindNames[k]
	if !ok {
		return "Unknown"
	}
	return name
}

// Event is a window notification relevant to presentation. Width and Height are
// only set for EventResized.
type Event struct {
	Kind     EventKind
	WindowID uint32
	Width    int
	Height   int
}

// EventSource is the windowing collaborator. PollEvent never blocks; it returns
// false once no events are pending.
type EventSource interface {
	PollEvent() (Event, bool)
}
