package bot

import "time"

type State int

const (
	Unknown State = iota
	OutOfSession
	InSession
)

func (s State) String() string {
	switch s {
	case OutOfSession:
		return "OUT_OF_SESSION"
	case InSession:
		return "IN_SESSION"
	default:
		return "UNKNOWN"
	}
}

// Session is a window of UTC hours, both ends inclusive. A start after the
// end wraps past midnight.
type Session struct {
	StartHour int
	EndHour   int
}

func (s Session) Contains(t time.Time) bool {
	h := t.UTC().Hour()
	if s.StartHour <= s.EndHour {
		return h >= s.StartHour && h <= s.EndHour
	}
	return h >= s.StartHour || h <= s.EndHour
}

func (s Session) State(t time.Time) State {
	if s.Contains(t) {
		return InSession
	}
	return OutOfSession
}
