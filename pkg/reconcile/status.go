// Package reconcile implements the client-side message timeline: optimistic
// local appends, correlation of server echoes by temp id, and monotone
// per-message status transitions.
package reconcile

// Status is the delivery state of one message as the client sees it.
type Status int

const (
	StatusFailed Status = iota
	StatusSending
	StatusSent
	StatusDelivered
	StatusRead
)

var statusNames = map[Status]string{
	StatusFailed:    "failed",
	StatusSending:   "sending",
	StatusSent:      "sent",
	StatusDelivered: "delivered",
	StatusRead:      "read",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Rank orders statuses so that a transition is accepted only when it moves
// forward. Failed ranks lowest: any server signal outranks a local failure.
func (s Status) Rank() int { return int(s) }

// Advance returns the status that wins between the current and proposed
// state. Status never regresses.
func (s Status) Advance(to Status) Status {
	if to.Rank() > s.Rank() {
		return to
	}
	return s
}
