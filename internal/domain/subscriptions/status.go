package subscriptions

type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusActive     Status = "active"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
)

var transitions = map[Status][]Status{
	StatusIncomplete: {StatusActive, StatusCanceled},
	StatusActive:     {StatusPastDue, StatusCanceled},
	StatusPastDue:    {StatusActive, StatusCanceled},
}

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCanceled
}

// Expected reports whether from → to is one of the transitions the gateway
// normally drives. Unexpected transitions are still applied unless from is
// terminal; the gateway owns the lifecycle.
func Expected(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
