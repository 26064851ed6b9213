package domain

// Status is the lifecycle state of an order. Values are stored verbatim in the
// orders and order_status_history tables.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCanceled   Status = "canceled"
)

// Statuses lists every known status in lifecycle order, with the canceled
// side-branch last.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusPaid,
	StatusShipped,
	StatusDelivered,
	StatusCanceled,
}

// transitions is the fixed edge set of the order state machine:
//
//	pending ──> processing ──> paid ──> shipped ──> delivered
//	   │  │          │          ▲
//	   │  └──────────┼──────────┘
//	   └──> canceled <┘
//
// Every edge moves forward; the graph has no cycles and no self-edges.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusPaid, StatusCanceled},
	StatusProcessing: {StatusPaid, StatusCanceled},
	StatusPaid:       {StatusShipped},
	StatusShipped:    {StatusDelivered},
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid, StatusShipped, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no transition is accepted out of s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

func (s Status) String() string { return string(s) }

// CanTransition reports whether (from, to) is an edge of the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step. The result
// is a copy and may be modified by the caller.
func NextStatuses(s Status) []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// ParseStatus converts a wire value to a Status. The second result is false
// when the value is not a known status.
func ParseStatus(v string) (Status, bool) {
	s := Status(v)
	return s, s.Valid()
}
