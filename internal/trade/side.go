package trade

// Side addresses one of the two parties of a trade
type Side int

const (
	First  Side = 0
	Second Side = 1

	// NoSide is returned for parties that are not part of the trade.
	// Receiving it is a programming error on the caller's side.
	NoSide Side = -999
)

var sides = [2]Side{First, Second}

// Other returns the partner's side
func (s Side) Other() Side {
	if s == Second {
		return First
	}
	return Second
}

// Valid reports whether s addresses a party
func (s Side) Valid() bool {
	return s == First || s == Second
}

func (s Side) String() string {
	switch s {
	case First:
		return "first"
	case Second:
		return "second"
	default:
		return "none"
	}
}

// PartyState holds the per-party negotiation flags
type PartyState struct {
	Ready          bool // Agrees to the current offers
	Paused         bool // A secondary view is open, closing the trade view must not cancel
	HoldingItem    bool // Has an item on the cursor
	AwaitingPickup bool // A pickup was refused and is waiting to be retried
}

// Phase is the state of the negotiation
type Phase int

const (
	Negotiating Phase = iota
	CountingDown
	Committing
	Done
	Cancelling
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Negotiating:
		return "NEGOTIATING"
	case CountingDown:
		return "COUNTDOWN"
	case Committing:
		return "COMMITTING"
	case Done:
		return "DONE"
	case Cancelling:
		return "CANCELLING"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible
func (p Phase) Terminal() bool {
	return p == Done || p == Cancelled
}
