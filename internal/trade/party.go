package trade

import (
	"errors"
	"time"

	"barter/internal/item"
)

// PartyID is the stable identifier of a participant
type PartyID string

// Party is one participant as the trade sees it. A party on another
// server implements the same interface by passing messages.
type Party interface {
	ID() PartyID
	Storage() item.Storage
	View() View
	Send(text string)
	Cue(c Cue)
	// Drop puts a stack into the world at the party's location
	Drop(s item.Stack)
}

// ErrAlreadyOpen is returned by views that are open already. Trades treat it as success.
var ErrAlreadyOpen = errors.New("view already open")

// View is the party's visual trade panel
type View interface {
	Open() error
	Close()
	Render(s Snapshot)
	OpenPrompt(p Prompt) error
	ClosePrompt()
}

// Snapshot is the full content of one party's panel
type Snapshot struct {
	TradeID string       `json:"trade_id"`
	Title   string       `json:"title"`
	Rows    int          `json:"rows"`
	Faces   map[int]Face `json:"faces"`
}

// Face is what a single slot shows
type Face struct {
	Kind  Kind        `json:"kind"`
	Stack *item.Stack `json:"stack,omitempty"`
	Label string      `json:"label,omitempty"`
	Lit   bool        `json:"lit,omitempty"`
}

// Prompt describes a secondary input view opened for an icon
type Prompt struct {
	Slot  int    `json:"slot"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// Cue is a sound or visual feedback signal
type Cue int

const (
	CueStart Cue = iota
	CueCountdown
	CueCountdownStop
	CueCancel
	CueFinish
)

func (c Cue) String() string {
	switch c {
	case CueStart:
		return "start"
	case CueCountdown:
		return "countdown"
	case CueCountdownStop:
		return "countdown_stop"
	case CueCancel:
		return "cancel"
	case CueFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// Wallet is the economy backend for one currency
type Wallet interface {
	Balance(id PartyID) (int64, error)
	Deposit(id PartyID, amount int64) error
	Withdraw(id PartyID, amount int64) error
}

// PickupFunc decides whether a party may pick up a stack from the world
type PickupFunc func(id PartyID, s item.Stack) bool

// World delivers pickup events while a trade is running
type World interface {
	ListenPickup(fn PickupFunc) (unregister func())
}

// Outcome of a finished trade
type Outcome int

const (
	Completed Outcome = iota
	Aborted
)

func (o Outcome) String() string {
	if o == Completed {
		return "completed"
	}
	return "cancelled"
}

// Transfer is a stack moved from one side to the other
type Transfer struct {
	From  Side       `json:"from"`
	Stack item.Stack `json:"stack"`
}

// CurrencyTransfer is the net currency change of one side
type CurrencyTransfer struct {
	Side     Side   `json:"side"`
	Currency string `json:"currency"`
	Diff     int64  `json:"diff"`
}

// Event is emitted once per trade when it reaches a terminal phase
type Event struct {
	TradeID    string
	Parties    [2]PartyID
	Outcome    Outcome
	Reason     string
	Items      []Transfer
	Currencies []CurrencyTransfer
	At         time.Time
}

// Recorder persists trade events
type Recorder interface {
	Record(ev Event)
}
