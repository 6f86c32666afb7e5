package trade

// Kind names an icon variant in patterns
type Kind string

const (
	KindTradeSlot      Kind = "trade_slot"
	KindMirrorSlot     Kind = "mirror_slot"
	KindStatus         Kind = "status"
	KindPartnerStatus  Kind = "partner_status"
	KindCancel         Kind = "cancel"
	KindEconomy        Kind = "economy"
	KindEconomyPreview Kind = "economy_preview"
	KindNote           Kind = "note"
	KindNotePreview    Kind = "note_preview"
	KindDecoration     Kind = "decoration"
)

// Icon is a unit of trade state bound to one slot
type Icon interface {
	// Key identifies the icon within a layout for counterpart lookups
	Key() string
}

// Renderer icons show something in their slot
type Renderer interface {
	Render(t *Trade, side Side) Face
}

// Clickable icons react to clicks
type Clickable interface {
	Click(t *Trade, side Side, c Click) Result
}

// Prompter icons open a secondary input view
type Prompter interface {
	Prompt(t *Trade, side Side) Prompt
}

// Inputter icons accept the value entered in their secondary view
type Inputter interface {
	Input(t *Trade, side Side, value string) Result
}

// Finisher icons take part in the two-phase commit. TryFinish must not
// have side effects; Finish runs only after every TryFinish passed.
type Finisher interface {
	TryFinish(t *Trade, side Side) FinishResult
	Finish(t *Trade, side Side)
}

// Transition icons push their state to the counterpart icon in the partner's layout
type Transition interface {
	Icon
	TargetKey() string
	TransitionState() any
}

// Receiver icons accept the state of a partner's Transition icon
type Receiver interface {
	ReceiveTransition(state any) error
}

// PendingClearer icons hold secondary view state that must be dropped on cancel
type PendingClearer interface {
	ClearPending()
}

// Result tells the trade how to react to a click or input
type Result int

const (
	Ignore Result = iota
	Update
	UpdateLater
	OpenView
	Ready
	NotReady
	Cancel
)

func (r Result) String() string {
	switch r {
	case Ignore:
		return "ignore"
	case Update:
		return "update"
	case UpdateLater:
		return "update_later"
	case OpenView:
		return "open_view"
	case Ready:
		return "ready"
	case NotReady:
		return "not_ready"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// FinishResult is the outcome of a trial finish
type FinishResult int

const (
	Pass FinishResult = iota
	ErrorEconomy
)

// ClickAction is the kind of click delivered by the UI layer
type ClickAction int

const (
	LeftClick ClickAction = iota
	RightClick
	ShiftClick
)

// Click is a click event on one slot
type Click struct {
	Action ClickAction
	Delay  int // Ticks until a deferred update re-evaluates
}
