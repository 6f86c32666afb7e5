package trade

import (
	"barter/internal/report"
)

// Config tunes the negotiation
type Config struct {
	CountdownSteps   int  // Countdown length in steps
	TicksPerStep     int  // Ticks between countdown steps
	UpdateLaterTicks int  // Minimum delay of a deferred update
	InviteTicks      int  // Ticks until an unanswered invitation expires
	Remote           bool // Another process logs and settles the trade
	Messages         Messages
	Templates        report.Templates
}

// Messages are the user-facing texts
type Messages struct {
	Title          string // %s = partner
	CountdownTitle string // %d = remaining steps
	Cancelled      string
	ItemsDropped   string
	EconomyError   string
	ProtocolError  string
	OpenViewError  string
	PartnerLeft    string
	Completed      string // %s = partner
	NothingTraded  string
	InvalidAmount  string // %s = input
	Invited        string // %s = inviter
	InviteSent     string // %s = invitee
	InviteExpired  string // %s = invitee
	InviteDenied   string // %s = invitee
}

// DefaultConfig returns sensible defaults for a 20 ticks per second server
func DefaultConfig() Config {
	return Config{
		CountdownSteps:   3,
		TicksPerStep:     20,
		UpdateLaterTicks: 1,
		InviteTicks:      60 * 20,
		Messages:         DefaultMessages(),
		Templates:        report.DefaultTemplates(),
	}
}

// DefaultMessages returns the English texts
func DefaultMessages() Messages {
	return Messages{
		Title:          "Trade with %s",
		CountdownTitle: "Trading in %d...",
		Cancelled:      "The trade was cancelled.",
		ItemsDropped:   "Some items did not fit into your inventory and were dropped.",
		EconomyError:   "The trade was cancelled: a payment could not be made.",
		ProtocolError:  "The trade was cancelled because of an internal error.",
		OpenViewError:  "The trade was cancelled: the trade view could not be opened.",
		PartnerLeft:    "The trade was cancelled: your partner left.",
		Completed:      "Trade with %s complete.",
		NothingTraded:  "Nothing was exchanged.",
		InvalidAmount:  "%q is not a valid amount.",
		Invited:        "%s wants to trade with you.",
		InviteSent:     "Trade request sent to %s.",
		InviteExpired:  "Your trade request to %s expired.",
		InviteDenied:   "%s declined your trade request.",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CountdownSteps <= 0 {
		c.CountdownSteps = d.CountdownSteps
	}
	if c.TicksPerStep <= 0 {
		c.TicksPerStep = d.TicksPerStep
	}
	if c.UpdateLaterTicks <= 0 {
		c.UpdateLaterTicks = d.UpdateLaterTicks
	}
	if c.InviteTicks <= 0 {
		c.InviteTicks = d.InviteTicks
	}
	if c.Messages == (Messages{}) {
		c.Messages = d.Messages
	}
	if c.Templates == (report.Templates{}) {
		c.Templates = d.Templates
	}
	return c
}
