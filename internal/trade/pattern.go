package trade

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// RowWidth is the number of slots per row
const RowWidth = 9

// MaxRows is the tallest supported panel
const MaxRows = 6

var ErrInvalidPattern = errors.New("invalid pattern")

// SlotSpec describes the icon placed into one slot
type SlotSpec struct {
	Kind     Kind
	Currency string // Only for economy kinds
}

// Pattern is the immutable blueprint every trade layout is built from
type Pattern struct {
	Name  string
	Rows  int
	Slots map[int]SlotSpec
}

// DefaultPattern is a six-row panel: own offer on the left, the partner's
// mirrored offer on the right and controls along the bottom row. With a
// currency key the bottom row also carries the economy icons.
func DefaultPattern(currency string) *Pattern {
	p := &Pattern{Name: "default", Rows: MaxRows, Slots: make(map[int]SlotSpec)}

	for row := 0; row < 5; row++ {
		for col := 0; col < RowWidth; col++ {
			slot := row*RowWidth + col
			switch {
			case col < 4:
				p.Slots[slot] = SlotSpec{Kind: KindTradeSlot}
			case col == 4:
				p.Slots[slot] = SlotSpec{Kind: KindDecoration}
			default:
				p.Slots[slot] = SlotSpec{Kind: KindMirrorSlot}
			}
		}
	}

	bottom := 5 * RowWidth
	p.Slots[bottom+0] = SlotSpec{Kind: KindStatus}
	p.Slots[bottom+1] = SlotSpec{Kind: KindCancel}
	p.Slots[bottom+3] = SlotSpec{Kind: KindNote}
	p.Slots[bottom+4] = SlotSpec{Kind: KindDecoration}
	p.Slots[bottom+5] = SlotSpec{Kind: KindNotePreview}
	p.Slots[bottom+8] = SlotSpec{Kind: KindPartnerStatus}

	if currency != "" {
		p.Slots[bottom+2] = SlotSpec{Kind: KindEconomy, Currency: currency}
		p.Slots[bottom+6] = SlotSpec{Kind: KindEconomyPreview, Currency: currency}
	} else {
		p.Slots[bottom+2] = SlotSpec{Kind: KindDecoration}
		p.Slots[bottom+6] = SlotSpec{Kind: KindDecoration}
	}
	p.Slots[bottom+7] = SlotSpec{Kind: KindDecoration}

	return p
}

type patternFile struct {
	Name  string `toml:"name"`
	Rows  int    `toml:"rows"`
	Slots []struct {
		Kind     string `toml:"kind"`
		Currency string `toml:"currency"`
		At       []int  `toml:"at"`
	} `toml:"slot"`
}

// LoadPattern reads a pattern from a TOML file
func LoadPattern(path string) (*Pattern, error) {
	var f patternFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("read pattern %s: %w", path, err)
	}
	return f.pattern()
}

// ParsePattern reads a pattern from TOML text
func ParsePattern(text string) (*Pattern, error) {
	var f patternFile
	if _, err := toml.Decode(text, &f); err != nil {
		return nil, fmt.Errorf("parse pattern: %w", err)
	}
	return f.pattern()
}

func (f patternFile) pattern() (*Pattern, error) {
	p := &Pattern{Name: f.Name, Rows: f.Rows, Slots: make(map[int]SlotSpec)}
	for _, s := range f.Slots {
		for _, at := range s.At {
			if _, dup := p.Slots[at]; dup {
				return nil, fmt.Errorf("%w: slot %d assigned twice", ErrInvalidPattern, at)
			}
			p.Slots[at] = SlotSpec{Kind: Kind(s.Kind), Currency: s.Currency}
		}
	}
	return p, nil
}

// SlotsOf returns the slots hosting a kind in ascending order
func (p *Pattern) SlotsOf(kind Kind) []int {
	var out []int
	for slot, spec := range p.Slots {
		if spec.Kind == kind {
			out = append(out, slot)
		}
	}
	sort.Ints(out)
	return out
}

// Validate checks that both layouts built from the pattern can talk to each
// other: every transition icon has its counterpart and every currency a wallet.
func (p *Pattern) Validate(currencies Currencies) error {
	if p.Rows < 1 || p.Rows > MaxRows {
		return fmt.Errorf("%w: %d rows", ErrInvalidPattern, p.Rows)
	}

	size := p.Rows * RowWidth
	economies := make(map[string]bool)
	previews := make(map[string]bool)
	counts := make(map[Kind]int)

	for slot, spec := range p.Slots {
		if slot < 0 || slot >= size {
			return fmt.Errorf("%w: slot %d outside %d rows", ErrInvalidPattern, slot, p.Rows)
		}
		switch spec.Kind {
		case KindTradeSlot, KindMirrorSlot, KindStatus, KindPartnerStatus,
			KindCancel, KindNote, KindNotePreview, KindDecoration:
		case KindEconomy, KindEconomyPreview:
			c, ok := currencies[spec.Currency]
			if !ok || c.Wallet == nil {
				return fmt.Errorf("%w: slot %d uses unknown currency %q", ErrInvalidPattern, slot, spec.Currency)
			}
			if spec.Kind == KindEconomy {
				if economies[spec.Currency] {
					return fmt.Errorf("%w: currency %q offered twice", ErrInvalidPattern, spec.Currency)
				}
				economies[spec.Currency] = true
			} else {
				previews[spec.Currency] = true
			}
		default:
			return fmt.Errorf("%w: slot %d has unknown kind %q", ErrInvalidPattern, slot, spec.Kind)
		}
		counts[spec.Kind]++
	}

	if counts[KindTradeSlot] == 0 {
		return fmt.Errorf("%w: no trade slots", ErrInvalidPattern)
	}
	if counts[KindTradeSlot] != counts[KindMirrorSlot] {
		return fmt.Errorf("%w: %d trade slots but %d mirror slots", ErrInvalidPattern,
			counts[KindTradeSlot], counts[KindMirrorSlot])
	}
	if counts[KindStatus] != 1 {
		return fmt.Errorf("%w: need exactly one status icon, got %d", ErrInvalidPattern, counts[KindStatus])
	}
	for _, k := range []Kind{KindNote, KindNotePreview, KindCancel, KindPartnerStatus} {
		if counts[k] > 1 {
			return fmt.Errorf("%w: %s used %d times", ErrInvalidPattern, k, counts[k])
		}
	}
	if counts[KindNote] != counts[KindNotePreview] {
		return fmt.Errorf("%w: note needs a note preview", ErrInvalidPattern)
	}
	for c := range economies {
		if !previews[c] {
			return fmt.Errorf("%w: currency %q has no preview", ErrInvalidPattern, c)
		}
	}
	for c := range previews {
		if !economies[c] {
			return fmt.Errorf("%w: currency %q preview without offer", ErrInvalidPattern, c)
		}
	}

	return nil
}

// Build creates a fresh layout. Layouts are never shared between trades or parties.
func (p *Pattern) Build(currencies Currencies) (*Layout, error) {
	if err := p.Validate(currencies); err != nil {
		return nil, err
	}

	l := &Layout{
		rows:  p.Rows,
		icons: make(map[int]Icon, len(p.Slots)),
		byKey: make(map[string]Icon),
	}

	for slot, spec := range p.Slots {
		var icon Icon
		switch spec.Kind {
		case KindTradeSlot:
			icon = &TradeSlot{slot: slot}
		case KindMirrorSlot:
			icon = &MirrorSlot{slot: slot}
		case KindStatus:
			icon = &StatusIcon{}
		case KindPartnerStatus:
			icon = &PartnerStatusIcon{}
		case KindCancel:
			icon = &CancelIcon{}
		case KindEconomy:
			icon = &EconomyIcon{key: spec.Currency, currency: currencies[spec.Currency]}
		case KindEconomyPreview:
			icon = &EconomyPreviewIcon{key: spec.Currency, currency: currencies[spec.Currency]}
		case KindNote:
			icon = &NoteIcon{}
		case KindNotePreview:
			icon = &NotePreviewIcon{}
		case KindDecoration:
			icon = &DecorationIcon{slot: slot}
		}
		l.icons[slot] = icon
		l.slots = append(l.slots, slot)
	}
	sort.Ints(l.slots)

	for _, slot := range l.slots {
		icon := l.icons[slot]
		if _, taken := l.byKey[icon.Key()]; !taken {
			l.byKey[icon.Key()] = icon
		}
	}

	return l, nil
}

// Layout is one party's mutable set of icons
type Layout struct {
	rows  int
	icons map[int]Icon
	slots []int
	byKey map[string]Icon
}

// Rows returns the panel height
func (l *Layout) Rows() int { return l.rows }

// Icon returns the icon in a slot or nil
func (l *Layout) Icon(slot int) Icon { return l.icons[slot] }

// Find returns the first icon with the key in slot order, or nil
func (l *Layout) Find(key string) Icon { return l.byKey[key] }

// Slots returns the occupied slots in ascending order
func (l *Layout) Slots() []int { return l.slots }
