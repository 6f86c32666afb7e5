// Package report turns the outcome of a completed trade into summary lines.
package report

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"barter/internal/item"

	"github.com/dustin/go-humanize"
)

// Direction of an exchanged stack from the reader's point of view
type Direction int

const (
	Received Direction = iota
	Sent
)

func (d Direction) String() string {
	if d == Received {
		return "received"
	}
	return "sent"
}

// Exchange is one stack that changed hands
type Exchange struct {
	Stack     item.Stack
	Direction Direction
}

// Currency is the net change of one currency for the reader
type Currency struct {
	Name    string // Singular display name, e.g. "coin"
	Plural  string // Empty = Name + "s"
	Decimal bool   // Diff is in hundredths
	Diff    int64
}

// Result is everything a party exchanged in one trade
type Result struct {
	Items      []Exchange
	Currencies []Currency
}

// Report is the formatted summary for one party
type Report struct {
	Items      []string
	Currencies []string
}

// Lines returns the item lines followed by the currency lines
func (r Report) Lines() []string {
	out := make([]string, 0, len(r.Items)+len(r.Currencies))
	out = append(out, r.Items...)
	return append(out, r.Currencies...)
}

// Empty reports whether nothing changed hands
func (r Report) Empty() bool {
	return len(r.Items) == 0 && len(r.Currencies) == 0
}

// Templates holds the user-facing line formats
type Templates struct {
	Receive string // %s = object
	Give    string // %s = object
	Item    string // %s = amount, %s = item name
}

// DefaultTemplates returns the English line formats
func DefaultTemplates() Templates {
	return Templates{
		Receive: "Received %s",
		Give:    "Sent %s",
		Item:    "%sx %s",
	}
}

// Builder formats reports
type Builder struct {
	Templates Templates
	Namer     func(item.Stack) string // nil = DisplayName
}

// NewBuilder creates a builder with the default templates
func NewBuilder() Builder {
	return Builder{Templates: DefaultTemplates()}
}

// Build formats both line collections of a result
func (b Builder) Build(r Result) Report {
	return Report{
		Items:      b.Items(r.Items),
		Currencies: b.Currencies(r.Currencies),
	}
}

type merged struct {
	stack  item.Stack
	amount int
}

// Items merges similar stacks per direction and returns sorted lines
func (b Builder) Items(exchanges []Exchange) []string {
	receiving := make(map[string]*merged)
	sending := make(map[string]*merged)

	for _, e := range exchanges {
		if e.Stack.IsEmpty() {
			continue
		}
		target := sending
		if e.Direction == Received {
			target = receiving
		}
		key := e.Stack.Key()
		if m, ok := target[key]; ok {
			m.amount += e.Stack.Amount
			continue
		}
		target[key] = &merged{stack: e.Stack, amount: e.Stack.Amount}
	}

	namer := b.Namer
	if namer == nil {
		namer = DisplayName
	}

	lines := make([]string, 0, len(receiving)+len(sending))
	for _, m := range receiving {
		object := fmt.Sprintf(b.Templates.Item, humanize.Comma(int64(m.amount)), namer(m.stack))
		lines = append(lines, normalize(fmt.Sprintf(b.Templates.Receive, object)))
	}
	for _, m := range sending {
		object := fmt.Sprintf(b.Templates.Item, humanize.Comma(int64(m.amount)), namer(m.stack))
		lines = append(lines, normalize(fmt.Sprintf(b.Templates.Give, object)))
	}

	sort.Strings(lines)
	return lines
}

// Currencies returns one sorted line per currency with a nonzero change
func (b Builder) Currencies(currencies []Currency) []string {
	lines := make([]string, 0, len(currencies))

	for _, c := range currencies {
		if c.Diff == 0 {
			continue
		}
		magnitude := c.Diff
		if magnitude < 0 {
			magnitude = -magnitude
		}

		object := FormatAmount(magnitude, c.Decimal) + " " + c.name(isOneUnit(magnitude, c.Decimal))
		if c.Diff > 0 {
			lines = append(lines, normalize(fmt.Sprintf(b.Templates.Receive, object)))
		} else {
			lines = append(lines, normalize(fmt.Sprintf(b.Templates.Give, object)))
		}
	}

	sort.Strings(lines)
	return lines
}

func (c Currency) name(singular bool) string {
	if singular {
		return c.Name
	}
	if c.Plural != "" {
		return c.Plural
	}
	return c.Name + "s"
}

func isOneUnit(magnitude int64, decimal bool) bool {
	if decimal {
		return magnitude == 100
	}
	return magnitude == 1
}

// FormatAmount renders an amount with thousand separators. Decimal amounts
// are stored in hundredths and keep two fraction digits unless whole.
func FormatAmount(amount int64, decimal bool) string {
	if !decimal {
		return humanize.Comma(amount)
	}
	if amount%100 == 0 {
		return humanize.Comma(amount / 100)
	}
	return humanize.FormatFloat("#,###.##", float64(amount)/100)
}

// DisplayName returns the custom name without colour codes, or a readable
// material name like "Diamond Sword" for DIAMOND_SWORD
func DisplayName(s item.Stack) string {
	if name := normalize(StripColor(s.Name)); name != "" {
		return name
	}
	return ProperName(s.Material)
}

// ProperName replaces underscores with spaces and capitalises each word
func ProperName(material string) string {
	words := strings.Fields(strings.ReplaceAll(material, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// StripColor removes section-sign colour codes such as "§6"
func StripColor(s string) string {
	if !strings.ContainsRune(s, '§') {
		return s
	}
	var b strings.Builder
	skip := false
	for _, r := range s {
		if skip {
			skip = false
			continue
		}
		if r == '§' {
			skip = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
