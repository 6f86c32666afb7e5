package trade

import (
	"fmt"
	"strings"
)

// MaxNoteLength limits the note in runes
const MaxNoteLength = 64

// NoteIcon lets a party attach a short note to their offer. The text is
// mirrored into the partner's NotePreviewIcon.
type NoteIcon struct {
	text    string
	editing bool
}

func (n *NoteIcon) Key() string { return string(KindNote) }

func (n *NoteIcon) TargetKey() string { return string(KindNotePreview) }

func (n *NoteIcon) TransitionState() any { return n.text }

// Text returns the current note
func (n *NoteIcon) Text() string { return n.text }

func (n *NoteIcon) Click(t *Trade, side Side, c Click) Result {
	if c.Action == RightClick {
		if n.text == "" {
			return Ignore
		}
		n.text = ""
		return Update
	}
	n.editing = true
	return OpenView
}

func (n *NoteIcon) Prompt(t *Trade, side Side) Prompt {
	return Prompt{Title: "Note for your partner", Value: n.text}
}

func (n *NoteIcon) Input(t *Trade, side Side, value string) Result {
	n.editing = false
	text := strings.Join(strings.Fields(value), " ")
	if r := []rune(text); len(r) > MaxNoteLength {
		text = string(r[:MaxNoteLength])
	}
	if text == n.text {
		return Ignore
	}
	n.text = text
	return Update
}

// Editing reports whether the note editor is open
func (n *NoteIcon) Editing() bool { return n.editing }

func (n *NoteIcon) ClearPending() {
	n.editing = false
}

func (n *NoteIcon) Render(t *Trade, side Side) Face {
	label := "Add a note"
	if n.text != "" {
		label = "Your note: " + n.text
	}
	return Face{Kind: KindNote, Label: label, Lit: n.text != ""}
}

// NotePreviewIcon shows the partner's note
type NotePreviewIcon struct {
	text string
}

func (n *NotePreviewIcon) Key() string { return string(KindNotePreview) }

func (n *NotePreviewIcon) ReceiveTransition(state any) error {
	text, ok := state.(string)
	if !ok {
		return fmt.Errorf("note preview cannot take %T", state)
	}
	n.text = text
	return nil
}

// Text returns the partner's note
func (n *NotePreviewIcon) Text() string { return n.text }

func (n *NotePreviewIcon) Render(t *Trade, side Side) Face {
	label := "No note from partner"
	if n.text != "" {
		label = "Partner note: " + n.text
	}
	return Face{Kind: KindNotePreview, Label: label, Lit: n.text != ""}
}
