package panel

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Button is one interactive button rendered by a bot. Data carries the
// callback token for inline buttons; reply-keyboard buttons have none and
// can only be "pressed" by sending their text back.
type Button struct {
	Text string
	Data []byte
	URL  string
}

// HasCallback reports whether the button can be activated via its callback token.
func (b Button) HasCallback() bool {
	return len(b.Data) > 0
}

type Row struct {
	Buttons []Button
}

// Panel is the button grid a bot attaches to a message.
type Panel struct {
	Rows []Row
}

// Size returns the total button count across all rows.
func (p *Panel) Size() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, r := range p.Rows {
		n += len(r.Buttons)
	}
	return n
}

// DescriptorKind selects which variant of a Descriptor is populated.
type DescriptorKind int

const (
	// KindNone means no button is expected; the start command alone suffices.
	KindNone DescriptorKind = iota
	// KindPosition addresses a button by zero-based [row, col] coordinates.
	KindPosition
	// KindText matches button display text: exact, then substring, then fuzzy.
	KindText
	// KindData matches the decoded callback token exactly.
	KindData
)

func (k DescriptorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPosition:
		return "position"
	case KindText:
		return "text"
	case KindData:
		return "data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Descriptor identifies the button to press. Exactly one variant is
// meaningful per descriptor, selected by Kind.
type Descriptor struct {
	Kind DescriptorKind
	Row  int
	Col  int
	Text string
	Data string
}

func (d Descriptor) String() string {
	switch d.Kind {
	case KindPosition:
		return fmt.Sprintf("position[%d,%d]", d.Row, d.Col)
	case KindText:
		return fmt.Sprintf("text(%q)", d.Text)
	case KindData:
		return fmt.Sprintf("data(%q)", d.Data)
	default:
		return "none"
	}
}

// Tier names the resolution tier that produced a match, for logging.
type Tier string

const (
	TierPosition  Tier = "position"
	TierExact     Tier = "exact"
	TierSubstring Tier = "substring"
	TierFuzzy     Tier = "fuzzy"
	TierToken     Tier = "token"
)

// Resolve locates the button a descriptor refers to within a panel.
// It is pure and deterministic: buttons are scanned in row-major order and
// the first match wins. The returned Tier records which matching tier
// succeeded. ok is false when nothing matches or the descriptor is KindNone.
func Resolve(d Descriptor, p *Panel) (Button, Tier, bool) {
	if p == nil {
		return Button{}, "", false
	}
	switch d.Kind {
	case KindPosition:
		if d.Row < 0 || d.Row >= len(p.Rows) {
			return Button{}, "", false
		}
		row := p.Rows[d.Row]
		if d.Col < 0 || d.Col >= len(row.Buttons) {
			return Button{}, "", false
		}
		return row.Buttons[d.Col], TierPosition, true

	case KindText:
		for _, r := range p.Rows {
			for _, b := range r.Buttons {
				if b.Text == d.Text {
					return b, TierExact, true
				}
			}
		}
		for _, r := range p.Rows {
			for _, b := range r.Buttons {
				if d.Text != "" && strings.Contains(b.Text, d.Text) {
					return b, TierSubstring, true
				}
			}
		}
		for _, r := range p.Rows {
			for _, b := range r.Buttons {
				if FuzzyEqual(d.Text, b.Text) {
					return b, TierFuzzy, true
				}
			}
		}
		return Button{}, "", false

	case KindData:
		for _, r := range p.Rows {
			for _, b := range r.Buttons {
				// Tokens that do not decode to valid text never match;
				// they are skipped rather than failing the resolution.
				if !utf8.Valid(b.Data) {
					continue
				}
				if len(b.Data) > 0 && string(b.Data) == d.Data {
					return b, TierToken, true
				}
			}
		}
		return Button{}, "", false

	default:
		return Button{}, "", false
	}
}
