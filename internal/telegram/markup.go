package telegram

import (
	"github.com/gotd/td/tg"

	"github.com/micubot/tgcheckin/internal/checkin"
	"github.com/micubot/tgcheckin/internal/panel"
)

// markupToPanel flattens a Telegram reply markup into the fixed button
// grid the matcher works on. Inline and reply keyboards both map to the
// same shape; anything else (hide/force-reply markers) carries no buttons.
func markupToPanel(m tg.ReplyMarkupClass) *panel.Panel {
	var rows []tg.KeyboardButtonRow
	switch mk := m.(type) {
	case *tg.ReplyInlineMarkup:
		rows = mk.Rows
	case *tg.ReplyKeyboardMarkup:
		rows = mk.Rows
	default:
		return nil
	}

	p := &panel.Panel{Rows: make([]panel.Row, 0, len(rows))}
	for _, row := range rows {
		pr := panel.Row{Buttons: make([]panel.Button, 0, len(row.Buttons))}
		for _, b := range row.Buttons {
			switch btn := b.(type) {
			case *tg.KeyboardButtonCallback:
				pr.Buttons = append(pr.Buttons, panel.Button{Text: btn.Text, Data: btn.Data})
			case *tg.KeyboardButtonURL:
				pr.Buttons = append(pr.Buttons, panel.Button{Text: btn.Text, URL: btn.URL})
			case *tg.KeyboardButton:
				pr.Buttons = append(pr.Buttons, panel.Button{Text: btn.Text})
			default:
				// Game, buy, switch-inline and similar exotic buttons are
				// still addressable by text and position.
				if withText, ok := b.(interface{ GetText() string }); ok {
					pr.Buttons = append(pr.Buttons, panel.Button{Text: withText.GetText()})
				}
			}
		}
		p.Rows = append(p.Rows, pr)
	}
	return p
}

// convertMessage maps a raw Telegram message onto the resolver's Message
// record, together with the user id of the conversation peer. ok is false
// for message types that carry nothing useful (e.g. MessageEmpty).
func convertMessage(mc tg.MessageClass) (checkin.Message, int64, bool) {
	switch m := mc.(type) {
	case *tg.Message:
		out := checkin.Message{
			ID:       m.ID,
			Text:     m.Message,
			Outgoing: m.Out,
		}
		if markup, ok := m.GetReplyMarkup(); ok {
			out.Panel = markupToPanel(markup)
		}
		userID, ok := peerUserID(m.PeerID)
		return out, userID, ok
	case *tg.MessageService:
		userID, ok := peerUserID(m.PeerID)
		return checkin.Message{ID: m.ID, Service: true, Outgoing: m.Out}, userID, ok
	default:
		return checkin.Message{}, 0, false
	}
}

func peerUserID(p tg.PeerClass) (int64, bool) {
	if u, ok := p.(*tg.PeerUser); ok {
		return u.UserID, true
	}
	return 0, false
}
