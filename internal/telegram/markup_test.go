package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestMarkupToPanelInline(t *testing.T) {
	markup := &tg.ReplyInlineMarkup{Rows: []tg.KeyboardButtonRow{
		{Buttons: []tg.KeyboardButtonClass{
			&tg.KeyboardButtonCallback{Text: "🎯 签到", Data: []byte("checkin")},
			&tg.KeyboardButtonURL{Text: "官网", URL: "https://example.com"},
		}},
		{Buttons: []tg.KeyboardButtonClass{
			&tg.KeyboardButton{Text: "帮助"},
		}},
	}}

	p := markupToPanel(markup)
	if p == nil || len(p.Rows) != 2 {
		t.Fatalf("panel = %+v, want 2 rows", p)
	}
	b := p.Rows[0].Buttons[0]
	if b.Text != "🎯 签到" || string(b.Data) != "checkin" {
		t.Fatalf("callback button = %+v", b)
	}
	if !b.HasCallback() {
		t.Fatal("callback button should be token-activatable")
	}
	u := p.Rows[0].Buttons[1]
	if u.URL != "https://example.com" || u.HasCallback() {
		t.Fatalf("url button = %+v", u)
	}
	plain := p.Rows[1].Buttons[0]
	if plain.Text != "帮助" || plain.HasCallback() {
		t.Fatalf("plain button = %+v", plain)
	}
}

func TestMarkupToPanelReplyKeyboard(t *testing.T) {
	markup := &tg.ReplyKeyboardMarkup{Rows: []tg.KeyboardButtonRow{
		{Buttons: []tg.KeyboardButtonClass{&tg.KeyboardButton{Text: "每日签到"}}},
	}}
	p := markupToPanel(markup)
	if p == nil || p.Size() != 1 || p.Rows[0].Buttons[0].Text != "每日签到" {
		t.Fatalf("panel = %+v", p)
	}
}

func TestMarkupToPanelNonKeyboard(t *testing.T) {
	if p := markupToPanel(&tg.ReplyKeyboardHide{}); p != nil {
		t.Fatalf("hide markup should produce no panel, got %+v", p)
	}
}

func TestConvertMessage(t *testing.T) {
	msg := &tg.Message{
		ID:      42,
		Message: "pick one",
		PeerID:  &tg.PeerUser{UserID: 1001},
	}
	msg.SetReplyMarkup(&tg.ReplyInlineMarkup{Rows: []tg.KeyboardButtonRow{
		{Buttons: []tg.KeyboardButtonClass{&tg.KeyboardButtonCallback{Text: "签到", Data: []byte("d")}}},
	}})

	m, userID, ok := convertMessage(msg)
	if !ok || userID != 1001 {
		t.Fatalf("convertMessage = (%+v, %d, %v)", m, userID, ok)
	}
	if m.ID != 42 || m.Text != "pick one" || m.Service || m.Panel.Size() != 1 {
		t.Fatalf("converted = %+v", m)
	}

	svc, userID, ok := convertMessage(&tg.MessageService{ID: 7, PeerID: &tg.PeerUser{UserID: 1001}})
	if !ok || userID != 1001 || !svc.Service {
		t.Fatalf("service message = (%+v, %d, %v)", svc, userID, ok)
	}

	if _, _, ok := convertMessage(&tg.MessageEmpty{ID: 9}); ok {
		t.Fatal("empty message should not convert")
	}
}
