package monitor

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/micubot/tgcheckin/internal/checkin"
	"github.com/micubot/tgcheckin/internal/panel"
)

func TestObserveAndServeEvents(t *testing.T) {
	m := New(nil, nil, "@micu_user_bot")

	m.observe(checkin.Message{
		ID:   5,
		Text: "menu",
		Panel: &panel.Panel{Rows: []panel.Row{
			{Buttons: []panel.Button{
				{Text: "🎯 签到", Data: []byte("checkin")},
				{Text: "官网", URL: "https://example.com"},
			}},
		}},
	})
	m.observe(checkin.Message{ID: 6, Text: "/start", Outgoing: true})

	events := m.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Direction != "inbound" || events[1].Direction != "outbound" {
		t.Fatalf("directions = %s, %s", events[0].Direction, events[1].Direction)
	}
	btns := events[0].Buttons
	if len(btns) != 2 || btns[0].Data != "checkin" || btns[0].Row != 0 || btns[0].Col != 0 {
		t.Fatalf("buttons = %+v", btns)
	}
	if btns[1].URL != "https://example.com" || btns[1].Data != "" {
		t.Fatalf("url button = %+v", btns[1])
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	var got []Event
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding events: %v", err)
	}
	if len(got) != 2 || got[0].MessageID != 5 {
		t.Fatalf("served events = %+v", got)
	}

	health, err := srv.Client().Get(srv.URL + "/health")
	if err != nil || health.StatusCode != 200 {
		t.Fatalf("GET /health = (%v, %v)", health, err)
	}
	health.Body.Close()
}

func TestEventWindowBounded(t *testing.T) {
	m := New(nil, nil, "@bot")
	m.max = 3
	for i := 0; i < 10; i++ {
		m.observe(checkin.Message{ID: i})
	}
	events := m.Events()
	if len(events) != 3 {
		t.Fatalf("window = %d events, want 3", len(events))
	}
	if events[0].MessageID != 7 || events[2].MessageID != 9 {
		t.Fatalf("window should keep the newest events: %+v", events)
	}
	for _, ev := range events {
		if time.Since(ev.Time) > time.Minute {
			t.Fatalf("event time not set: %+v", ev)
		}
	}
}

func TestUndecodableCallbackDataOmitted(t *testing.T) {
	infos := describeButtons(&panel.Panel{Rows: []panel.Row{
		{Buttons: []panel.Button{{Text: "x", Data: []byte{0xff, 0xfe}}}},
	}})
	if len(infos) != 1 || infos[0].Data != "" {
		t.Fatalf("infos = %+v, want raw data omitted", infos)
	}
}
