package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/micubot/tgcheckin/internal/checkin"
	"github.com/micubot/tgcheckin/internal/panel"
)

const defaultMaxEvents = 200

// ButtonInfo describes one observed button, including its grid position,
// for figuring out how to configure a bot target.
type ButtonInfo struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Event is one observed interaction with the monitored bot.
type Event struct {
	Time      time.Time    `json:"time"`
	Direction string       `json:"direction"`
	MessageID int          `json:"message_id"`
	Edited    bool         `json:"edited,omitempty"`
	Service   bool         `json:"service,omitempty"`
	Text      string       `json:"text,omitempty"`
	Buttons   []ButtonInfo `json:"buttons,omitempty"`
}

// Monitor records every message exchanged with one bot so a user can
// discover its panel layout and callback tokens before configuring a
// check-in target.
type Monitor struct {
	log *slog.Logger
	tr  checkin.Transport
	bot string

	mu     sync.Mutex
	events []Event
	max    int
}

func New(tr checkin.Transport, logger *slog.Logger, bot string) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{log: logger, tr: tr, bot: bot, max: defaultMaxEvents}
}

// Run sends /start to the bot and records all traffic until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	// No predicate: the monitor wants everything, including service
	// messages and our own outgoing traffic.
	subNew, err := m.tr.SubscribeNew(ctx, m.bot, nil)
	if err != nil {
		return err
	}
	defer subNew.Cancel()
	subEdit, err := m.tr.SubscribeEdited(ctx, m.bot, nil)
	if err != nil {
		return err
	}
	defer subEdit.Cancel()

	if err := m.tr.SendText(ctx, m.bot, "/start"); err != nil {
		return err
	}
	m.log.Info("monitor_started", "bot", m.bot)

	for {
		select {
		case msg := <-subNew.C():
			m.observe(msg)
		case msg := <-subEdit.C():
			m.observe(msg)
		case <-ctx.Done():
			m.log.Info("monitor_stopped", "bot", m.bot, "events", len(m.Events()))
			return ctx.Err()
		}
	}
}

func (m *Monitor) observe(msg checkin.Message) {
	ev := Event{
		Time:      time.Now().UTC(),
		Direction: "inbound",
		MessageID: msg.ID,
		Edited:    msg.Edited,
		Service:   msg.Service,
		Text:      msg.Text,
		Buttons:   describeButtons(msg.Panel),
	}
	if msg.Outgoing {
		ev.Direction = "outbound"
	}

	m.mu.Lock()
	m.events = append(m.events, ev)
	if len(m.events) > m.max {
		m.events = m.events[len(m.events)-m.max:]
	}
	m.mu.Unlock()

	detail, _ := json.Marshal(ev.Buttons)
	m.log.Info("monitor_message",
		"bot", m.bot,
		"direction", ev.Direction,
		"message_id", ev.MessageID,
		"edited", ev.Edited,
		"service", ev.Service,
		"text", ev.Text,
		"buttons", string(detail),
	)
}

// Events returns a copy of the recorded event window, oldest first.
func (m *Monitor) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Handler serves the monitor's observations over HTTP.
func (m *Monitor) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Events())
	})

	return r
}

func describeButtons(p *panel.Panel) []ButtonInfo {
	if p == nil {
		return nil
	}
	var out []ButtonInfo
	for i, row := range p.Rows {
		for j, b := range row.Buttons {
			info := ButtonInfo{Row: i, Col: j, Text: b.Text, URL: b.URL}
			if utf8.Valid(b.Data) {
				info.Data = string(b.Data)
			}
			out = append(out, info)
		}
	}
	return out
}
