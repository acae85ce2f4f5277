package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/micubot/tgcheckin/internal/panel"
)

// Target is one configured check-in unit, immutable for the life of a run.
type Target struct {
	Username     string
	StartCommand string
	Button       panel.Descriptor
}

// OutcomeKind classifies the result of one bot interaction.
type OutcomeKind int

const (
	OutcomeTimeout OutcomeKind = iota
	OutcomeNotFound
	OutcomePopup
	OutcomeFollowup
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePopup:
		return "popup"
	case OutcomeFollowup:
		return "followup"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "timeout"
	}
}

// Outcome is the classified result of one interaction. Never persisted.
type Outcome struct {
	Kind OutcomeKind
	Text string
}

// Options bound every wait in the resolver. Zero values fall back to the
// defaults below.
type Options struct {
	PanelTimeout    time.Duration // wait for the button panel after the start command
	ReplyTimeout    time.Duration // wait after pressing a reply-keyboard button
	EscalateTimeout time.Duration // wait per fallback command
	SettleDelay     time.Duration // pause before fetching the latest message post-click
	InterBotDelay   time.Duration // pause between sequential bots

	// FallbackCommands is the escalation ladder, tried in order when
	// resolution or activation fails.
	FallbackCommands []string
}

var defaultFallbackCommands = []string{"/sign", "/checkin", "签到", "打卡", "check in"}

func (o Options) withDefaults() Options {
	if o.PanelTimeout <= 0 {
		o.PanelTimeout = 15 * time.Second
	}
	if o.ReplyTimeout <= 0 {
		o.ReplyTimeout = 20 * time.Second
	}
	if o.EscalateTimeout <= 0 {
		o.EscalateTimeout = 8 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 3 * time.Second
	}
	if o.InterBotDelay <= 0 {
		o.InterBotDelay = 5 * time.Second
	}
	if len(o.FallbackCommands) == 0 {
		o.FallbackCommands = defaultFallbackCommands
	}
	return o
}

// Runner drives the per-bot interaction state machine and the sequential
// session over all configured targets.
type Runner struct {
	tr   Transport
	log  *slog.Logger
	opts Options
}

func NewRunner(tr Transport, logger *slog.Logger, opts Options) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{tr: tr, log: logger, opts: opts.withDefaults()}
}

// RunAll processes targets strictly one at a time, in order, separated by
// the inter-bot delay. Targets missing required fields are skipped with a
// warning. Per-bot failures are logged and never abort the run.
func (r *Runner) RunAll(ctx context.Context, targets []Target) {
	for _, t := range targets {
		if t.Username == "" || t.StartCommand == "" {
			r.log.Warn("checkin_target_skipped", "bot", t.Username, "reason", "missing username or start command")
			continue
		}

		out, err := r.RunOne(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Warn("checkin_run_cancelled", "bot", t.Username)
				return
			}
			r.log.Error("checkin_bot_error", "bot", t.Username, "error", err.Error())
		} else {
			r.log.Info("checkin_outcome", "bot", t.Username, "outcome", out.Kind.String(), "text", out.Text)
		}

		if err := sleepCtx(ctx, r.opts.InterBotDelay); err != nil {
			return
		}
	}
	r.log.Info("checkin_run_done", "targets", len(targets))
}

// RunOne performs a single bot interaction. All errors, including panics
// from unexpected transport behavior, are contained here so that RunAll
// can carry on with the next bot.
func (r *Runner) RunOne(ctx context.Context, t Target) (out Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("interaction panicked: %v", p)
		}
	}()

	log := r.log.With("bot", t.Username, "interaction_id", uuid.NewString())

	sub, err := r.tr.SubscribeNew(ctx, t.Username, inbound)
	if err != nil {
		return Outcome{}, fmt.Errorf("subscribe to %s: %w", t.Username, err)
	}
	defer sub.Cancel()

	log.Info("checkin_send_command", "command", t.StartCommand)
	if err := r.tr.SendText(ctx, t.Username, t.StartCommand); err != nil {
		return Outcome{}, fmt.Errorf("send %q to %s: %w", t.StartCommand, t.Username, err)
	}

	// Command-only configuration: no button expected, any reply settles it.
	if t.Button.Kind == panel.KindNone {
		msg, ok := waitMessage(ctx, sub, r.opts.PanelTimeout)
		if !ok {
			log.Warn("checkin_command_no_reply", "timeout", r.opts.PanelTimeout.String())
			return Outcome{Kind: OutcomeTimeout}, ctx.Err()
		}
		log.Info("checkin_command_reply", "text", strings.TrimSpace(msg.Text))
		return Outcome{Kind: OutcomeFollowup, Text: strings.TrimSpace(msg.Text)}, nil
	}

	msg, ok := waitMessage(ctx, sub, r.opts.PanelTimeout)
	if !ok {
		log.Error("checkin_panel_timeout", "timeout", r.opts.PanelTimeout.String())
		return Outcome{Kind: OutcomeTimeout}, ctx.Err()
	}
	log.Info("checkin_panel_received", "message_id", msg.ID, "buttons", msg.Panel.Size())

	btn, tier, found := panel.Resolve(t.Button, msg.Panel)
	if !found {
		log.Warn("checkin_button_not_found", "descriptor", t.Button.String())
		return r.escalate(ctx, log, t)
	}
	log.Info("checkin_button_resolved", "button", btn.Text, "tier", string(tier))

	if btn.HasCallback() {
		return r.activateCallback(ctx, log, t, msg.ID, btn)
	}
	return r.pressReplyKeyboard(ctx, log, t, btn)
}

// activateCallback clicks an inline button via its callback token and
// classifies the bot's answer: an inline popup, or a fresh chat message
// after a short settle delay.
func (r *Runner) activateCallback(ctx context.Context, log *slog.Logger, t Target, messageID int, btn panel.Button) (Outcome, error) {
	res, err := r.tr.ActivateCallback(ctx, t.Username, messageID, btn.Data)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.Warn("checkin_activation_failed", "button", btn.Text, "error", err.Error())
		return r.escalate(ctx, log, t)
	}
	if res.PopupText != "" {
		log.Info("checkin_popup", "text", res.PopupText)
		return Outcome{Kind: OutcomePopup, Text: res.PopupText}, nil
	}

	log.Info("checkin_clicked_no_popup", "settle", r.opts.SettleDelay.String())
	if err := sleepCtx(ctx, r.opts.SettleDelay); err != nil {
		return Outcome{}, err
	}
	recent, err := r.tr.FetchRecent(ctx, t.Username, 1)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch recent from %s: %w", t.Username, err)
	}
	if len(recent) > 0 {
		text := strings.TrimSpace(recent[0].Text)
		log.Info("checkin_latest_message", "text", text)
		return Outcome{Kind: OutcomeFollowup, Text: text}, nil
	}
	log.Warn("checkin_no_activity_after_click", "button", btn.Text)
	return Outcome{Kind: OutcomeTimeout}, nil
}

// pressReplyKeyboard activates a tokenless button by sending its visible
// text, then waits for either a new or an edited message from the bot.
func (r *Runner) pressReplyKeyboard(ctx context.Context, log *slog.Logger, t Target, btn panel.Button) (Outcome, error) {
	newSub, err := r.tr.SubscribeNew(ctx, t.Username, inbound)
	if err != nil {
		return Outcome{}, err
	}
	defer newSub.Cancel()
	editSub, err := r.tr.SubscribeEdited(ctx, t.Username, inbound)
	if err != nil {
		return Outcome{}, err
	}
	defer editSub.Cancel()

	log.Info("checkin_send_button_text", "text", btn.Text)
	if err := r.tr.SendText(ctx, t.Username, btn.Text); err != nil {
		return Outcome{}, fmt.Errorf("send button text to %s: %w", t.Username, err)
	}

	timer := time.NewTimer(r.opts.ReplyTimeout)
	defer timer.Stop()
	select {
	case m := <-newSub.C():
		text := strings.TrimSpace(m.Text)
		log.Info("checkin_reply", "text", text)
		return Outcome{Kind: OutcomeFollowup, Text: text}, nil
	case m := <-editSub.C():
		text := strings.TrimSpace(m.Text)
		log.Info("checkin_reply_edited", "text", text)
		return Outcome{Kind: OutcomeFollowup, Text: text}, nil
	case <-timer.C:
		log.Warn("checkin_reply_timeout", "timeout", r.opts.ReplyTimeout.String())
		return r.escalate(ctx, log, t)
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// escalate walks the fallback command ladder, stopping at the first
// command that elicits any reply within its timeout. Exhaustion is a
// warning, not an error: the bot simply could not be checked in.
func (r *Runner) escalate(ctx context.Context, log *slog.Logger, t Target) (Outcome, error) {
	for _, cmd := range r.opts.FallbackCommands {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		reply, ok, err := r.tryFallback(ctx, t.Username, cmd)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			text := strings.TrimSpace(reply.Text)
			log.Info("checkin_fallback_reply", "command", cmd, "text", text)
			return Outcome{Kind: OutcomeFollowup, Text: text}, nil
		}
		log.Warn("checkin_fallback_no_reply", "command", cmd, "timeout", r.opts.EscalateTimeout.String())
	}
	log.Warn("checkin_fallback_exhausted", "commands", len(r.opts.FallbackCommands))
	return Outcome{Kind: OutcomeNotFound}, nil
}

func (r *Runner) tryFallback(ctx context.Context, peer, cmd string) (Message, bool, error) {
	sub, err := r.tr.SubscribeNew(ctx, peer, inbound)
	if err != nil {
		return Message{}, false, err
	}
	defer sub.Cancel()

	if err := r.tr.SendText(ctx, peer, cmd); err != nil {
		return Message{}, false, fmt.Errorf("send fallback %q to %s: %w", cmd, peer, err)
	}
	msg, ok := waitMessage(ctx, sub, r.opts.EscalateTimeout)
	return msg, ok, nil
}

// inbound accepts only regular messages from the bot itself: service
// messages and our own outgoing messages never satisfy a wait.
func inbound(m Message) bool {
	return !m.Service && !m.Outgoing
}

func waitMessage(ctx context.Context, sub Subscription, timeout time.Duration) (Message, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-sub.C():
		return m, true
	case <-timer.C:
		return Message{}, false
	case <-ctx.Done():
		return Message{}, false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
