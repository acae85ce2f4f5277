package telegram

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"

	"github.com/micubot/tgcheckin/internal/checkin"
)

// Client drives one Telegram user account over MTProto and implements
// checkin.Transport. A user client (not a Bot API token) is required:
// only user accounts can press inline callback buttons on other bots.
type Client struct {
	log    *slog.Logger
	client *telegram.Client
	api    *tg.Client
	gaps   *updates.Manager

	mu     sync.Mutex
	nextID int64
	subs   map[int64]*subscription

	peerMu sync.Mutex
	peers  map[string]*tg.InputPeerUser
}

func NewClient(apiID int, apiHash string, storage session.Storage, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		log:   logger,
		subs:  make(map[int64]*subscription),
		peers: make(map[string]*tg.InputPeerUser),
	}

	d := tg.NewUpdateDispatcher()
	d.OnNewMessage(func(_ context.Context, _ tg.Entities, u *tg.UpdateNewMessage) error {
		c.dispatch(u.Message, false)
		return nil
	})
	d.OnEditMessage(func(_ context.Context, _ tg.Entities, u *tg.UpdateEditMessage) error {
		c.dispatch(u.Message, true)
		return nil
	})

	c.gaps = updates.New(updates.Config{Handler: d})
	c.client = telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  c.gaps,
	})
	c.api = c.client.API()
	return c
}

// ImportTelethonSession seeds the session storage from a Telethon string
// session (the TELEGRAM_SESSION env var). An already stored session wins;
// the import happens only on first use. Reports whether it imported.
func ImportTelethonSession(ctx context.Context, storage session.Storage, sessionString string) (bool, error) {
	if strings.TrimSpace(sessionString) == "" {
		return false, nil
	}
	if _, err := storage.LoadSession(ctx); err == nil {
		return false, nil
	} else if !errors.Is(err, session.ErrNotFound) {
		return false, err
	}
	data, err := session.TelethonSession(strings.TrimSpace(sessionString))
	if err != nil {
		return false, fmt.Errorf("decoding TELEGRAM_SESSION: %w", err)
	}
	loader := session.Loader{Storage: storage}
	if err := loader.Save(ctx, data); err != nil {
		return false, fmt.Errorf("storing imported session: %w", err)
	}
	return true, nil
}

// Run connects, verifies authorization, keeps the update pump alive and
// executes fn. The connection is torn down when fn returns.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return fmt.Errorf("account not authorized: run `tgcheckin login` or set TELEGRAM_SESSION")
		}
		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("fetching own account: %w", err)
		}
		c.log.Info("telegram_logged_in", "first_name", self.FirstName, "username", self.Username)

		pumpCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		pumpErr := make(chan error, 1)
		go func() {
			pumpErr <- c.gaps.Run(pumpCtx, c.api, self.ID, updates.AuthOptions{})
		}()

		err = fn(pumpCtx)
		cancel()
		if perr := <-pumpErr; perr != nil && !errors.Is(perr, context.Canceled) && err == nil {
			c.log.Warn("telegram_update_pump_stopped", "error", perr.Error())
		}
		return err
	})
}

// Login runs the interactive authorization flow and persists the session
// through the configured storage. Returns the authorized account.
func (c *Client) Login(ctx context.Context, flow auth.Flow) (*tg.User, error) {
	var self *tg.User
	err := c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("authorization flow: %w", err)
		}
		var err error
		self, err = c.client.Self(ctx)
		return err
	})
	return self, err
}

// SendText sends a plain text message to the named bot.
func (c *Client) SendText(ctx context.Context, peer, text string) error {
	p, err := c.resolvePeer(ctx, peer)
	if err != nil {
		return err
	}
	id, err := randomID()
	if err != nil {
		return err
	}
	_, err = c.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     p,
		Message:  text,
		RandomID: id,
	})
	if err != nil {
		return fmt.Errorf("sending to %s: %w", peer, err)
	}
	return nil
}

func (c *Client) SubscribeNew(ctx context.Context, peer string, pred checkin.Predicate) (checkin.Subscription, error) {
	return c.subscribe(ctx, peer, pred, false)
}

func (c *Client) SubscribeEdited(ctx context.Context, peer string, pred checkin.Predicate) (checkin.Subscription, error) {
	return c.subscribe(ctx, peer, pred, true)
}

// ActivateCallback presses an inline button by answering with its callback
// token, returning the popup text when the bot shows one.
func (c *Client) ActivateCallback(ctx context.Context, peer string, messageID int, data []byte) (checkin.ActivationResult, error) {
	p, err := c.resolvePeer(ctx, peer)
	if err != nil {
		return checkin.ActivationResult{}, err
	}
	req := &tg.MessagesGetBotCallbackAnswerRequest{
		Peer:  p,
		MsgID: messageID,
	}
	req.SetData(data)
	ans, err := c.api.MessagesGetBotCallbackAnswer(ctx, req)
	if err != nil {
		return checkin.ActivationResult{}, fmt.Errorf("callback answer from %s: %w", peer, err)
	}
	res := checkin.ActivationResult{}
	if msg, ok := ans.GetMessage(); ok {
		res.PopupText = msg
	}
	return res, nil
}

// FetchRecent returns up to limit messages of the conversation, newest first.
func (c *Client) FetchRecent(ctx context.Context, peer string, limit int) ([]checkin.Message, error) {
	p, err := c.resolvePeer(ctx, peer)
	if err != nil {
		return nil, err
	}
	hist, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  p,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", peer, err)
	}

	var raw []tg.MessageClass
	switch h := hist.(type) {
	case *tg.MessagesMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	default:
		return nil, fmt.Errorf("unexpected history response %T", hist)
	}

	out := make([]checkin.Message, 0, len(raw))
	for _, mc := range raw {
		m, _, ok := convertMessage(mc)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

type subscription struct {
	c    *Client
	id   int64
	ch   chan checkin.Message
	once sync.Once

	userID int64
	edited bool
	pred   checkin.Predicate
}

func (s *subscription) C() <-chan checkin.Message { return s.ch }

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.c.mu.Lock()
		delete(s.c.subs, s.id)
		s.c.mu.Unlock()
	})
}

func (c *Client) subscribe(ctx context.Context, peer string, pred checkin.Predicate, edited bool) (checkin.Subscription, error) {
	p, err := c.resolvePeer(ctx, peer)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	s := &subscription{
		c:      c,
		id:     c.nextID,
		ch:     make(chan checkin.Message, 16),
		userID: p.UserID,
		edited: edited,
		pred:   pred,
	}
	c.subs[s.id] = s
	return s, nil
}

// ActiveSubscriptions reports the size of the listener table; it must be
// zero between bot interactions.
func (c *Client) ActiveSubscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Client) dispatch(mc tg.MessageClass, edited bool) {
	m, userID, ok := convertMessage(mc)
	if !ok {
		return
	}
	m.Edited = edited

	c.mu.Lock()
	targets := make([]*subscription, 0, len(c.subs))
	for _, s := range c.subs {
		if s.edited == edited && s.userID == userID {
			targets = append(targets, s)
		}
	}
	c.mu.Unlock()

	for _, s := range targets {
		if s.pred != nil && !s.pred(m) {
			continue
		}
		select {
		case s.ch <- m:
		default:
			c.log.Warn("telegram_subscription_overflow", "user_id", userID, "message_id", m.ID)
		}
	}
}

func (c *Client) resolvePeer(ctx context.Context, username string) (*tg.InputPeerUser, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if key == "" {
		return nil, fmt.Errorf("empty peer username")
	}

	c.peerMu.Lock()
	p, ok := c.peers[key]
	c.peerMu.Unlock()
	if ok {
		return p, nil
	}

	res, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: key})
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", username, err)
	}
	for _, uc := range res.Users {
		u, ok := uc.(*tg.User)
		if !ok {
			continue
		}
		p := &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
		c.peerMu.Lock()
		c.peers[key] = p
		c.peerMu.Unlock()
		return p, nil
	}
	return nil, fmt.Errorf("resolving %s: no user in response", username)
}

func randomID() (int64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
