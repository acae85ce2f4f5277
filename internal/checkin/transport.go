package checkin

import (
	"context"

	"github.com/micubot/tgcheckin/internal/panel"
)

// Message is the fixed record for one chat message as seen by the resolver.
// Panel is nil when the message carries no button grid.
type Message struct {
	ID       int
	Text     string
	Panel    *panel.Panel
	Service  bool
	Outgoing bool
	Edited   bool
}

// Predicate filters messages delivered by a subscription.
type Predicate func(Message) bool

// Subscription is a cancellable stream of messages from one peer. Cancel
// must be safe to call more than once; after Cancel the subscription no
// longer counts against the transport's listener table.
type Subscription interface {
	C() <-chan Message
	Cancel()
}

// ActivationResult is the server's answer to a callback-button activation.
// PopupText is empty when the bot showed no inline popup.
type ActivationResult struct {
	PopupText string
}

// Transport is the chat backend the resolver drives. Implementations own
// connection, authentication and peer resolution; the resolver only ever
// addresses peers by their configured handle.
type Transport interface {
	SendText(ctx context.Context, peer, text string) error
	SubscribeNew(ctx context.Context, peer string, pred Predicate) (Subscription, error)
	SubscribeEdited(ctx context.Context, peer string, pred Predicate) (Subscription, error)
	ActivateCallback(ctx context.Context, peer string, messageID int, data []byte) (ActivationResult, error)
	FetchRecent(ctx context.Context, peer string, limit int) ([]Message, error)
}
