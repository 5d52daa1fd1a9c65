package push

import (
	"encoding/json"

	webpush "github.com/SherClockHolmes/webpush-go"

	"gazette-chat/internal/domain"
	"gazette-chat/pkg/logger"
)

// Notifier sends Web Push notifications to stored subscriptions.
type Notifier struct {
	vapidPublicKey  string
	vapidPrivateKey string
	subscriber      string
	log             *logger.Logger
}

// NewNotifier creates a push Notifier. Returns nil if VAPID keys are empty,
// which disables push delivery without special-casing callers.
func NewNotifier(vapidPublicKey, vapidPrivateKey, subscriber string, log *logger.Logger) *Notifier {
	if vapidPublicKey == "" || vapidPrivateKey == "" {
		return nil
	}
	return &Notifier{
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		subscriber:      subscriber,
		log:             log,
	}
}

// VAPIDPublicKey returns the public VAPID key for the frontend.
func (n *Notifier) VAPIDPublicKey() string {
	if n == nil {
		return ""
	}
	return n.vapidPublicKey
}

// Payload is the JSON structure sent inside the push notification.
type Payload struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	ConversationID string `json:"conversation_id"`
}

// Send delivers the payload to one subscription. Failures are logged and
// swallowed; push is a hint, never part of the write path.
func (n *Notifier) Send(sub domain.PushSubscription, p Payload) {
	if n == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.KeyP256dh,
			Auth:   sub.KeyAuth,
		},
	}
	resp, err := webpush.SendNotification(data, target, &webpush.Options{
		Subscriber:      n.subscriber,
		VAPIDPublicKey:  n.vapidPublicKey,
		VAPIDPrivateKey: n.vapidPrivateKey,
		TTL:             60,
	})
	if err != nil {
		if n.log != nil {
			n.log.Warnf("push: send to %s failed: %v", sub.Endpoint, err)
		}
		return
	}
	defer resp.Body.Close()
}
