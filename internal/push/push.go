package push

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
)

const (
	subscriber = "mailto:push@memeboard.local"
	ttlSeconds = 24 * 60 * 60
)

type sendFunc func(data []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// Notifier sends Web Push notifications to subscribed wallets.
type Notifier struct {
	db      *sql.DB
	options webpush.Options
	send    sendFunc
}

// Subscription is the body a browser posts to /push/subscribe.
type Subscription struct {
	Endpoint  string `json:"endpoint" binding:"required,url"`
	KeyP256dh string `json:"p256dh" binding:"required"`
	KeyAuth   string `json:"auth" binding:"required"`
}

// Notification is the JSON payload the service worker receives.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// NewNotifier returns nil when either VAPID key is missing, which disables push.
func NewNotifier(db *sql.DB, vapidPublicKey, vapidPrivateKey string) *Notifier {
	if vapidPublicKey == "" || vapidPrivateKey == "" {
		return nil
	}
	return &Notifier{
		db: db,
		options: webpush.Options{
			VAPIDPublicKey:  vapidPublicKey,
			VAPIDPrivateKey: vapidPrivateKey,
			Subscriber:      subscriber,
			TTL:             ttlSeconds,
		},
		send: webpush.SendNotification,
	}
}

func (n *Notifier) VAPIDPublicKey() string {
	if n == nil {
		return ""
	}
	return n.options.VAPIDPublicKey
}

// Subscribe stores a subscription for wallet. Posting a revoked endpoint again
// reactivates it.
func Subscribe(db *sql.DB, wallet string, sub Subscription) error {
	_, err := db.Exec(`
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			user_id = excluded.user_id,
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			revoked_at = NULL
	`, wallet, sub.Endpoint, sub.KeyP256dh, sub.KeyAuth)
	return err
}

// Unsubscribe reports whether an active subscription was revoked.
func Unsubscribe(db *sql.DB, wallet, endpoint string) (bool, error) {
	res, err := db.Exec(`
		UPDATE push_subscriptions SET revoked_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND endpoint = ? AND revoked_at IS NULL
	`, wallet, endpoint)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SendNewMessageNotification tells receiver about a message from senderName.
func (n *Notifier) SendNewMessageNotification(receiver, senderName, preview, conversationID string) {
	n.Notify(receiver, Notification{
		Title: senderName,
		Body:  preview,
		URL:   "/messages/" + conversationID,
	})
}

// Notify delivers note to every active subscription of wallet and blocks
// until each push service has answered.
func (n *Notifier) Notify(wallet string, note Notification) {
	if n == nil {
		return
	}
	subs, err := n.active(wallet)
	if err != nil {
		log.Printf("push: query subscriptions wallet=%s error=%v", wallet, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	data, err := json.Marshal(note)
	if err != nil {
		log.Printf("push: encode notification error=%v", err)
		return
	}

	log.Printf("push: notify wallet=%s subscriptions=%d", wallet, len(subs))
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.deliver(sub, data)
		}()
	}
	wg.Wait()
}

func (n *Notifier) active(wallet string) ([]*webpush.Subscription, error) {
	rows, err := n.db.Query(
		"SELECT endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = ? AND revoked_at IS NULL",
		wallet,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*webpush.Subscription
	for rows.Next() {
		s := &webpush.Subscription{}
		if err := rows.Scan(&s.Endpoint, &s.Keys.P256dh, &s.Keys.Auth); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// deliver sends one push. Endpoints the push service reports as gone are deleted.
func (n *Notifier) deliver(sub *webpush.Subscription, data []byte) {
	opts := n.options
	resp, err := n.send(data, sub, &opts)
	if err != nil {
		log.Printf("push: send endpoint=%s error=%v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusGone, http.StatusNotFound:
		if _, err := n.db.Exec("DELETE FROM push_subscriptions WHERE endpoint = ?", sub.Endpoint); err != nil {
			log.Printf("push: delete expired endpoint=%s error=%v", sub.Endpoint, err)
			return
		}
		log.Printf("push: removed expired endpoint=%s status=%d", sub.Endpoint, resp.StatusCode)
	}
}

// GenerateKeys returns a new VAPID key pair.
func GenerateKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
