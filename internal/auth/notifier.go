package auth

import (
	"sync"

	"github.com/neurabot/neurabot/internal/model"
)

// EventType は認証状態の遷移種別。
type EventType string

const (
	EventSignedIn    EventType = "SIGNED_IN"
	EventSignedOut   EventType = "SIGNED_OUT"
	EventUserUpdated EventType = "USER_UPDATED"
)

// Event は認証状態の遷移1件を表す。
type Event struct {
	Type      EventType
	UserID    string
	SessionID string      // SIGNED_OUTで全セッション破棄の場合は空
	User      *model.User // USER_UPDATEDの場合のみ設定
}

// Listener は認証状態の遷移を受け取るコールバック。
type Listener func(Event)

// Notifier は認証状態の遷移をリスナーに配信する。
type Notifier struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
}

// NewNotifier はNotifierを生成する。
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[uint64]Listener)}
}

// Subscribe はリスナーを登録し、登録を解除する関数を返す。
// 解除関数は何度呼んでもよい。
func (n *Notifier) Subscribe(fn Listener) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Publish はイベントを登録済みの全リスナーに同期的に配信する。
// リスナーはロック外で呼ばれるため、リスナー内から解除してもよい。
func (n *Notifier) Publish(e Event) {
	n.mu.RLock()
	targets := make([]Listener, 0, len(n.listeners))
	for _, fn := range n.listeners {
		targets = append(targets, fn)
	}
	n.mu.RUnlock()

	for _, fn := range targets {
		fn(e)
	}
}

// Len は登録中のリスナー数を返す。
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
