package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Banner levels
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Operator-facing messages
const (
	MsgReadOnly          = "You are in read only mode"
	MsgFetchFailed       = "Failed to fetch data from edge server"
	MsgFetchRecovered    = "Data fetched successfully from edge server"
	MsgSessionExpired    = "Session expired, please log in again"
	MsgSwitchOverride    = "Relay toggle failed due to manual override."
	MsgSwitchFailed      = "Season switch failed."
	MsgOverrideFailed    = "Relay switching has failed."
	MsgSettingsFailed    = "Failed to update settings"
	MsgSetpointReadOnly  = "Cannot update setpoint: System is in read-only mode"
	MsgSetpointRateLimit = "Please wait a few seconds before changing the temperature again"
	MsgSetpointCircuit   = "Service is temporarily unavailable due to multiple failures. Please try again later."
)

const maxBanners = 50

// Banner is one user-visible notification
type Banner struct {
	ID      string    `json:"id"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier is the banner board: an ordered, bounded list of notifications
// with change fan-out
type Notifier struct {
	mu      sync.Mutex
	banners []Banner
	subs    map[int]chan []Banner
	nextSub int
	now     func() time.Time
	ttl     time.Duration
	logger  *slog.Logger
	onPush  func(level string)
}

// NewNotifier creates an empty banner board
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		subs:   make(map[int]chan []Banner),
		now:    time.Now,
		logger: logger,
	}
}

// OnPush installs a hook called with the level of every new banner
func (n *Notifier) OnPush(fn func(level string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onPush = fn
}

// SetTTL makes banners expire ttl after they were pushed; zero keeps them until dismissed
func (n *Notifier) SetTTL(ttl time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ttl = ttl
}

// Success adds a success banner
func (n *Notifier) Success(msg string) Banner { return n.Push(LevelSuccess, msg) }

// Warning adds a warning banner
func (n *Notifier) Warning(msg string) Banner { return n.Push(LevelWarning, msg) }

// Error adds an error banner
func (n *Notifier) Error(msg string) Banner { return n.Push(LevelError, msg) }

// Push adds a banner, dropping the oldest once the board is full
func (n *Notifier) Push(level, msg string) Banner {
	b := Banner{ID: uuid.NewString(), Level: level, Message: msg}

	n.mu.Lock()
	b.At = n.now()
	n.banners = append(n.banners, b)
	if len(n.banners) > maxBanners {
		n.banners = append([]Banner(nil), n.banners[len(n.banners)-maxBanners:]...)
	}
	hook := n.onPush
	n.publishLocked()
	n.mu.Unlock()

	n.logger.Info("Banner", "level", level, "message", msg, "id", b.ID)
	if hook != nil {
		hook(level)
	}
	return b
}

// List returns the banners oldest first
func (n *Notifier) List() []Banner {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Banner(nil), n.banners...)
}

// Dismiss removes a banner and reports whether it existed
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, b := range n.banners {
		if b.ID == id {
			n.banners = append(n.banners[:i:i], n.banners[i+1:]...)
			n.publishLocked()
			return true
		}
	}
	return false
}

// Prune drops the banners that expired at now and returns how many were removed
func (n *Notifier) Prune(now time.Time) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ttl <= 0 {
		return 0
	}
	kept := n.banners[:0:0]
	for _, b := range n.banners {
		if now.Sub(b.At) < n.ttl {
			kept = append(kept, b)
		}
	}
	removed := len(n.banners) - len(kept)
	if removed > 0 {
		n.banners = kept
		n.publishLocked()
	}
	return removed
}

// Run prunes expired banners on every tick until ctx is done
func (n *Notifier) Run(ctx context.Context, clock Clock, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			if removed := n.Prune(now); removed > 0 {
				n.logger.Debug("Expired banners", "count", removed)
			}
		}
	}
}

// Count returns how many banners at level are on the board
func (n *Notifier) Count(level string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, b := range n.banners {
		if b.Level == level {
			count++
		}
	}
	return count
}

// Subscribe returns a channel receiving the board after every change and a cancel func
func (n *Notifier) Subscribe(buffer int) (<-chan []Banner, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextSub
	n.nextSub++
	ch := make(chan []Banner, max(buffer, 1))
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
}

func (n *Notifier) publishLocked() {
	if len(n.subs) == 0 {
		return
	}
	board := append([]Banner(nil), n.banners...)
	for _, ch := range n.subs {
		select {
		case ch <- board:
		default:
		}
	}
}
