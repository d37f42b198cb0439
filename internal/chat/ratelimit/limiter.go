// Package ratelimit implements the fixed-window per-user action throttle.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

type Action string

const (
	ActionMessage Action = "message"
	ActionOther   Action = "other"
)

const (
	DefaultMessageLimit = 10
	DefaultActionLimit  = 30
	DefaultWindow       = time.Minute
)

type window struct {
	count int
	reset time.Time
}

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Limiter counts actions per (user, action) key in fixed windows. Keys are
// sharded; distinct users never contend on one lock.
type Limiter struct {
	messageLimit int
	actionLimit  int
	window       time.Duration

	shards [shardCount]shard

	// now is swappable for tests.
	now func() time.Time
}

func NewLimiter(messageLimit, actionLimit int, windowSize time.Duration) *Limiter {
	if messageLimit <= 0 {
		messageLimit = DefaultMessageLimit
	}
	if actionLimit <= 0 {
		actionLimit = DefaultActionLimit
	}
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}

	l := &Limiter{
		messageLimit: messageLimit,
		actionLimit:  actionLimit,
		window:       windowSize,
		now:          time.Now,
	}
	for i := range l.shards {
		l.shards[i].windows = make(map[string]*window)
	}
	return l
}

// Allow reports whether userID may perform action now, counting the attempt.
// First action in a window starts count=1; a lapsed window resets; at the
// limit the attempt is rejected without extending the window.
func (l *Limiter) Allow(userID string, action Action) bool {
	limit := l.actionLimit
	if action == ActionMessage {
		limit = l.messageLimit
	}

	key := userID + "_" + string(action)
	sh := l.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := l.now()
	w, ok := sh.windows[key]
	if !ok {
		sh.windows[key] = &window{count: 1, reset: now.Add(l.window)}
		return true
	}

	if now.After(w.reset) {
		w.count = 1
		w.reset = now.Add(l.window)
		return true
	}

	if w.count >= limit {
		return false
	}

	w.count++
	return true
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}
