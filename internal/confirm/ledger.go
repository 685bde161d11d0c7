package confirm

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation is the kind of a pending mutation.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Mode decides which CONFIRM frames may execute.
type Mode string

const (
	// ModeStrict executes only statements this session proposed.
	ModeStrict Mode = "strict"
	// ModeTrustClient executes whatever SQL the client echoes back.
	ModeTrustClient Mode = "trust-client"
)

// ParseMode validates a configured mode. Empty means strict.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModeTrustClient:
		return ModeTrustClient, nil
	default:
		return "", fmt.Errorf("unknown confirmation mode %q", s)
	}
}

// Defaults for NewLedger.
const (
	DefaultTTL  = 10 * time.Minute
	DefaultSize = 16
)

// Pending is a proposed mutation awaiting confirmation.
type Pending struct {
	Token     string
	SQL       string
	Operation Operation
	CreatedAt time.Time
}

// Ledger holds one session's pending confirmations. Entries expire after
// the TTL, the oldest entry is evicted when full, and taking an entry
// removes it so a proposal executes at most once.
type Ledger struct {
	ttl  time.Duration
	size int
	now  func() time.Time

	mu      sync.Mutex
	pending []Pending // oldest first
}

// NewLedger creates a ledger; non-positive arguments select the defaults.
func NewLedger(ttl time.Duration, size int) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Ledger{ttl: ttl, size: size, now: time.Now}
}

// Add records a proposal and returns it with a fresh token.
func (l *Ledger) Add(sql string, op Operation) Pending {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune()
	if len(l.pending) >= l.size {
		l.pending = l.pending[1:]
	}
	p := Pending{
		Token:     uuid.NewString(),
		SQL:       strings.TrimSpace(sql),
		Operation: op,
		CreatedAt: l.now(),
	}
	l.pending = append(l.pending, p)
	return p
}

// Take removes and returns the proposal with token.
func (l *Ledger) Take(token string) (Pending, bool) {
	return l.take(func(p Pending) bool { return p.Token == token })
}

// TakeSQL removes and returns the newest proposal whose statement is sql.
func (l *Ledger) TakeSQL(sql string) (Pending, bool) {
	sql = strings.TrimSpace(sql)
	return l.take(func(p Pending) bool { return p.SQL == sql })
}

func (l *Ledger) take(match func(Pending) bool) (Pending, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune()
	for i := len(l.pending) - 1; i >= 0; i-- {
		if match(l.pending[i]) {
			p := l.pending[i]
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return p, true
		}
	}
	return Pending{}, false
}

// Len returns the number of live proposals.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune()
	return len(l.pending)
}

func (l *Ledger) prune() {
	cutoff := l.now().Add(-l.ttl)
	i := 0
	for i < len(l.pending) && l.pending[i].CreatedAt.Before(cutoff) {
		i++
	}
	l.pending = l.pending[i:]
}
