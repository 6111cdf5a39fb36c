package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"focusflow/backend/internal/model"
)

// Principal is what the identity collaborator knows about the caller. A nil
// principal means nobody is signed in.
type Principal struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

// Resolve maps a principal to the user id that owns its data.
func Resolve(p *Principal) string {
	if p == nil {
		return model.GuestUserID
	}
	if id := strings.TrimSpace(p.ID); id != "" {
		return id
	}
	if email := strings.TrimSpace(p.Email); email != "" {
		return email
	}
	return model.GuestUserID
}

func IsGuest(userID string) bool {
	return userID == model.GuestUserID
}

type Transition struct {
	From string
	To   string
}

// SignedIn reports a guest to authenticated transition.
func (t Transition) SignedIn() bool {
	return IsGuest(t.From) && !IsGuest(t.To)
}

// Listener reacts to a change of the active user. Returning an error stops
// the listeners registered after it.
type Listener func(ctx context.Context, t Transition) error

// Tracker remembers the active user id and emits a Transition whenever it
// changes. The zero state is the guest user.
type Tracker struct {
	mu        sync.Mutex
	current   string
	listeners []Listener
}

func NewTracker() *Tracker {
	return &Tracker{current: model.GuestUserID}
}

func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Subscribe registers a listener. Listeners run synchronously in
// registration order, so registration order is the sequencing contract.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Update resolves p and, when the active user changed, records it and runs
// the listeners. The new user is active even if a listener fails.
func (t *Tracker) Update(ctx context.Context, p *Principal) (Transition, bool, error) {
	next := Resolve(p)

	t.mu.Lock()
	if next == t.current {
		t.mu.Unlock()
		return Transition{From: next, To: next}, false, nil
	}
	transition := Transition{From: t.current, To: next}
	t.current = next
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	for i, l := range listeners {
		if err := l(ctx, transition); err != nil {
			return transition, true, fmt.Errorf("identity listener %d: %w", i, err)
		}
	}
	return transition, true, nil
}
