package camera

import (
	"sort"
	"sync"
)

// Token identifies a registered consumer.
type Token uint64

type member struct {
	token    Token
	consumer Consumer
}

// Registry tracks the consumers currently attached to a pipeline. It holds
// non-owning references: transports own the underlying sockets.
type Registry struct {
	mu      sync.Mutex
	next    Token
	members map[Token]Consumer

	// onChange is invoked after every membership change, outside the lock.
	onChange func(count int)
}

// NewRegistry creates an empty registry. onChange may be nil.
func NewRegistry(onChange func(count int)) *Registry {
	return &Registry{
		members:  make(map[Token]Consumer),
		onChange: onChange,
	}
}

// Add registers a consumer and returns the token used to remove it.
func (r *Registry) Add(c Consumer) Token {
	t, n := r.insert(c)
	if r.onChange != nil {
		r.onChange(n)
	}
	return t
}

// insert adds c without notifying onChange.
func (r *Registry) insert(c Consumer) (Token, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.members[r.next] = c
	return r.next, len(r.members)
}

// delete removes t without notifying onChange.
func (r *Registry) delete(t Token) {
	r.mu.Lock()
	delete(r.members, t)
	r.mu.Unlock()
}

// Remove deregisters the consumer behind t. Removing an unknown or already
// removed token is a no-op.
func (r *Registry) Remove(t Token) {
	r.mu.Lock()
	if _, ok := r.members[t]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, t)
	n := len(r.members)
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(n)
	}
}

// Count returns the number of attached consumers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// snapshot returns the current members in attach order.
func (r *Registry) snapshot() []member {
	r.mu.Lock()
	out := make([]member, 0, len(r.members))
	for t, c := range r.members {
		out = append(out, member{token: t, consumer: c})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].token < out[j].token })
	return out
}

// Dropped returns the total dropped-chunk count over attached consumers.
func (r *Registry) Dropped() uint64 {
	var total uint64
	for _, m := range r.snapshot() {
		total += m.consumer.Dropped()
	}
	return total
}
