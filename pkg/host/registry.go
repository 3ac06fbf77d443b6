package host

import (
	"sync"

	"github.com/twmb/go-rbtree"
)

// sessionItem is the registry's rbtree.Item, ordered by connection_id.
type sessionItem struct {
	id     int64
	handle *Handle
}

func (s *sessionItem) Less(than rbtree.Item) bool {
	return s.id < than.(*sessionItem).id
}

// Registry is the Host's attached-session index: a connection_id-ordered
// tree, so a reaper sweep or an Each walk visits sessions in a stable
// order instead of map iteration's randomized one. maxSessions of 0
// means unbounded.
type Registry struct {
	mu          sync.Mutex
	tree        rbtree.Tree
	nodes       map[int64]*rbtree.Node
	maxSessions int
}

func NewRegistry(maxSessions int) *Registry {
	return &Registry{
		nodes:       make(map[int64]*rbtree.Node),
		maxSessions: maxSessions,
	}
}

// Put inserts h under its connection ID. It fails with
// ErrDuplicateConnectionID if that ID is already attached -- the caller
// must Remove (or let a Reaper detach) the prior session first, so two
// live sessions never silently share one connection_id -- or with
// ErrRegistryFull if the registry is at capacity.
func (r *Registry) Put(h *Handle) error {
	id := h.ConnectionID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; ok {
		return ErrDuplicateConnectionID
	}
	if r.maxSessions > 0 && len(r.nodes) >= r.maxSessions {
		return ErrRegistryFull
	}

	node := r.tree.Insert(&sessionItem{id: id, handle: h})
	r.nodes[id] = node
	return nil
}

// Remove drops the session with the given ID from the registry, if
// present. It does not detach the session; Handle.Detach calls Remove.
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id]
	if !ok {
		return
	}
	r.tree.Delete(node)
	delete(r.nodes, id)
}

// Get returns the session with the given ID, if attached.
func (r *Registry) Get(id int64) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id]
	if !ok {
		return nil, false
	}
	return node.Item.(*sessionItem).handle, true
}

// Len reports the number of attached sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// Each walks every attached session in connection_id order.
func (r *Registry) Each(fn func(*Handle)) {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.nodes))
	for n := r.tree.Min(); n != nil; n = n.Next() {
		handles = append(handles, n.Item.(*sessionItem).handle)
	}
	r.mu.Unlock()

	for _, h := range handles {
		fn(h)
	}
}

// ReapIdle detaches and removes every session whose LastActivity is
// older than idleTimeout as of now, returning their connection IDs.
func (r *Registry) ReapIdle(now func() int64, idleTimeoutNanos int64) []int64 {
	var stale []int64
	r.Each(func(h *Handle) {
		if now()-h.LastActivity().UnixNano() >= idleTimeoutNanos {
			stale = append(stale, h.ConnectionID())
		}
	})
	for _, id := range stale {
		if h, ok := r.Get(id); ok {
			h.Detach()
		}
		r.Remove(id)
	}
	return stale
}
