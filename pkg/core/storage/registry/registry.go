// Package registry implements the storage registry (spec §4.4): alias
// buckets tracking which storage handles share one backend allocation,
// and a LIFO stack of recording scopes for scoped temporary allocation.
// Grounded on the teacher's plugin registry mutex/map pattern
// (pkg/core/plugin/registry.go) and the reference-counted view concept in
// x/math/tensor/smart_view.go, reimplemented against a uuid-keyed bucket
// model rather than an atomic refcount since scopes need an explicit
// LIFO stack, not a bare counter.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ndoll1998/cgrad/pkg/core/logger"
	"github.com/ndoll1998/cgrad/pkg/core/storage/errs"
)

// bucket is one backend allocation shared by a root storage and any
// number of views over it.
type bucket struct {
	root    uuid.UUID
	members map[uuid.UUID]struct{}
}

// Registry owns the uuid→bucket mapping and the recording-scope stack.
// Per spec §5 this is not required to be goroutine-safe for correctness
// of the cooperative single-threaded model; the mutex here only guards
// against accidental concurrent misuse, matching the teacher's own
// belt-and-suspenders locking in pkg/core/plugin.
type Registry struct {
	mutex   sync.Mutex
	buckets map[uuid.UUID]*bucket   // keyed by root uuid
	owner   map[uuid.UUID]uuid.UUID // member uuid -> root uuid
	scopes  []*scope
}

type scope struct {
	tracked map[uuid.UUID]struct{}
	order   []uuid.UUID
}

// New returns an empty registry with capacity hinted by scopeStackCap for
// the recording-scope stack (a pre-allocation hint only).
func New(scopeStackCap int) *Registry {
	if scopeStackCap <= 0 {
		scopeStackCap = 8
	}
	return &Registry{
		buckets: make(map[uuid.UUID]*bucket),
		owner:   make(map[uuid.UUID]uuid.UUID),
		scopes:  make([]*scope, 0, scopeStackCap),
	}
}

// RegisterRoot creates a brand-new bucket whose sole member is id, used
// when a storage is allocated fresh rather than as a view over another.
func (r *Registry) RegisterRoot(id uuid.UUID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	b := &bucket{root: id, members: map[uuid.UUID]struct{}{id: {}}}
	r.buckets[id] = b
	r.owner[id] = id
	r.trackLocked(id)
	logger.Log.Debug().Str("uuid", id.String()).Msg("storage registered as root")
}

// RegisterView adds id as a new member of parent's bucket, so the two
// storages are known to alias the same backend allocation.
func (r *Registry) RegisterView(id, parent uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	root, ok := r.owner[parent]
	if !ok {
		return errs.Newf(errs.STORAGE_REGISTRY_PARENT_NOT_REGISTERED, "parent %s is not registered", parent)
	}
	b := r.buckets[root]
	b.members[id] = struct{}{}
	r.owner[id] = root
	r.trackLocked(id)
	logger.Log.Debug().Str("uuid", id.String()).Str("root", root.String()).Msg("storage registered as view")
	return nil
}

// Deregister removes id from its bucket. When the bucket's member count
// reaches zero the bucket itself is dropped and Deregister reports
// dropBucket=true so the caller knows it is safe to free the backend
// allocation.
func (r *Registry) Deregister(id uuid.UUID) (dropBucket bool, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	root, ok := r.owner[id]
	if !ok {
		return false, errs.Newf(errs.STORAGE_REGISTRY_RECORD_NOT_FOUND, "storage %s is not registered", id)
	}
	b := r.buckets[root]
	delete(b.members, id)
	delete(r.owner, id)
	r.untrackLocked(id)

	if len(b.members) == 0 {
		delete(r.buckets, root)
		logger.Log.Debug().Str("uuid", id.String()).Str("root", root.String()).Msg("bucket emptied, dropping")
		return true, nil
	}
	return false, nil
}

// Root reports the root uuid of id's bucket.
func (r *Registry) Root(id uuid.UUID) (uuid.UUID, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	root, ok := r.owner[id]
	if !ok {
		return uuid.UUID{}, errs.Newf(errs.STORAGE_REGISTRY_RECORD_NOT_FOUND, "storage %s is not registered", id)
	}
	return root, nil
}

// BucketSize reports how many storages currently alias id's bucket.
func (r *Registry) BucketSize(id uuid.UUID) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	root, ok := r.owner[id]
	if !ok {
		return 0, errs.Newf(errs.STORAGE_REGISTRY_RECORD_NOT_FOUND, "storage %s is not registered", id)
	}
	return len(r.buckets[root].members), nil
}

// Stats reports registry-wide counts for introspection and tests.
type Stats struct {
	Buckets    int
	Storages   int
	ScopeDepth int
}

// Stats returns a snapshot of current registry occupancy, grounded on the
// teacher's plugin.Registry.ForEach introspection style.
func (r *Registry) Stats() Stats {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return Stats{
		Buckets:    len(r.buckets),
		Storages:   len(r.owner),
		ScopeDepth: len(r.scopes),
	}
}

// StartRecording pushes a new recording scope onto the stack. Every
// storage registered while the scope is active is tracked by it (and by
// every scope still below it on the stack); deregistering a storage
// removes it from every active scope again.
func (r *Registry) StartRecording() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.scopes = append(r.scopes, &scope{tracked: make(map[uuid.UUID]struct{})})
}

// StopRecording pops the innermost recording scope and returns the set of
// storage uuids that were registered (and not yet deregistered or
// RecordRemove-d) during its lifetime, in registration order.
func (r *Registry) StopRecording() ([]uuid.UUID, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(r.scopes) == 0 {
		return nil, errs.New(errs.STORAGE_REGISTRY_RECORD_NOT_FOUND, "no active recording scope")
	}
	s := r.scopes[len(r.scopes)-1]
	r.scopes = r.scopes[:len(r.scopes)-1]
	out := make([]uuid.UUID, 0, len(s.tracked))
	for _, id := range s.order {
		if _, ok := s.tracked[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// RecordRemove exempts id from every currently active recording scope, so
// it survives when those scopes are closed. It does not deregister id from
// its alias bucket; the caller is still responsible for eventually freeing
// it. Removing an id that isn't tracked by any active scope is a no-op.
func (r *Registry) RecordRemove(id uuid.UUID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.untrackLocked(id)
}

// ScopeDepth reports how many recording scopes are currently active.
func (r *Registry) ScopeDepth() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.scopes)
}

func (r *Registry) trackLocked(id uuid.UUID) {
	for _, s := range r.scopes {
		if _, ok := s.tracked[id]; ok {
			continue
		}
		s.tracked[id] = struct{}{}
		s.order = append(s.order, id)
	}
}

func (r *Registry) untrackLocked(id uuid.UUID) {
	for _, s := range r.scopes {
		delete(s.tracked, id)
	}
}
