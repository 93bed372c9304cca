// Package backend defines the pluggable backend protocol (spec §4.2): a
// name-keyed table of kernel functions operating over an opaque per-backend
// handle, plus the registry backends are published through (§4.3).
package backend

import (
	"io"
	"sync"

	"github.com/ndoll1998/cgrad/pkg/core/storage/errs"
	"github.com/ndoll1998/cgrad/pkg/core/storage/layout"
)

// Handle is the opaque per-allocation state a backend owns. Only the
// backend that created a Handle may interpret it; the façade and registry
// only ever move it around by reference.
type Handle interface{}

// KernelTable is the function-table protocol every backend implements.
// All functions return *errs.Error so callers can switch on a closed code.
type KernelTable struct {
	// Init allocates a new handle large enough to hold size elements.
	Init func(size int) (Handle, error)

	// Free releases a handle previously returned by Init.
	Free func(h Handle) error

	// Fill sets every element addressed by l to v.
	Fill func(h Handle, l layout.Layout, v float32) error

	// Get reads the element at flat offset off.
	Get func(h Handle, off int) (float32, error)

	// Set writes v at flat offset off.
	Set func(h Handle, off int, v float32) error

	// Gemm computes dst = alpha*lhs@rhs + beta*dst over the trailing two
	// axes of each layout, batched over any leading axes they share.
	Gemm func(dst Handle, dstL layout.Layout, lhs Handle, lhsL layout.Layout, rhs Handle, rhsL layout.Layout, alpha, beta float32) error

	// Axpy computes y += alpha*x. yL must be contiguous.
	Axpy func(y Handle, yL layout.Layout, x Handle, xL layout.Layout, alpha float32) error

	// View reports whether a handle can be addressed through the given
	// layout without copying — true for every backend in this package
	// since all handles here are flat buffers, but kept as a hook so a
	// future backend (e.g. a tiled or device-resident one) can refuse.
	View func(h Handle, l layout.Layout) bool

	// Contiguous copies the elements addressed by srcL into a freshly
	// allocated, densely packed handle and returns it with its layout.
	Contiguous func(src Handle, srcL layout.Layout) (Handle, layout.Layout, error)

	// GetLayout reports the backend's own bookkeeping for a handle, if
	// any (neither cpuf32 nor gorgoniaf32 keeps one; both report false).
	GetLayout func(h Handle) (layout.Layout, bool)

	// Print writes a human-readable dump of the elements addressed by l.
	Print func(w io.Writer, h Handle, l layout.Layout) error
}

// Descriptor pairs a backend's name with its kernel table.
type Descriptor struct {
	Name  string
	Table KernelTable
}

// Registry is a name-keyed store of backend descriptors, grounded on the
// plugin registry's mutex-guarded map pattern.
type Registry struct {
	mutex  sync.RWMutex
	byName map[string]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Register publishes a backend under d.Name. Registering the same name
// twice is an error; backends are expected to register once at startup.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errs.New(errs.INVALID_ARGUMENT, "backend name must not be empty")
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.byName[d.Name]; ok {
		return errs.Newf(errs.BACKEND_REGISTRY_DUPLICATE, "backend %q already registered", d.Name)
	}
	r.byName[d.Name] = d
	return nil
}

// Get looks up a backend by name.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, errs.Newf(errs.BACKEND_REGISTRY_BACKEND_NOT_FOUND, "backend %q not registered", name)
	}
	return d, nil
}

// Names returns every registered backend name.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	return out
}

// Cleanup removes every registered backend, used by CleanupLibrary to
// return the process to a pristine state (mainly useful for tests).
func (r *Registry) Cleanup() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.byName = make(map[string]Descriptor)
}
