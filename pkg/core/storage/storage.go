// Package storage is the public façade (spec §4.5): it wires the layout,
// backend, and registry components into the operations a caller actually
// invokes — init, view, transpose, contiguous, reshape, gemm, axpy,
// reduce, free — plus library lifecycle and recording-scope helpers.
// Grounded on the teacher's thin top-level façade
// (pkg/core/math/tensor/tensor.go) re-exporting lower-level operations,
// and pkg/store/store.go's lifecycle/logging call shape.
package storage

import (
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ndoll1998/cgrad/pkg/core/config"
	"github.com/ndoll1998/cgrad/pkg/core/logger"
	"github.com/ndoll1998/cgrad/pkg/core/storage/backend"
	"github.com/ndoll1998/cgrad/pkg/core/storage/backend/cpuf32"
	"github.com/ndoll1998/cgrad/pkg/core/storage/backend/gorgoniaf32"
	"github.com/ndoll1998/cgrad/pkg/core/storage/errs"
	"github.com/ndoll1998/cgrad/pkg/core/storage/layout"
	"github.com/ndoll1998/cgrad/pkg/core/storage/registry"
)

// Handle is a storage handle: the public identity of one tensor's data
// plus the geometry addressing it (spec §3's "(uuid, backend*, data*)"
// tuple, generalized to carry its Layout too rather than a bare pointer).
type Handle struct {
	ID      uuid.UUID
	Backend string
	Layout  layout.Layout

	data backend.Handle
}

// Library is one instance of the storage engine: a backend registry, a
// storage registry, and the set of live handles it owns. Most callers use
// the package-level default instance via InitLibrary/CleanupLibrary; the
// type is exported so tests can run several isolated instances side by
// side.
type Library struct {
	mu      sync.Mutex
	cfg     config.Config
	backend *backend.Registry
	storage *registry.Registry
	handles map[uuid.UUID]*Handle
}

var (
	defaultMu  sync.Mutex
	defaultLib *Library
)

// NewLibrary builds a Library with cpu_f32 and gorgonia_f32 registered,
// ready for Init calls.
func NewLibrary(cfg config.Config) *Library {
	if cfg.DefaultBackend == "" {
		cfg = config.Default()
	}
	l := &Library{
		cfg:     cfg,
		backend: backend.NewRegistry(),
		storage: registry.New(cfg.ScopeStackCapacity),
		handles: make(map[uuid.UUID]*Handle),
	}
	// Registration errors here can only be BACKEND_REGISTRY_DUPLICATE,
	// which cannot happen against a freshly built registry.
	_ = l.backend.Register(cpuf32.Descriptor())
	_ = l.backend.Register(gorgoniaf32.Descriptor())
	return l
}

// InitLibrary builds the default package-level Library. Calling it again
// before CleanupLibrary replaces the previous instance.
func InitLibrary(cfg config.Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLib = NewLibrary(cfg)
	logger.Log.Debug().Str("default_backend", defaultLib.cfg.DefaultBackend).Msg("storage library initialized")
	return nil
}

// CleanupLibrary tears down the default package-level Library, freeing
// every live handle it still owns.
func CleanupLibrary() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLib == nil {
		return nil
	}
	for _, h := range defaultLib.handles {
		if err := defaultLib.Free(h); err != nil {
			return err
		}
	}
	defaultLib = nil
	return nil
}

// IsInitialized reports whether InitLibrary has been called without a
// matching CleanupLibrary.
func IsInitialized() bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLib != nil
}

func defaultLibrary() (*Library, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLib == nil {
		return nil, errs.New(errs.STORAGE_HANDLE_UNINITIALIZED, "storage library is not initialized")
	}
	return defaultLib, nil
}

// Init allocates a new, contiguous, zero-filled storage of the given
// shape on the default library using its default backend.
func Init(shape []int) (*Handle, error) {
	l, err := defaultLibrary()
	if err != nil {
		return nil, err
	}
	return l.Init(shape, l.cfg.DefaultBackend)
}

// InitWithBackend is Init with an explicit backend name.
func InitWithBackend(shape []int, backendName string) (*Handle, error) {
	l, err := defaultLibrary()
	if err != nil {
		return nil, err
	}
	return l.Init(shape, backendName)
}

// Init allocates a new root storage of the given shape on backendName.
func (l *Library) Init(shape []int, backendName string) (*Handle, error) {
	if backendName == "" {
		backendName = l.cfg.DefaultBackend
	}
	desc, err := l.backend.Get(backendName)
	if err != nil {
		return nil, errors.Wrap(err, "storage.Init")
	}
	lay, err := layout.New(shape, len(shape))
	if err != nil {
		return nil, errors.Wrap(err, "storage.Init")
	}
	data, err := desc.Table.Init(lay.Size)
	if err != nil {
		return nil, errors.Wrap(err, "storage.Init")
	}
	if err := desc.Table.Fill(data, lay, 0); err != nil {
		return nil, errors.Wrap(err, "storage.Init")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	h := &Handle{ID: uuid.New(), Backend: backendName, Layout: lay, data: data}
	l.storage.RegisterRoot(h.ID)
	l.handles[h.ID] = h
	logger.Log.Debug().Str("uuid", h.ID.String()).Str("backend", backendName).Msg("storage initialized")
	return h, nil
}

func (l *Library) lookup(id uuid.UUID) (*Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.handles[id]
	if !ok {
		return nil, errs.Newf(errs.STORAGE_HANDLE_UNINITIALIZED, "storage %s is not a live handle", id)
	}
	return h, nil
}

func (l *Library) backendFor(h *Handle) (backend.Descriptor, error) {
	return l.backend.Get(h.Backend)
}

func sameBackend(a, b *Handle) error {
	if a.Backend != b.Backend {
		return errs.Newf(errs.STORAGE_BACKEND_MISMATCH, "backend %q does not match %q", a.Backend, b.Backend)
	}
	return nil
}

// Get reads the scalar at idx (a full-rank or left-paddable index tuple)
// from h.
func Get(h *Handle, idx []int) (float32, error) {
	l, err := defaultLibrary()
	if err != nil {
		return 0, err
	}
	return l.Get(h, idx)
}

func (l *Library) Get(h *Handle, idx []int) (float32, error) {
	off, err := h.Layout.FlatIndex(idx)
	if err != nil {
		return 0, errors.Wrap(err, "storage.Get")
	}
	desc, err := l.backendFor(h)
	if err != nil {
		return 0, err
	}
	v, err := desc.Table.Get(h.data, off)
	if err != nil {
		return 0, errors.Wrap(err, "storage.Get")
	}
	return v, nil
}

// Set writes v to the scalar at idx in h.
func Set(h *Handle, idx []int, v float32) error {
	l, err := defaultLibrary()
	if err != nil {
		return err
	}
	return l.Set(h, idx, v)
}

func (l *Library) Set(h *Handle, idx []int, v float32) error {
	off, err := h.Layout.FlatIndex(idx)
	if err != nil {
		return errors.Wrap(err, "storage.Set")
	}
	desc, err := l.backendFor(h)
	if err != nil {
		return err
	}
	if err := desc.Table.Set(h.data, off, v); err != nil {
		return errors.Wrap(err, "storage.Set")
	}
	return nil
}

// View registers a new handle aliasing src's allocation through
// targetLayout, which must address only offsets src's own layout
// addresses.
func View(src *Handle, targetLayout layout.Layout) (*Handle, error) {
	l, err := defaultLibrary()
	if err != nil {
		return nil, err
	}
	return l.View(src, targetLayout)
}

func (l *Library) View(src *Handle, targetLayout layout.Layout) (*Handle, error) {
	if _, err := l.lookup(src.ID); err != nil {
		return nil, err
	}
	if !layout.IsContainedIn(src.Layout, targetLayout) {
		return nil, errs.New(errs.STORAGE_LAYOUT_SHAPE_MISMATCH, "view layout is not contained in source layout")
	}
	desc, err := l.backendFor(src)
	if err != nil {
		return nil, err
	}
	if !desc.Table.View(src.data, targetLayout) {
		return nil, errs.New(errs.INVALID_ARGUMENT, "backend refused to view this layout")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	h := &Handle{ID: uuid.New(), Backend: src.Backend, Layout: targetLayout, data: src.data}
	if err := l.storage.RegisterView(h.ID, src.ID); err != nil {
		return nil, err
	}
	l.handles[h.ID] = h
	logger.Log.Debug().Str("uuid", h.ID.String()).Str("parent", src.ID.String()).Msg("view registered")
	return h, nil
}

// Transpose returns a view of src with its trailing axes permuted.
func Transpose(src *Handle, perm []int) (*Handle, error) {
	l, err := defaultLibrary()
	if err != nil {
		return nil, err
	}
	return l.Transpose(src, perm)
}

func (l *Library) Transpose(src *Handle, perm []int) (*Handle, error) {
	newLayout, err := src.Layout.Transpose(perm, len(perm))
	if err != nil {
		return nil, errors.Wrap(err, "storage.Transpose")
	}
	return l.View(src, newLayout)
}

// Contiguous returns a storage guaranteed to be densely packed: src
// itself if it already is, otherwise a freshly allocated root copy.
func Contiguous(src *Handle) (*Handle, error) {
	l, err := defaultLibrary()
	if err != nil {
		return nil, err
	}
	return l.Contiguous(src)
}

func (l *Library) Contiguous(src *Handle) (*Handle, error) {
	if src.Layout.IsContiguous() {
		return src, nil
	}
	desc, err := l.backendFor(src)
	if err != nil {
		return nil, err
	}
	data, lay, err := desc.Table.Contiguous(src.data, src.Layout)
	if err != nil {
		return nil, errors.Wrap(err, "storage.Contiguous")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	h := &Handle{ID: uuid.New(), Backend: src.Backend, Layout: lay, data: data}
	l.storage.RegisterRoot(h.ID)
	l.handles[h.ID] = h
	logger.Log.Debug().Str("uuid", h.ID.String()).Str("source", src.ID.String()).Msg("materialized contiguous copy")
	return h, nil
}

// Reshape reinterprets src under newShape, falling back to a contiguous
// copy first when the reshape cannot be expressed as a stride rewrite.
func Reshape(src *Handle, newShape []int) (*Handle, error) {
	l, err := defaultLibrary()
	if err != nil {
		return nil, err
	}
	return l.Reshape(src, newShape)
}

func (l *Library) Reshape(src *Handle, newShape []int) (*Handle, error) {
	newLayout, err := src.Layout.Reshape(newShape, len(newShape))
	if err == nil {
		return l.View(src, newLayout)
	}
	if errs.CodeOf(err) != errs.NOT_IMPLEMENTED {
		return nil, errors.Wrap(err, "storage.Reshape")
	}

	packed, err := l.Contiguous(src)
	if err != nil {
		return nil, errors.Wrap(err, "storage.Reshape")
	}
	newLayout, err = packed.Layout.Reshape(newShape, len(newShape))
	if err != nil {
		return nil, errors.Wrap(err, "storage.Reshape")
	}
	return l.View(packed, newLayout)
}

// withScope opens a recording scope for the duration of fn, exempts fn's
// returned handle (if any) from the scope before closing it, and frees
// every other transient the scope tracked on every exit path, including
// fn's own errors.
func (l *Library) withScope(fn func() (*Handle, error)) (out *Handle, err error) {
	l.StartRecording()
	defer func() {
		if out != nil {
			l.storage.RecordRemove(out.ID)
		}
		if stopErr := l.StopRecording(); err == nil {
			err = stopErr
		}
	}()
	out, err = fn()
	return out, err
}

// copyBroadcast writes every element addressed by src's layout into the
// identically shaped dst, tolerating src's broadcast (stride-0) axes.
// Grounded on Reduce's own flat-index walk below; used to stage Y into a
// distinct Axpy output before accumulating in place.
func (l *Library) copyBroadcast(dst, src *Handle) error {
	srcDesc, err := l.backendFor(src)
	if err != nil {
		return err
	}
	dstDesc, err := l.backendFor(dst)
	if err != nil {
		return err
	}
	var idx [layout.TensorDim]int
	for i := 0; i < dst.Layout.Size; i++ {
		dstOff, srcOff := dst.Layout.Offset, src.Layout.Offset
		for d := 0; d < layout.TensorDim; d++ {
			dstOff += idx[d] * dst.Layout.Strides[d]
			srcOff += idx[d] * src.Layout.Strides[d]
		}
		v, err := srcDesc.Table.Get(src.data, srcOff)
		if err != nil {
			return err
		}
		if err := dstDesc.Table.Set(dst.data, dstOff, v); err != nil {
			return err
		}

		d := layout.TensorDim - 1
		for d >= 0 {
			idx[d]++
			if idx[d] < dst.Layout.Shape[d] {
				break
			}
			idx[d] = 0
			d--
		}
	}
	return nil
}

// Gemm computes dst = alpha*(lhs@rhs) + beta*dst (spec §4.5's gemm), after
// broadcasting lhs/rhs's leading batch dims to a common shape. dst may be
// nil, in which case a contiguous output of the broadcast+matmul shape is
// allocated; otherwise its shape must match exactly and it must already be
// contiguous.
func Gemm(alpha float32, lhs, rhs *Handle, beta float32, dst *Handle) (*Handle, error) {
	l, err := defaultLibrary()
	if err != nil {
		return nil, err
	}
	return l.Gemm(alpha, lhs, rhs, beta, dst)
}

func (l *Library) Gemm(alpha float32, lhs, rhs *Handle, beta float32, dst *Handle) (*Handle, error) {
	if err := sameBackend(lhs, rhs); err != nil {
		return nil, err
	}
	if dst != nil {
		if err := sameBackend(lhs, dst); err != nil {
			return nil, err
		}
	}

	return l.withScope(func() (*Handle, error) {
		lhsL, rhsL := lhs.Layout, rhs.Layout
		if err := layout.Broadcast(&lhsL, &rhsL, 0, layout.TensorDim-2); err != nil {
			return nil, errors.Wrap(err, "storage.Gemm")
		}
		lhsView, err := l.View(lhs, lhsL)
		if err != nil {
			return nil, errors.Wrap(err, "storage.Gemm")
		}
		rhsView, err := l.View(rhs, rhsL)
		if err != nil {
			return nil, errors.Wrap(err, "storage.Gemm")
		}

		const n = layout.TensorDim - 1
		expected := lhsView.Layout.Shape
		expected[n] = rhsView.Layout.Shape[n]

		r := dst
		if r == nil {
			r, err = l.Init(expected[:], lhs.Backend)
			if err != nil {
				return nil, errors.Wrap(err, "storage.Gemm")
			}
		} else {
			if r.Layout.Shape != expected {
				return nil, errs.New(errs.STORAGE_SHAPE_MISMATCH, "gemm destination shape does not match lhs@rhs")
			}
			if !r.Layout.IsContiguous() {
				return nil, errs.New(errs.NOT_IMPLEMENTED, "gemm destination must be contiguous")
			}
		}

		desc, err := l.backendFor(r)
		if err != nil {
			return nil, err
		}
		if err := desc.Table.Gemm(r.data, r.Layout, lhsView.data, lhsView.Layout, rhsView.data, rhsView.Layout, alpha, beta); err != nil {
			return nil, errors.Wrap(err, "storage.Gemm")
		}
		return r, nil
	})
}

// Axpy computes r = alpha*x + y (spec §4.5's axpy(α, X, Y, R)), after
// broadcasting x and y to a common shape across all axes. dst selects R:
// nil or dst.ID == y.ID means write in place into y (Open Question (1)'s
// resolved in-place semantics); any other handle is validated (matching
// shape, contiguous) and first staged with a copy of y before
// accumulating, leaving y untouched.
func Axpy(alpha float32, x, y *Handle, dst *Handle) (*Handle, error) {
	l, err := defaultLibrary()
	if err != nil {
		return nil, err
	}
	return l.Axpy(alpha, x, y, dst)
}

func (l *Library) Axpy(alpha float32, x, y *Handle, dst *Handle) (*Handle, error) {
	if err := sameBackend(x, y); err != nil {
		return nil, err
	}
	if dst != nil {
		if err := sameBackend(y, dst); err != nil {
			return nil, err
		}
	}

	return l.withScope(func() (*Handle, error) {
		xL, yL := x.Layout, y.Layout
		if err := layout.Broadcast(&xL, &yL, 0, layout.TensorDim); err != nil {
			return nil, errors.Wrap(err, "storage.Axpy")
		}
		xView, err := l.View(x, xL)
		if err != nil {
			return nil, errors.Wrap(err, "storage.Axpy")
		}

		inPlace := dst == nil || dst.ID == y.ID
		if inPlace {
			if y.Layout.Shape != yL.Shape {
				return nil, errs.New(errs.STORAGE_SHAPE_MISMATCH, "axpy in place requires y's shape to already match the broadcast result")
			}
			desc, err := l.backendFor(y)
			if err != nil {
				return nil, err
			}
			if err := desc.Table.Axpy(y.data, y.Layout, xView.data, xView.Layout, alpha); err != nil {
				return nil, errors.Wrap(err, "storage.Axpy")
			}
			return y, nil
		}

		r := dst
		if r == nil {
			var shape []int
			for i := 0; i < layout.TensorDim; i++ {
				shape = append(shape, yL.Shape[i])
			}
			r, err = l.Init(shape, y.Backend)
			if err != nil {
				return nil, errors.Wrap(err, "storage.Axpy")
			}
		} else {
			if r.Layout.Shape != yL.Shape {
				return nil, errs.New(errs.STORAGE_SHAPE_MISMATCH, "axpy destination shape does not match broadcast result")
			}
			if !r.Layout.IsContiguous() {
				return nil, errs.New(errs.NOT_IMPLEMENTED, "axpy destination must be contiguous")
			}
		}

		yView, err := l.View(y, yL)
		if err != nil {
			return nil, errors.Wrap(err, "storage.Axpy")
		}
		if err := l.copyBroadcast(r, yView); err != nil {
			return nil, errors.Wrap(err, "storage.Axpy")
		}

		desc, err := l.backendFor(r)
		if err != nil {
			return nil, err
		}
		if err := desc.Table.Axpy(r.data, r.Layout, xView.data, xView.Layout, alpha); err != nil {
			return nil, errors.Wrap(err, "storage.Axpy")
		}
		return r, nil
	})
}

// Reduce computes r = alpha*sum(src, mask) + beta*dst (spec §4.5's
// reduce(α, A, mask, ndim, β, R)), via direct Get/Set accumulation rather
// than the gemm-composed strategy the original implementation uses
// internally — an implementation-strategy choice, not an observable
// contract difference, since both produce the same reduced values. dst
// must be nil; reducing into a pre-existing R (so that beta actually
// scales something nonzero) is NOT_IMPLEMENTED, matching Open Question (2).
func Reduce(alpha float32, src *Handle, mask []int, beta float32, dst *Handle) (*Handle, error) {
	l, err := defaultLibrary()
	if err != nil {
		return nil, err
	}
	return l.Reduce(alpha, src, mask, beta, dst)
}

func (l *Library) Reduce(alpha float32, src *Handle, mask []int, beta float32, dst *Handle) (*Handle, error) {
	_ = beta // only meaningful against a pre-existing R, which is NOT_IMPLEMENTED below
	if dst != nil {
		return nil, errs.New(errs.NOT_IMPLEMENTED, "reduce into a pre-existing R is not implemented")
	}

	return l.withScope(func() (*Handle, error) {
		reducedLayout, err := layout.Reduce(src.Layout, mask, len(mask))
		if err != nil {
			return nil, errors.Wrap(err, "storage.Reduce")
		}

		var outShape []int
		for i := 0; i < layout.TensorDim; i++ {
			outShape = append(outShape, reducedLayout.Shape[i])
		}
		r, err := l.Init(trimLeadingOnes(outShape, layout.TensorDim-len(mask)), src.Backend)
		if err != nil {
			return nil, errors.Wrap(err, "storage.Reduce")
		}

		srcDesc, err := l.backendFor(src)
		if err != nil {
			return nil, err
		}
		dstDesc, err := l.backendFor(r)
		if err != nil {
			return nil, err
		}

		var idx [layout.TensorDim]int
		for {
			srcOff := src.Layout.Offset
			for i := 0; i < layout.TensorDim; i++ {
				srcOff += idx[i] * src.Layout.Strides[i]
			}
			dstOff := r.Layout.Offset
			for i := 0; i < layout.TensorDim; i++ {
				di := idx[i]
				if reducedLayout.Shape[i] == 1 {
					di = 0
				}
				dstOff += di * r.Layout.Strides[i]
			}

			v, err := srcDesc.Table.Get(src.data, srcOff)
			if err != nil {
				return nil, errors.Wrap(err, "storage.Reduce")
			}
			cur, err := dstDesc.Table.Get(r.data, dstOff)
			if err != nil {
				return nil, errors.Wrap(err, "storage.Reduce")
			}
			if err := dstDesc.Table.Set(r.data, dstOff, cur+alpha*v); err != nil {
				return nil, errors.Wrap(err, "storage.Reduce")
			}

			i := layout.TensorDim - 1
			for i >= 0 {
				idx[i]++
				if idx[i] < src.Layout.Shape[i] {
					break
				}
				idx[i] = 0
				i--
			}
			if i < 0 {
				break
			}
		}
		return r, nil
	})
}

// trimLeadingOnes strips the first n padding entries a TensorDim-length
// shape carries, recovering the logical shape Init expects.
func trimLeadingOnes(shape []int, n int) []int {
	if n < 0 || n > len(shape) {
		return shape
	}
	return shape[n:]
}

// Free releases h. If h is the last handle aliasing its bucket, the
// underlying backend allocation is freed too.
func Free(h *Handle) error {
	l, err := defaultLibrary()
	if err != nil {
		return err
	}
	return l.Free(h)
}

func (l *Library) Free(h *Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	drop, err := l.storage.Deregister(h.ID)
	if err != nil {
		return errors.Wrap(err, "storage.Free")
	}
	delete(l.handles, h.ID)
	if drop {
		desc, err := l.backend.Get(h.Backend)
		if err != nil {
			return errors.Wrap(err, "storage.Free")
		}
		if err := desc.Table.Free(h.data); err != nil {
			return errors.Wrap(err, "storage.Free")
		}
	}
	logger.Log.Debug().Str("uuid", h.ID.String()).Bool("freed_buffer", drop).Msg("storage freed")
	return nil
}

// StartRecording begins a new recording scope on the default library.
func StartRecording() error {
	l, err := defaultLibrary()
	if err != nil {
		return err
	}
	l.StartRecording()
	return nil
}

// StartRecording begins a new recording scope on l.
func (l *Library) StartRecording() {
	l.storage.StartRecording()
}

// StopRecording ends the innermost recording scope, freeing every handle
// that was allocated (and not already freed) during its lifetime.
func StopRecording() error {
	l, err := defaultLibrary()
	if err != nil {
		return err
	}
	return l.StopRecording()
}

// StopRecording frees every storage the innermost scope still tracks, in
// registration order, continuing past individual free failures and
// returning the first one encountered.
func (l *Library) StopRecording() error {
	tracked, err := l.storage.StopRecording()
	if err != nil {
		return errors.Wrap(err, "storage.StopRecording")
	}
	var firstErr error
	for _, id := range tracked {
		l.mu.Lock()
		h, ok := l.handles[id]
		l.mu.Unlock()
		if !ok {
			continue
		}
		if err := l.Free(h); err != nil {
			logger.Log.Error().Err(err).Str("uuid", id.String()).Msg("failed to free storage at end of recording scope")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Print writes a human-readable dump of h's elements to w, via the
// owning backend's Print kernel.
func Print(w io.Writer, h *Handle) error {
	l, err := defaultLibrary()
	if err != nil {
		return err
	}
	return l.Print(w, h)
}

func (l *Library) Print(w io.Writer, h *Handle) error {
	desc, err := l.backendFor(h)
	if err != nil {
		return err
	}
	if err := desc.Table.Print(w, h.data, h.Layout); err != nil {
		return errors.Wrap(err, "storage.Print")
	}
	return nil
}

// Stats reports the default library's registry occupancy.
func Stats() (registry.Stats, error) {
	l, err := defaultLibrary()
	if err != nil {
		return registry.Stats{}, err
	}
	return l.Stats(), nil
}

// Stats reports l's registry occupancy.
func (l *Library) Stats() registry.Stats {
	return l.storage.Stats()
}
