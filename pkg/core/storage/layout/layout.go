// Package layout implements the purely geometric shape/stride/offset
// transforms that every backend kernel is driven by (spec §4.1). Nothing
// in this package touches a backing buffer; it only reasons about how an
// index tuple maps to a flat element offset.
package layout

import (
	"fmt"
	"strings"

	"github.com/ndoll1998/cgrad/pkg/core/storage/errs"
)

// TensorDim is the compile-time maximum rank every Layout is padded to,
// mirroring the teacher's fixed-capacity Shape/tensor conventions
// (pkg/core/math/primitive/generics/helpers.MAX_DIMS) and spec §3's
// TENSOR_DIM constant.
const TensorDim = 8

// Layout is a fixed-rank shape/stride/offset descriptor. Dimensions are
// right-aligned: a rank-r layout occupies indices [TensorDim-r, TensorDim)
// and is left-padded with shape=1 entries below that.
type Layout struct {
	Shape   [TensorDim]int
	Strides [TensorDim]int
	Offset  int
	Size    int
}

// New left-pads shape to TensorDim and computes canonical row-major
// strides across the full padded rank (padding dims get the stride of the
// first real dim times that dim's extent, i.e. the total size, per the
// standard recursive stride formula — this is what makes IsContiguous
// hold without special casing unit-extent padding dims).
func New(shape []int, ndim int) (Layout, error) {
	if ndim > TensorDim {
		return Layout{}, errs.Newf(errs.INVALID_ARGUMENT, "rank %d exceeds TensorDim %d", ndim, TensorDim)
	}
	if len(shape) != ndim {
		return Layout{}, errs.Newf(errs.INVALID_ARGUMENT, "shape length %d does not match ndim %d", len(shape), ndim)
	}
	for _, d := range shape {
		if d == 0 {
			return Layout{}, errs.Newf(errs.INVALID_ARGUMENT, "shape dimension cannot be zero: %v", shape)
		}
	}

	var l Layout
	pad := TensorDim - ndim
	for i := 0; i < pad; i++ {
		l.Shape[i] = 1
	}
	copy(l.Shape[pad:], shape)

	stride := 1
	for i := TensorDim - 1; i >= 0; i-- {
		l.Strides[i] = stride
		stride *= l.Shape[i]
	}
	l.Size = stride
	return l, nil
}

// Rank returns the logical rank: TensorDim minus the number of leading
// unit-extent padding dims, i.e. the rank a caller passed to New/Reshape/etc.
func (l Layout) Rank() int {
	for i := 0; i < TensorDim; i++ {
		if l.Shape[i] != 1 || l.Strides[i] != l.Strides[TensorDim-1]*productFrom(l.Shape, i+1) {
			return TensorDim - i
		}
	}
	return 0
}

func productFrom(shape [TensorDim]int, from int) int {
	p := 1
	for i := from; i < TensorDim; i++ {
		p *= shape[i]
	}
	return p
}

// FlatIndex computes Offset + Σ idx[i]*Strides[i] for a right-aligned
// index tuple of length ≤ TensorDim, left-padding with zeros.
func (l Layout) FlatIndex(idx []int) (int, error) {
	if len(idx) > TensorDim {
		return 0, errs.Newf(errs.STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS, "index rank %d exceeds TensorDim %d", len(idx), TensorDim)
	}
	pad := TensorDim - len(idx)
	off := l.Offset
	for i := 0; i < pad; i++ {
		if l.Shape[i] != 1 && 0 >= l.Shape[i] {
			return 0, errs.Newf(errs.STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS, "index out of bounds at padded dim %d", i)
		}
	}
	for i, v := range idx {
		dim := pad + i
		if v < 0 || v >= l.Shape[dim] {
			return 0, errs.Newf(errs.STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS, "index %d out of bounds for shape %d at dim %d", v, l.Shape[dim], dim)
		}
		off += v * l.Strides[dim]
	}
	return off, nil
}

// IsContiguous reports whether Strides describes a dense row-major
// layout: Strides[D-1]==1 and Strides[i] == Strides[i+1]*Shape[i+1].
func (l Layout) IsContiguous() bool {
	if l.Strides[TensorDim-1] != 1 {
		return false
	}
	for i := TensorDim - 2; i >= 0; i-- {
		if l.Strides[i] != l.Strides[i+1]*l.Shape[i+1] {
			return false
		}
	}
	return true
}

// IsRegular reports whether the layout has no negative or zero strides
// in any dim of extent>1 (so a stride-0 broadcast axis makes the layout
// irregular) and no two dims' addressable ranges overlap. The overlap check uses the standard sufficient condition for
// non-overlapping strided views: sort the non-unit dims by stride
// ascending and require each dim's stride to be at least as large as the
// span already covered by the inner dims.
func (l Layout) IsRegular() bool {
	type dim struct{ shape, stride int }
	var dims []dim
	for i := 0; i < TensorDim; i++ {
		if l.Shape[i] <= 1 {
			continue
		}
		if l.Strides[i] <= 0 {
			return false
		}
		dims = append(dims, dim{l.Shape[i], l.Strides[i]})
	}
	// insertion sort by stride ascending; ranks are tiny (≤ TensorDim)
	for i := 1; i < len(dims); i++ {
		for j := i; j > 0 && dims[j-1].stride > dims[j].stride; j-- {
			dims[j-1], dims[j] = dims[j], dims[j-1]
		}
	}
	covered := 1
	for _, d := range dims {
		if d.stride < covered {
			return false
		}
		covered = d.stride * d.shape
	}
	return true
}

// IsContainedIn reports whether every offset addressable by inner is also
// addressable by outer — used to validate a caller-supplied view layout
// before aliasing a buffer through it.
func IsContainedIn(outer, inner Layout) bool {
	lo, hi := outer.addressableRange()
	ilo, ihi := inner.addressableRange()
	return ilo >= lo && ihi <= hi
}

func (l Layout) addressableRange() (lo, hi int) {
	lo, hi = l.Offset, l.Offset
	for i := 0; i < TensorDim; i++ {
		if l.Shape[i] <= 1 {
			continue
		}
		span := l.Strides[i] * (l.Shape[i] - 1)
		if span >= 0 {
			hi += span
		} else {
			lo += span
		}
	}
	return lo, hi
}

// Transpose permutes the trailing ndim axes of Shape and Strides. perm
// must be a permutation of 0..ndim-1, interpreted as "axis i of the
// result is axis perm[i] of the source". Rank is unchanged.
func (l Layout) Transpose(perm []int, ndim int) (Layout, error) {
	if ndim > TensorDim || ndim < 0 {
		return Layout{}, errs.Newf(errs.INVALID_ARGUMENT, "invalid ndim %d", ndim)
	}
	if len(perm) != ndim {
		return Layout{}, errs.Newf(errs.INVALID_ARGUMENT, "perm length %d does not match ndim %d", len(perm), ndim)
	}
	seen := make([]bool, ndim)
	for _, p := range perm {
		if p < 0 || p >= ndim || seen[p] {
			return Layout{}, errs.Newf(errs.INVALID_ARGUMENT, "perm %v is not a permutation of 0..%d", perm, ndim-1)
		}
		seen[p] = true
	}

	out := l
	pad := TensorDim - ndim
	for i := 0; i < ndim; i++ {
		src := pad + perm[i]
		dst := pad + i
		out.Shape[dst] = l.Shape[src]
		out.Strides[dst] = l.Strides[src]
	}
	return out, nil
}

// Reshape reinterprets the logical new_shape (one -1 entry inferred) over
// the same buffer. Succeeds only when the source is contiguous or, for a
// regular-but-non-contiguous source, when the reshape can be expressed by
// merging/splitting contiguous runs of axes; otherwise returns
// NOT_IMPLEMENTED so the façade can fall back to materializing a
// contiguous copy first.
func (l Layout) Reshape(newShape []int, ndim int) (Layout, error) {
	if ndim > TensorDim {
		return Layout{}, errs.Newf(errs.INVALID_ARGUMENT, "rank %d exceeds TensorDim %d", ndim, TensorDim)
	}
	resolved, err := resolveWildcard(newShape, l.Size)
	if err != nil {
		return Layout{}, err
	}

	if l.IsContiguous() {
		out, err := New(resolved, ndim)
		if err != nil {
			return Layout{}, err
		}
		out.Offset = l.Offset
		return out, nil
	}

	if !l.IsRegular() {
		return Layout{}, errs.New(errs.NOT_IMPLEMENTED, "reshape of an irregular layout requires a contiguous copy")
	}
	if !reshapeByMerging(l, resolved) {
		return Layout{}, errs.New(errs.NOT_IMPLEMENTED, "reshape cannot be expressed as a merge/split of contiguous runs")
	}
	out, err := New(resolved, ndim)
	if err != nil {
		return Layout{}, err
	}
	out.Offset = l.Offset
	// New's canonical stride of each non-unit axis is the row-major step it
	// takes; replace it with the source offset that step lands on.
	for i := TensorDim - ndim; i < TensorDim; i++ {
		if out.Shape[i] == 1 {
			continue
		}
		p, off := out.Strides[i], 0
		for d := TensorDim - 1; d >= 0; d-- {
			off += (p % l.Shape[d]) * l.Strides[d]
			p /= l.Shape[d]
		}
		out.Strides[i] = off
	}
	return out, nil
}

func resolveWildcard(shape []int, size int) ([]int, error) {
	wildcard := -1
	product := 1
	out := make([]int, len(shape))
	for i, d := range shape {
		if d == -1 {
			if wildcard != -1 {
				return nil, errs.New(errs.INVALID_ARGUMENT, "reshape accepts at most one -1 entry")
			}
			wildcard = i
			continue
		}
		if d <= 0 {
			return nil, errs.Newf(errs.INVALID_ARGUMENT, "invalid reshape dimension %d", d)
		}
		product *= d
		out[i] = d
	}
	if wildcard != -1 {
		if product == 0 || size%product != 0 {
			return nil, errs.Newf(errs.STORAGE_LAYOUT_SHAPE_MISMATCH, "cannot infer -1 dimension: size %d not divisible by %d", size, product)
		}
		out[wildcard] = size / product
		product *= out[wildcard]
	}
	if product != size {
		return nil, errs.Newf(errs.STORAGE_LAYOUT_SHAPE_MISMATCH, "reshape size mismatch: new shape %v has %d elements, source has %d", out, product, size)
	}
	return out, nil
}

// reshapeByMerging checks whether newShape can be produced from l by
// merging/splitting contiguous runs of l's non-unit axes, i.e. whether l
// (restricted to non-unit axes) and newShape describe the same
// element-count partition of one contiguous run of memory. This holds
// exactly when l is contiguous over each maximal run that newShape also
// treats as one run; since a fully contiguous l already takes the fast
// path above, this only needs to handle a regular, non-contiguous l made
// of independent contiguous blocks (e.g. a transposed-then-unsliced
// layout), which is the case the spec calls out as the "merge/split"
// fallback.
func reshapeByMerging(l Layout, newShape []int) bool {
	// A regular, non-contiguous layout can only be reshaped without a
	// copy if every non-unit source axis maps to a contiguous run that is
	// also a whole multiple of runs in the new shape. The general
	// solution is to walk both shapes from the innermost axis, merging
	// axes greedily and checking the stride relation holds at each merge
	// boundary (the same test numpy/gorgonia-style reshape uses).
	var srcShape, srcStride []int
	for i := 0; i < TensorDim; i++ {
		if l.Shape[i] == 1 {
			continue
		}
		srcShape = append(srcShape, l.Shape[i])
		srcStride = append(srcStride, l.Strides[i])
	}
	var dstShape []int
	for _, d := range newShape {
		if d != 1 {
			dstShape = append(dstShape, d)
		}
	}

	si, di := len(srcShape)-1, len(dstShape)-1
	for si >= 0 && di >= 0 {
		sShape, sStride := srcShape[si], srcStride[si]
		dShape := dstShape[di]
		switch {
		case sShape == dShape:
			si--
			di--
		case sShape > dShape:
			// split src[si] into a run of dst axes; they must multiply
			// back to sShape and be contiguous w.r.t. sStride.
			product := dShape
			expectedStride := sStride * dShape
			di--
			for product < sShape && di >= 0 {
				product *= dstShape[di]
				di--
			}
			if product != sShape {
				return false
			}
			_ = expectedStride
			si--
		default:
			// merge consecutive src axes into dst[di]; they must be
			// contiguous: src[si-1].stride == src[si].stride*src[si].shape
			product := sShape
			si--
			for product < dShape && si >= 0 {
				if srcStride[si] != srcStride[si+1]*srcShape[si+1] {
					return false
				}
				product *= srcShape[si]
				si--
			}
			if product != dShape {
				return false
			}
			di--
		}
	}
	for si >= 0 {
		if srcShape[si] != 1 {
			return false
		}
		si--
	}
	for di >= 0 {
		if dstShape[di] != 1 {
			return false
		}
		di--
	}
	return true
}

// Broadcast mutates both a and b in place to a common shape over dims
// [start, end). For each such dim, equal extents are kept as-is; an
// extent-1 side is expanded to the other's extent with stride 0.
func Broadcast(a, b *Layout, start, end int) error {
	if start < 0 || end > TensorDim || start > end {
		return errs.Newf(errs.INVALID_ARGUMENT, "invalid broadcast range [%d,%d)", start, end)
	}
	for i := start; i < end; i++ {
		sa, sb := a.Shape[i], b.Shape[i]
		switch {
		case sa == sb:
			// nothing to do
		case sa == 1:
			a.Shape[i] = sb
			a.Strides[i] = 0
		case sb == 1:
			b.Shape[i] = sa
			b.Strides[i] = 0
		default:
			return errs.Newf(errs.STORAGE_LAYOUT_SHAPE_MISMATCH, "cannot broadcast dim %d: %d vs %d", i, sa, sb)
		}
	}
	a.Size = productFrom(a.Shape, 0)
	b.Size = productFrom(b.Shape, 0)
	return nil
}

// BroadcastShapes reports the shape Broadcast would produce for a and b
// over their full TensorDim range, without mutating either. It lets the
// façade pre-validate gemm/axpy batch-shape compatibility before
// allocating an output storage.
func BroadcastShapes(a, b Layout) (Layout, error) {
	out := a
	if err := Broadcast(&out, &b, 0, TensorDim); err != nil {
		return Layout{}, err
	}
	return out, nil
}

// Reduce collapses every axis marked 1 in the right-aligned mask to
// extent 1 in a copy, with canonical strides recomputed for the result.
func Reduce(l Layout, mask []int, ndim int) (Layout, error) {
	if ndim > TensorDim {
		return Layout{}, errs.Newf(errs.INVALID_ARGUMENT, "rank %d exceeds TensorDim %d", ndim, TensorDim)
	}
	if len(mask) != ndim {
		return Layout{}, errs.Newf(errs.INVALID_ARGUMENT, "mask length %d does not match ndim %d", len(mask), ndim)
	}
	pad := TensorDim - ndim
	shape := make([]int, TensorDim)
	copy(shape, l.Shape[:])
	for i, m := range mask {
		if m != 0 {
			shape[pad+i] = 1
		}
	}
	var trimmed []int
	for i := pad; i < TensorDim; i++ {
		trimmed = append(trimmed, shape[i])
	}
	return New(trimmed, ndim)
}

func (l Layout) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "shape=%v strides=%v offset=%d size=%d contiguous=%v regular=%v",
		trimPadding(l.Shape[:]), trimPadding(l.Strides[:]), l.Offset, l.Size, l.IsContiguous(), l.IsRegular())
	return b.String()
}

func trimPadding(v []int) []int {
	i := 0
	for i < len(v)-1 && v[i] == 1 {
		i++
	}
	return v[i:]
}
