// Package cpuf32 implements the built-in "cpu_f32" backend: a flat
// []float32 buffer driven entirely by layout.Layout geometry, grounded on
// the teacher's row-major BLAS-style kernels
// (pkg/core/math/primitive/fp32/level3.go) and batched matmul iteration
// (pkg/core/math/tensor_linalg.go).
package cpuf32

import (
	"fmt"
	"io"

	"github.com/chewxy/math32"

	"github.com/ndoll1998/cgrad/pkg/core/storage/backend"
	"github.com/ndoll1998/cgrad/pkg/core/storage/errs"
	"github.com/ndoll1998/cgrad/pkg/core/storage/layout"
)

// Name is the identifier this backend registers itself under.
const Name = "cpu_f32"

type handle struct {
	data []float32
}

// Descriptor builds the backend.Descriptor for cpu_f32, ready to pass to
// a backend.Registry's Register method.
func Descriptor() backend.Descriptor {
	return backend.Descriptor{
		Name: Name,
		Table: backend.KernelTable{
			Init:       initHandle,
			Free:       freeHandle,
			Fill:       fill,
			Get:        get,
			Set:        set,
			Gemm:       gemm,
			Axpy:       axpy,
			View:       func(backend.Handle, layout.Layout) bool { return true },
			Contiguous: contiguous,
			GetLayout:  func(backend.Handle) (layout.Layout, bool) { return layout.Layout{}, false },
			Print:      print,
		},
	}
}

func asHandle(h backend.Handle) (*handle, error) {
	hh, ok := h.(*handle)
	if !ok || hh == nil {
		return nil, errs.New(errs.STORAGE_HANDLE_UNINITIALIZED, "handle is not a cpu_f32 handle")
	}
	return hh, nil
}

func initHandle(size int) (backend.Handle, error) {
	if size < 0 {
		return nil, errs.Newf(errs.INVALID_ARGUMENT, "negative size %d", size)
	}
	return &handle{data: make([]float32, size)}, nil
}

func freeHandle(h backend.Handle) error {
	hh, err := asHandle(h)
	if err != nil {
		return err
	}
	hh.data = nil
	return nil
}

// forEachOffset iterates the Cartesian product of l's full TensorDim shape,
// invoking f with the flat offset of each element, row-major order.
func forEachOffset(l layout.Layout, f func(off int)) {
	var idx [layout.TensorDim]int
	for {
		off := l.Offset
		for i := 0; i < layout.TensorDim; i++ {
			off += idx[i] * l.Strides[i]
		}
		f(off)

		i := layout.TensorDim - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < l.Shape[i] {
				break
			}
			idx[i] = 0
			i--
		}
		if i < 0 {
			return
		}
	}
}

func fill(h backend.Handle, l layout.Layout, v float32) error {
	hh, err := asHandle(h)
	if err != nil {
		return err
	}
	var outOfRange error
	forEachOffset(l, func(off int) {
		if outOfRange != nil {
			return
		}
		if off < 0 || off >= len(hh.data) {
			outOfRange = errs.Newf(errs.STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS, "fill offset %d out of bounds (len %d)", off, len(hh.data))
			return
		}
		hh.data[off] = v
	})
	return outOfRange
}

func get(h backend.Handle, off int) (float32, error) {
	hh, err := asHandle(h)
	if err != nil {
		return 0, err
	}
	if off < 0 || off >= len(hh.data) {
		return 0, errs.Newf(errs.STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS, "get offset %d out of bounds (len %d)", off, len(hh.data))
	}
	return hh.data[off], nil
}

func set(h backend.Handle, off int, v float32) error {
	hh, err := asHandle(h)
	if err != nil {
		return err
	}
	if off < 0 || off >= len(hh.data) {
		return errs.Newf(errs.STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS, "set offset %d out of bounds (len %d)", off, len(hh.data))
	}
	hh.data[off] = v
	return nil
}

// contiguousRun returns the number of trailing dims that form one dense
// block (canonical stride relative to the innermost dim) and the length
// of that block in elements, so the copy loop can bulk-copy it with the
// slice builtin instead of iterating element by element.
func contiguousRun(l layout.Layout) (runDims, blockLen int) {
	blockLen = 1
	runDims = 0
	expected := 1
	for i := layout.TensorDim - 1; i >= 0; i-- {
		if l.Shape[i] == 1 {
			runDims++
			continue
		}
		if l.Strides[i] != expected {
			break
		}
		blockLen *= l.Shape[i]
		expected *= l.Shape[i]
		runDims++
	}
	return runDims, blockLen
}

func contiguous(src backend.Handle, srcL layout.Layout) (backend.Handle, layout.Layout, error) {
	hh, err := asHandle(src)
	if err != nil {
		return nil, layout.Layout{}, err
	}
	dst := &handle{data: make([]float32, srcL.Size)}

	runDims, blockLen := contiguousRun(srcL)
	outerDims := layout.TensorDim - runDims

	pos := 0
	var idx [layout.TensorDim]int
	if outerDims == 0 {
		base := srcL.Offset
		copy(dst.data, hh.data[base:base+blockLen])
	} else {
		for {
			base := srcL.Offset
			for i := 0; i < outerDims; i++ {
				base += idx[i] * srcL.Strides[i]
			}
			copy(dst.data[pos:pos+blockLen], hh.data[base:base+blockLen])
			pos += blockLen

			i := outerDims - 1
			for i >= 0 {
				idx[i]++
				if idx[i] < srcL.Shape[i] {
					break
				}
				idx[i] = 0
				i--
			}
			if i < 0 {
				break
			}
		}
	}

	var shape []int
	for i := 0; i < layout.TensorDim; i++ {
		shape = append(shape, srcL.Shape[i])
	}
	dstL, err := layout.New(shape, layout.TensorDim)
	if err != nil {
		return nil, layout.Layout{}, err
	}
	return dst, dstL, nil
}

func batchOffset(l layout.Layout, idx [layout.TensorDim - 2]int) int {
	off := l.Offset
	for i := 0; i < layout.TensorDim-2; i++ {
		off += idx[i] * l.Strides[i]
	}
	return off
}

func gemm(dst backend.Handle, dstL layout.Layout, lhs backend.Handle, lhsL layout.Layout, rhs backend.Handle, rhsL layout.Layout, alpha, beta float32) error {
	dh, err := asHandle(dst)
	if err != nil {
		return err
	}
	lh, err := asHandle(lhs)
	if err != nil {
		return err
	}
	rh, err := asHandle(rhs)
	if err != nil {
		return err
	}

	const md, nd, kd = layout.TensorDim - 2, layout.TensorDim - 1, layout.TensorDim - 1
	M := dstL.Shape[md]
	N := dstL.Shape[nd]
	K := lhsL.Shape[kd]
	if lhsL.Shape[md] != M || rhsL.Shape[nd] != N || rhsL.Shape[layout.TensorDim-2] != K {
		return errs.Newf(errs.STORAGE_SHAPE_MISMATCH, "gemm dimension mismatch: lhs=%v rhs=%v dst=%v",
			lhsL.Shape, rhsL.Shape, dstL.Shape)
	}

	dM, dN := dstL.Strides[md], dstL.Strides[nd]
	lM, lK := lhsL.Strides[md], lhsL.Strides[kd]
	rK, rN := rhsL.Strides[layout.TensorDim-2], rhsL.Strides[nd]

	// beta==0 skips the read-modify-write on dst entirely, matching the
	// teacher's Gemm_NN fast path for a freshly zeroed output.
	betaIsZero := math32.Abs(beta) == 0

	var idx [layout.TensorDim - 2]int
	for {
		dBase := batchOffset(dstL, idx)
		lBase := batchOffset(lhsL, idx)
		rBase := batchOffset(rhsL, idx)

		for m := 0; m < M; m++ {
			for n := 0; n < N; n++ {
				var acc float32
				lRow := lBase + m*lM
				rCol := rBase + n*rN
				for k := 0; k < K; k++ {
					acc += lh.data[lRow+k*lK] * rh.data[rCol+k*rK]
				}
				dOff := dBase + m*dM + n*dN
				if betaIsZero {
					dh.data[dOff] = alpha * acc
				} else {
					dh.data[dOff] = alpha*acc + beta*dh.data[dOff]
				}
			}
		}

		i := layout.TensorDim - 3
		for i >= 0 {
			idx[i]++
			if idx[i] < dstL.Shape[i] {
				break
			}
			idx[i] = 0
			i--
		}
		if i < 0 {
			break
		}
	}
	return nil
}

func axpy(y backend.Handle, yL layout.Layout, x backend.Handle, xL layout.Layout, alpha float32) error {
	if !yL.IsContiguous() {
		return errs.New(errs.STORAGE_LAYOUT_NOT_CONTIGUOUS, "axpy destination must be contiguous")
	}
	yh, err := asHandle(y)
	if err != nil {
		return err
	}
	xh, err := asHandle(x)
	if err != nil {
		return err
	}

	alphaIsOne := math32.Abs(alpha-1) == 0

	var idx [layout.TensorDim]int
	for i := 0; i < yL.Size; i++ {
		yOff := yL.Offset + i
		xOff := xL.Offset
		for d := 0; d < layout.TensorDim; d++ {
			xOff += idx[d] * xL.Strides[d]
		}
		if alphaIsOne {
			yh.data[yOff] += xh.data[xOff]
		} else {
			yh.data[yOff] += alpha * xh.data[xOff]
		}

		d := layout.TensorDim - 1
		for d >= 0 {
			idx[d]++
			if idx[d] < yL.Shape[d] {
				break
			}
			idx[d] = 0
			d--
		}
	}
	return nil
}

func print(w io.Writer, h backend.Handle, l layout.Layout) error {
	hh, err := asHandle(h)
	if err != nil {
		return err
	}
	var werr error
	first := true
	forEachOffset(l, func(off int) {
		if werr != nil {
			return
		}
		if !first {
			if _, e := fmt.Fprint(w, " "); e != nil {
				werr = e
				return
			}
		}
		first = false
		if _, e := fmt.Fprintf(w, "%g", hh.data[off]); e != nil {
			werr = e
		}
	})
	if werr != nil {
		return werr
	}
	_, werr = fmt.Fprintln(w)
	return werr
}
