// Package gorgoniaf32 implements a second backend, "gorgonia_f32", whose
// handle wraps a gorgonia.org/tensor.Dense instead of a bare Go slice —
// proof that the backend protocol in package backend is genuinely
// pluggable, grounded on the teacher's own tensor.Dense wrapper
// (pkg/core/math/tensor/gorgonia/tensor.go).
//
// The layout geometry (shape/strides/offset/broadcast) is still entirely
// owned by package layout; tensor.Dense is used purely as the backing
// allocation and element store, addressed through its flat []float32
// buffer the same way cpuf32 addresses its own slice.
package gorgoniaf32

import (
	"fmt"
	"io"

	gtensor "gorgonia.org/tensor"

	"github.com/ndoll1998/cgrad/pkg/core/storage/backend"
	"github.com/ndoll1998/cgrad/pkg/core/storage/errs"
	"github.com/ndoll1998/cgrad/pkg/core/storage/layout"
)

// Name is the identifier this backend registers itself under.
const Name = "gorgonia_f32"

type handle struct {
	dense *gtensor.Dense
}

// Descriptor builds the backend.Descriptor for gorgonia_f32.
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
	if !ok || hh == nil || hh.dense == nil {
		return nil, errs.New(errs.STORAGE_HANDLE_UNINITIALIZED, "handle is not a gorgonia_f32 handle")
	}
	return hh, nil
}

func data(hh *handle) []float32 {
	return hh.dense.Data().([]float32)
}

func initHandle(size int) (backend.Handle, error) {
	if size < 0 {
		return nil, errs.Newf(errs.INVALID_ARGUMENT, "negative size %d", size)
	}
	if size == 0 {
		size = 1
	}
	d := gtensor.New(gtensor.WithShape(size), gtensor.Of(gtensor.Float32))
	return &handle{dense: d}, nil
}

func freeHandle(h backend.Handle) error {
	hh, err := asHandle(h)
	if err != nil {
		return err
	}
	hh.dense = nil
	return nil
}

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
	buf := data(hh)
	var outOfRange error
	forEachOffset(l, func(off int) {
		if outOfRange != nil {
			return
		}
		if off < 0 || off >= len(buf) {
			outOfRange = errs.Newf(errs.STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS, "fill offset %d out of bounds (len %d)", off, len(buf))
			return
		}
		buf[off] = v
	})
	return outOfRange
}

func get(h backend.Handle, off int) (float32, error) {
	hh, err := asHandle(h)
	if err != nil {
		return 0, err
	}
	buf := data(hh)
	if off < 0 || off >= len(buf) {
		return 0, errs.Newf(errs.STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS, "get offset %d out of bounds (len %d)", off, len(buf))
	}
	return buf[off], nil
}

func set(h backend.Handle, off int, v float32) error {
	hh, err := asHandle(h)
	if err != nil {
		return err
	}
	buf := data(hh)
	if off < 0 || off >= len(buf) {
		return errs.Newf(errs.STORAGE_LAYOUT_INDEX_OUT_OF_BOUNDS, "set offset %d out of bounds (len %d)", off, len(buf))
	}
	buf[off] = v
	return nil
}

func contiguous(src backend.Handle, srcL layout.Layout) (backend.Handle, layout.Layout, error) {
	hh, err := asHandle(src)
	if err != nil {
		return nil, layout.Layout{}, err
	}
	srcBuf := data(hh)

	dstH, err := initHandle(srcL.Size)
	if err != nil {
		return nil, layout.Layout{}, err
	}
	dstBuf := data(dstH.(*handle))

	pos := 0
	forEachOffset(srcL, func(off int) {
		dstBuf[pos] = srcBuf[off]
		pos++
	})

	var shape []int
	for i := 0; i < layout.TensorDim; i++ {
		shape = append(shape, srcL.Shape[i])
	}
	dstL, err := layout.New(shape, layout.TensorDim)
	if err != nil {
		return nil, layout.Layout{}, err
	}
	return dstH, dstL, nil
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
	dBuf, lBuf, rBuf := data(dh), data(lh), data(rh)

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
					acc += lBuf[lRow+k*lK] * rBuf[rCol+k*rK]
				}
				dOff := dBase + m*dM + n*dN
				dBuf[dOff] = alpha*acc + beta*dBuf[dOff]
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
	yBuf, xBuf := data(yh), data(xh)

	var idx [layout.TensorDim]int
	for i := 0; i < yL.Size; i++ {
		yOff := yL.Offset + i
		xOff := xL.Offset
		for d := 0; d < layout.TensorDim; d++ {
			xOff += idx[d] * xL.Strides[d]
		}
		yBuf[yOff] += alpha * xBuf[xOff]

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
	buf := data(hh)
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
		if _, e := fmt.Fprintf(w, "%g", buf[off]); e != nil {
			werr = e
		}
	})
	if werr != nil {
		return werr
	}
	_, werr = fmt.Fprintln(w)
	return werr
}
