package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndoll1998/cgrad/pkg/core/storage/errs"
)

func TestNewPadsAndComputesCanonicalStrides(t *testing.T) {
	l, err := New([]int{2, 3}, 2)
	require.NoError(t, err)

	assert.Equal(t, 6, l.Size)
	assert.True(t, l.IsContiguous())
	assert.True(t, l.IsRegular())
	assert.Equal(t, 1, l.Strides[TensorDim-1])
	assert.Equal(t, 3, l.Strides[TensorDim-2])
}

func TestNewRejectsZeroDim(t *testing.T) {
	_, err := New([]int{2, 0, 3}, 3)
	assert.Error(t, err)
}

func TestFlatIndex(t *testing.T) {
	l, err := New([]int{2, 3}, 2)
	require.NoError(t, err)

	off, err := l.FlatIndex([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 5, off)

	_, err = l.FlatIndex([]int{2, 0})
	assert.Error(t, err)
}

func TestFlatIndexWithOffset(t *testing.T) {
	l, err := New([]int{2, 3}, 2)
	require.NoError(t, err)
	l.Offset = 10

	off, err := l.FlatIndex([]int{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 10, off)
}

func TestIsContiguousDetectsTransposedAsNonContiguous(t *testing.T) {
	l, err := New([]int{2, 3}, 2)
	require.NoError(t, err)

	transposed, err := l.Transpose([]int{1, 0}, 2)
	require.NoError(t, err)

	assert.False(t, transposed.IsContiguous())
	assert.True(t, transposed.IsRegular())
}

func TestTransposeRoundTrip(t *testing.T) {
	l, err := New([]int{2, 3, 4}, 3)
	require.NoError(t, err)

	perm := []int{2, 0, 1}
	transposed, err := l.Transpose(perm, 3)
	require.NoError(t, err)

	inverse := make([]int, 3)
	for i, p := range perm {
		inverse[p] = i
	}
	back, err := transposed.Transpose(inverse, 3)
	require.NoError(t, err)
	assert.Equal(t, l, back)
}

func TestTransposeRejectsInvalidPermutation(t *testing.T) {
	l, err := New([]int{2, 3}, 2)
	require.NoError(t, err)

	_, err = l.Transpose([]int{0, 0}, 2)
	assert.Error(t, err)

	_, err = l.Transpose([]int{0}, 2)
	assert.Error(t, err)
}

func TestIsRegularRejectsNegativeStride(t *testing.T) {
	l, err := New([]int{2, 3}, 2)
	require.NoError(t, err)
	l.Strides[TensorDim-1] = -1
	assert.False(t, l.IsRegular())
}

func TestIsContainedIn(t *testing.T) {
	outer, err := New([]int{4, 4}, 2)
	require.NoError(t, err)

	inner := outer
	inner.Shape[TensorDim-2] = 2
	inner.Shape[TensorDim-1] = 2

	assert.True(t, IsContainedIn(outer, inner))

	tooFar := inner
	tooFar.Offset = outer.Size
	assert.False(t, IsContainedIn(outer, tooFar))
}

func TestReshapeContiguousFastPath(t *testing.T) {
	l, err := New([]int{2, 3, 4}, 3)
	require.NoError(t, err)

	reshaped, err := l.Reshape([]int{6, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, 24, reshaped.Size)
	assert.True(t, reshaped.IsContiguous())
}

func TestReshapeWildcardDimension(t *testing.T) {
	l, err := New([]int{2, 3, 4}, 3)
	require.NoError(t, err)

	reshaped, err := l.Reshape([]int{-1, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, reshaped.Shape[TensorDim-2])
}

func TestReshapeRejectsSizeMismatch(t *testing.T) {
	l, err := New([]int{2, 3}, 2)
	require.NoError(t, err)

	_, err = l.Reshape([]int{4, 4}, 2)
	require.Error(t, err)
	assert.Equal(t, errs.STORAGE_LAYOUT_SHAPE_MISMATCH, errs.CodeOf(err))
}

func TestReshapeOfTransposedFallsBackToNotImplemented(t *testing.T) {
	l, err := New([]int{2, 3}, 2)
	require.NoError(t, err)
	transposed, err := l.Transpose([]int{1, 0}, 2)
	require.NoError(t, err)

	_, err = transposed.Reshape([]int{6}, 1)
	assert.Error(t, err)
}

func TestReshapeMergesTrailingAxesOfContiguousLayout(t *testing.T) {
	// Merging the trailing two axes of a contiguous (2,3,4) layout into
	// one axis of 12 goes through the contiguous fast path, like (6,4)
	// above but merging the inner rather than the outer pair.
	l, err := New([]int{2, 3, 4}, 3)
	require.NoError(t, err)
	reshaped, err := l.Reshape([]int{2, 12}, 2)
	require.NoError(t, err)
	assert.Equal(t, 24, reshaped.Size)
}

func TestBroadcast(t *testing.T) {
	a, err := New([]int{1, 4}, 2)
	require.NoError(t, err)
	b, err := New([]int{3, 4}, 2)
	require.NoError(t, err)

	err = Broadcast(&a, &b, 0, TensorDim)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Shape[TensorDim-2])
	assert.Equal(t, 0, a.Strides[TensorDim-2])
	assert.Equal(t, 12, a.Size)
}

func TestBroadcastIncompatibleShapes(t *testing.T) {
	a, err := New([]int{2, 4}, 2)
	require.NoError(t, err)
	b, err := New([]int{3, 4}, 2)
	require.NoError(t, err)

	err = Broadcast(&a, &b, 0, TensorDim)
	assert.Error(t, err)
}

func TestBroadcastShapesIsIdempotent(t *testing.T) {
	a, err := New([]int{1, 4}, 2)
	require.NoError(t, err)
	b, err := New([]int{3, 4}, 2)
	require.NoError(t, err)

	first, err := BroadcastShapes(a, b)
	require.NoError(t, err)
	second, err := BroadcastShapes(first, first)
	require.NoError(t, err)
	assert.Equal(t, first.Shape, second.Shape)
}

func TestReduce(t *testing.T) {
	l, err := New([]int{2, 3}, 2)
	require.NoError(t, err)

	reduced, err := Reduce(l, []int{0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, reduced.Shape[TensorDim-2])
	assert.Equal(t, 1, reduced.Shape[TensorDim-1])
	assert.Equal(t, 2, reduced.Size)
}

func TestPrintDoesNotPanicOnPaddedLayout(t *testing.T) {
	l, err := New([]int{3}, 1)
	require.NoError(t, err)
	assert.NotPanics(t, func() { _ = l.String() })
	assert.Contains(t, l.String(), "shape=[3]")
}
