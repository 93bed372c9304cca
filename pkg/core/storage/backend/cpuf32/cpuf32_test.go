package cpuf32_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndoll1998/cgrad/pkg/core/storage/backend/cpuf32"
	"github.com/ndoll1998/cgrad/pkg/core/storage/layout"
)

func TestFillAndGet(t *testing.T) {
	d := cpuf32.Descriptor()
	l, err := layout.New([]int{2, 3}, 2)
	require.NoError(t, err)

	h, err := d.Table.Init(l.Size)
	require.NoError(t, err)
	require.NoError(t, d.Table.Fill(h, l, 7))

	for off := 0; off < l.Size; off++ {
		v, err := d.Table.Get(h, off)
		require.NoError(t, err)
		assert.Equal(t, float32(7), v)
	}
}

func TestSetThenGet(t *testing.T) {
	d := cpuf32.Descriptor()
	l, err := layout.New([]int{4}, 1)
	require.NoError(t, err)

	h, err := d.Table.Init(l.Size)
	require.NoError(t, err)
	require.NoError(t, d.Table.Set(h, 2, 42))

	v, err := d.Table.Get(h, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(42), v)
}

func TestContiguousOfTransposedLayout(t *testing.T) {
	d := cpuf32.Descriptor()
	l, err := layout.New([]int{2, 3}, 2)
	require.NoError(t, err)

	h, err := d.Table.Init(l.Size)
	require.NoError(t, err)
	for i := 0; i < l.Size; i++ {
		require.NoError(t, d.Table.Set(h, i, float32(i)))
	}

	transposed, err := l.Transpose([]int{1, 0}, 2)
	require.NoError(t, err)

	packedH, packedL, err := d.Table.Contiguous(h, transposed)
	require.NoError(t, err)
	require.True(t, packedL.IsContiguous())

	// transposed(i,j) == original(j,i); packed should read out in the
	// transposed tensor's own row-major order: 0,3,1,4,2,5
	expected := []float32{0, 3, 1, 4, 2, 5}
	for i, want := range expected {
		v, err := d.Table.Get(packedH, i)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestGemmSimple2x2(t *testing.T) {
	d := cpuf32.Descriptor()
	lhsL, _ := layout.New([]int{2, 2}, 2)
	rhsL, _ := layout.New([]int{2, 2}, 2)
	dstL, _ := layout.New([]int{2, 2}, 2)

	lhsH, _ := d.Table.Init(lhsL.Size)
	rhsH, _ := d.Table.Init(rhsL.Size)
	dstH, _ := d.Table.Init(dstL.Size)

	// lhs = [[1,2],[3,4]], rhs = identity
	for i, v := range []float32{1, 2, 3, 4} {
		require.NoError(t, d.Table.Set(lhsH, i, v))
	}
	for i, v := range []float32{1, 0, 0, 1} {
		require.NoError(t, d.Table.Set(rhsH, i, v))
	}

	require.NoError(t, d.Table.Gemm(dstH, dstL, lhsH, lhsL, rhsH, rhsL, 1, 0))

	for i, want := range []float32{1, 2, 3, 4} {
		v, err := d.Table.Get(dstH, i)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestGemmBatched(t *testing.T) {
	d := cpuf32.Descriptor()
	// batch of 2, each a 1x1 * 1x1 matmul
	lhsL, _ := layout.New([]int{2, 1, 1}, 3)
	rhsL, _ := layout.New([]int{2, 1, 1}, 3)
	dstL, _ := layout.New([]int{2, 1, 1}, 3)

	lhsH, _ := d.Table.Init(lhsL.Size)
	rhsH, _ := d.Table.Init(rhsL.Size)
	dstH, _ := d.Table.Init(dstL.Size)

	require.NoError(t, d.Table.Set(lhsH, 0, 2))
	require.NoError(t, d.Table.Set(lhsH, 1, 3))
	require.NoError(t, d.Table.Set(rhsH, 0, 5))
	require.NoError(t, d.Table.Set(rhsH, 1, 7))

	require.NoError(t, d.Table.Gemm(dstH, dstL, lhsH, lhsL, rhsH, rhsL, 1, 0))

	v0, _ := d.Table.Get(dstH, 0)
	v1, _ := d.Table.Get(dstH, 1)
	assert.Equal(t, float32(10), v0)
	assert.Equal(t, float32(21), v1)
}

func TestAxpy(t *testing.T) {
	d := cpuf32.Descriptor()
	l, _ := layout.New([]int{3}, 1)

	y, _ := d.Table.Init(l.Size)
	x, _ := d.Table.Init(l.Size)
	for i, v := range []float32{1, 2, 3} {
		require.NoError(t, d.Table.Set(y, i, v))
		require.NoError(t, d.Table.Set(x, i, v))
	}

	require.NoError(t, d.Table.Axpy(y, l, x, l, 2))

	for i, want := range []float32{3, 6, 9} {
		v, err := d.Table.Get(y, i)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestAxpyRejectsNonContiguousDestination(t *testing.T) {
	d := cpuf32.Descriptor()
	l, _ := layout.New([]int{2, 2}, 2)
	transposed, err := l.Transpose([]int{1, 0}, 2)
	require.NoError(t, err)

	y, _ := d.Table.Init(l.Size)
	x, _ := d.Table.Init(l.Size)

	err = d.Table.Axpy(y, transposed, x, l, 1)
	assert.Error(t, err)
}

func TestPrintWritesOneLine(t *testing.T) {
	d := cpuf32.Descriptor()
	l, _ := layout.New([]int{2}, 1)
	h, _ := d.Table.Init(l.Size)
	require.NoError(t, d.Table.Set(h, 0, 1))
	require.NoError(t, d.Table.Set(h, 1, 2))

	var buf bytes.Buffer
	require.NoError(t, d.Table.Print(&buf, h, l))
	assert.Equal(t, "1 2\n", buf.String())
}
