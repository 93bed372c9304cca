package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndoll1998/cgrad/pkg/core/storage/backend"
	"github.com/ndoll1998/cgrad/pkg/core/storage/errs"
)

func descriptor(name string) backend.Descriptor {
	return backend.Descriptor{Name: name}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := backend.NewRegistry()
	require.NoError(t, r.Register(descriptor("a")))

	d, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", d.Name)
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	r := backend.NewRegistry()
	require.NoError(t, r.Register(descriptor("a")))

	err := r.Register(descriptor("a"))
	require.Error(t, err)
	assert.Equal(t, errs.BACKEND_REGISTRY_DUPLICATE, errs.CodeOf(err))
}

func TestRegistryNotFound(t *testing.T) {
	r := backend.NewRegistry()
	_, err := r.Get("missing")
	require.Error(t, err)
	assert.Equal(t, errs.BACKEND_REGISTRY_BACKEND_NOT_FOUND, errs.CodeOf(err))
}

func TestRegistryCleanup(t *testing.T) {
	r := backend.NewRegistry()
	require.NoError(t, r.Register(descriptor("a")))
	r.Cleanup()
	assert.Empty(t, r.Names())
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := backend.NewRegistry()
	err := r.Register(descriptor(""))
	require.Error(t, err)
	assert.Equal(t, errs.INVALID_ARGUMENT, errs.CodeOf(err))
}
