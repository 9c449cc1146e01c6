package storageengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryGetUnregisteredIsNoopAndUnsupported(t *testing.T) {
	r := NewRegistry()
	s := r.Get("does-not-exist")
	require.False(t, s.IsSupported())
	require.Equal(t, "does-not-exist", s.GetEngineName())
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("fake", func() Source {
		called = true
		return nil
	})
	r.Get("fake")
	require.True(t, called)
	require.Contains(t, r.Names(), "fake")
}
