package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
	"github.com/ashish-admin/stra-tech-sub002/internal/mocks"
	"github.com/ashish-admin/stra-tech-sub002/internal/provider/registry"
)

func adapterNamed(t *testing.T, name string) *mocks.MockAdapter {
	t.Helper()
	adapter := mocks.NewMockAdapter(t)
	adapter.EXPECT().Name().Return(name).Maybe()
	return adapter
}

func TestRegistry_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should register adapter successfully", func(t *testing.T) {
		reg := registry.NewRegistry()

		require.NoError(t, reg.Register(ctx, adapterNamed(t, "reasoning")))

		got, err := reg.Get(ctx, "reasoning")
		require.NoError(t, err)
		require.Equal(t, "reasoning", got.Name())
	})

	t.Run("should reject nil adapter", func(t *testing.T) {
		reg := registry.NewRegistry()

		err := reg.Register(ctx, nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "adapter cannot be nil")
	})

	t.Run("should reject empty name", func(t *testing.T) {
		reg := registry.NewRegistry()

		err := reg.Register(ctx, adapterNamed(t, ""))
		require.Error(t, err)
		require.Contains(t, err.Error(), "name cannot be empty")
	})

	t.Run("should reject duplicate registration", func(t *testing.T) {
		reg := registry.NewRegistry()

		require.NoError(t, reg.Register(ctx, adapterNamed(t, "local")))
		err := reg.Register(ctx, adapterNamed(t, "local"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "already registered")
	})
}

func TestRegistry_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("should fail for unknown service", func(t *testing.T) {
		reg := registry.NewRegistry()

		_, err := reg.Get(ctx, "retrieval")
		require.ErrorIs(t, err, domain.ErrUnknownService)
	})

	t.Run("should fail for empty name", func(t *testing.T) {
		reg := registry.NewRegistry()

		_, err := reg.Get(ctx, "")
		require.Error(t, err)
	})
}

func TestRegistry_List(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewRegistry()

	for _, name := range []string{"retrieval", "local", "reasoning"} {
		require.NoError(t, reg.Register(ctx, adapterNamed(t, name)))
	}

	names, err := reg.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"local", "reasoning", "retrieval"}, names)
}

func TestRegistry_Verify(t *testing.T) {
	ctx := context.Background()

	catalog, err := domain.NewInMemoryCatalog(
		domain.ServiceDescriptor{Name: "reasoning", Kind: domain.KindReasoning},
		domain.ServiceDescriptor{Name: "local", Kind: domain.KindLocal},
	)
	require.NoError(t, err)

	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(ctx, adapterNamed(t, "local")))

	err = reg.Verify(ctx, catalog)
	require.ErrorIs(t, err, domain.ErrUnknownService)
	require.Contains(t, err.Error(), "reasoning")

	require.NoError(t, reg.Register(ctx, adapterNamed(t, "reasoning")))
	require.NoError(t, reg.Verify(ctx, catalog))
}
