package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgate/internal/person/store"
	"webgate/internal/platform/config"
	"webgate/internal/platform/logger"
)

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := config.Server{
		Gate:              config.GateConfig{PlaceholderDomain: "example.com"},
		Locale:            config.LocaleConfig{Default: "en"},
		SeedAdminPassword: "changeme",
	}

	t.Run("empty store gets a placeholder administrator", func(t *testing.T) {
		people := store.NewInMemory()

		require.NoError(t, seedAdmin(ctx, people, cfg, logger.Discard()))

		p, err := people.FindByEmail(ctx, "admin@example.com")
		require.NoError(t, err)
		assert.True(t, p.Admin)
		assert.True(t, p.Active)
		assert.True(t, p.PasswordMatches("changeme"))
	})

	t.Run("populated store is left alone", func(t *testing.T) {
		people := store.NewInMemory()
		require.NoError(t, seedAdmin(ctx, people, cfg, logger.Discard()))
		require.NoError(t, seedAdmin(ctx, people, cfg, logger.Discard()))

		n, err := people.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
