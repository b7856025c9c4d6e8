package config

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// **Feature: audience-ingestion, Property 1: Tenant validation profile resolution**
func TestProperty_ValidationProfileResolution(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("unknown tenants fall back to the default profile", prop.ForAll(
		func(tenantID string, version int) bool {
			cfg := ValidationConfig{
				Default: ValidationProfile{Version: version},
				Tenants: map[string]ValidationProfile{
					"configured-tenant": {Version: version + 1},
				},
			}
			if tenantID == "configured-tenant" {
				return cfg.ProfileFor(tenantID).Version == version+1
			}
			return cfg.ProfileFor(tenantID).Version == version
		},
		gen.AlphaString(),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestValidationConfig_ProfileForIsCaseTolerant(t *testing.T) {
	cfg := ValidationConfig{
		Default: ValidationProfile{Version: 1},
		Tenants: map[string]ValidationProfile{
			"acme": {Version: 7, Person: PersonRules{RequireEmail: true}},
		},
	}

	profile := cfg.ProfileFor("ACME")
	assert.Equal(t, 7, profile.Version)
	assert.True(t, profile.Person.RequireEmail)
}

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)
	assert.NotNil(t, config)

	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "localhost", config.Database.Host)
	assert.Equal(t, 5432, config.Database.Port)
	assert.False(t, config.Database.IsMemory())
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)

	assert.Equal(t, "log", config.Outbox.Transport)
	assert.Equal(t, 100, config.Outbox.BatchSize)
	assert.Equal(t, 8, config.Outbox.MaxAttempts)
	assert.Equal(t, 5*time.Second, config.Outbox.BaseBackoff)
	assert.Equal(t, 15*time.Minute, config.Outbox.MaxBackoff)

	assert.Equal(t, 10*time.Second, config.Ingestion.REST.MaxConnectTimeout)
	assert.Equal(t, 60*time.Second, config.Ingestion.REST.MaxReadTimeout)
	assert.Equal(t, 60*time.Second, config.Ingestion.JDBC.MaxQueryTimeout)

	assert.True(t, config.Retention.Enabled)
	assert.Greater(t, config.Retention.DeadOutboxTTL, config.Retention.PublishedOutboxTTL)

	assert.True(t, config.Validation.Default.Person.RequireExternalRef)
	assert.True(t, config.Validation.Default.Membership.RequireExternalRefs)
	assert.True(t, config.Validation.Default.Membership.RequireExistingReferences)
}
