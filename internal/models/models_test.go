package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationService(t *testing.T) {
	validator := NewValidationService()

	t.Run("Mapping profile validation", func(t *testing.T) {
		profile := &MappingProfile{
			TenantID:      "tenant-a",
			Name:          "hr-export",
			SourceType:    "CSV",
			FieldMappings: FieldMappings{"emp_id": "person_id"},
		}
		assert.NoError(t, validator.ValidateStruct(profile))

		profile.Name = ""
		err := validator.ValidateStruct(profile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")

		profile.Name = "hr-export"
		profile.FieldMappings = FieldMappings{}
		err = validator.ValidateStruct(profile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "field_mappings")
	})

	t.Run("Mapping profile event validation", func(t *testing.T) {
		event := &MappingProfileEvent{
			ProfileID: "p-1",
			TenantID:  "tenant-a",
			EventType: MappingProfileCreated,
			Actor:     "system",
		}
		assert.NoError(t, validator.ValidateStruct(event))

		event.EventType = "DELETED"
		err := validator.ValidateStruct(event)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "event_type")
	})

	t.Run("Email format", func(t *testing.T) {
		assert.True(t, validator.IsEmail("jane@example.com"))
		assert.False(t, validator.IsEmail("not-an-email"))
		assert.False(t, validator.IsEmail(""))
	})
}

func TestSourceRecord(t *testing.T) {
	var record SourceRecord
	record.Set(" Person_ID ", NormalizeFieldValue("p-1"))
	record.Set("display_name", NormalizeFieldValue("   "))
	record.Set("PERSON_ID", NormalizeFieldValue("p-2"))

	assert.Equal(t, []string{"person_id", "display_name"}, record.Keys())

	value, ok := record.Get("person_id")
	require.True(t, ok)
	require.NotNil(t, value)
	assert.Equal(t, "p-2", *value)

	value, ok = record.Get("display_name")
	assert.True(t, ok)
	assert.Nil(t, value)

	_, ok = record.Get("email")
	assert.False(t, ok)
}

func TestRunStatusTransitions(t *testing.T) {
	assert.True(t, RunStatusPending.CanTransitionTo(RunStatusRunning))
	assert.True(t, RunStatusRunning.CanTransitionTo(RunStatusSucceeded))
	assert.True(t, RunStatusRunning.CanTransitionTo(RunStatusFailed))
	assert.False(t, RunStatusSucceeded.CanTransitionTo(RunStatusRunning))
	assert.False(t, RunStatusFailed.CanTransitionTo(RunStatusSucceeded))
	assert.True(t, RunStatusFailed.IsTerminal())
	assert.False(t, RunStatusRunning.IsTerminal())
}

func TestOutboxStatusTransitions(t *testing.T) {
	tests := []struct {
		from OutboxStatus
		to   OutboxStatus
		ok   bool
	}{
		{OutboxStatusPending, OutboxStatusDispatching, true},
		{OutboxStatusRetry, OutboxStatusDispatching, true},
		{OutboxStatusDispatching, OutboxStatusPublished, true},
		{OutboxStatusDispatching, OutboxStatusRetry, true},
		{OutboxStatusDispatching, OutboxStatusDead, true},
		{OutboxStatusPending, OutboxStatusPublished, false},
		{OutboxStatusPublished, OutboxStatusDispatching, false},
		{OutboxStatusDead, OutboxStatusRetry, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, OutboxStatusPublished.IsTerminal())
	assert.True(t, OutboxStatusDead.IsTerminal())
	assert.False(t, OutboxStatusRetry.IsTerminal())
}

func TestOutboxEventIsDue(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	assert.True(t, (&OutboxEvent{Status: OutboxStatusPending}).IsDue(now))
	assert.False(t, (&OutboxEvent{Status: OutboxStatusRetry, NextAttemptAt: &later}).IsDue(now))
	assert.True(t, (&OutboxEvent{Status: OutboxStatusRetry, NextAttemptAt: &earlier}).IsDue(now))
	assert.False(t, (&OutboxEvent{Status: OutboxStatusDispatching, LeaseExpiresAt: &later}).IsDue(now))
	assert.True(t, (&OutboxEvent{Status: OutboxStatusDispatching, LeaseExpiresAt: &earlier}).IsDue(now))
	assert.False(t, (&OutboxEvent{Status: OutboxStatusPublished}).IsDue(now))
}

func TestIngestionErrorClassification(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewSourceFetchError(cause, "request to source failed").WithRun("tenant-a", "run-1")

	assert.True(t, IsSourceFetchError(err))
	assert.False(t, IsConfigurationError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "tenant-a", err.TenantID)
	assert.Contains(t, err.Error(), "source_fetch")

	wrapped := errors.Join(errors.New("outer"), NewConfigurationError("unsupported source type %q", "FTP"))
	assert.Equal(t, ErrorKindConfiguration, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
}

func TestJSONMapRoundTrip(t *testing.T) {
	original := JSONMap{"content": "a,b\n1,2", "delimiter": ","}
	value, err := original.Value()
	require.NoError(t, err)

	var scanned JSONMap
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original, scanned)

	require.NoError(t, scanned.Scan(`{"x":1}`))
	assert.Equal(t, float64(1), scanned["x"])

	clone := original.Clone()
	clone["content"] = "changed"
	assert.Equal(t, "a,b\n1,2", original["content"])
}
