package models

import (
	"time"

	"gorm.io/datatypes"
)

// MappingProfile is a tenant-scoped dictionary translating source field
// names to canonical field names
type MappingProfile struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID      string        `json:"tenant_id" gorm:"not null;uniqueIndex:ux_mapping_profiles_tenant_name,priority:1" validate:"required"`
	Name          string        `json:"name" gorm:"not null;uniqueIndex:ux_mapping_profiles_tenant_name,priority:2" validate:"required,min=1,max=255"`
	SourceType    string        `json:"source_type" gorm:"not null" validate:"required"`
	FieldMappings FieldMappings `json:"field_mappings" gorm:"type:jsonb;not null" validate:"required,min=1"`
	IsActive      bool          `json:"is_active" gorm:"not null"`
	Version       int           `json:"version" gorm:"not null;default:1"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName returns the table name for MappingProfile
func (MappingProfile) TableName() string {
	return "mapping_profiles"
}

// Clone returns a copy that shares no mutable state with p.
func (p *MappingProfile) Clone() *MappingProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.FieldMappings = p.FieldMappings.Clone()
	return &out
}

// MappingProfileEventType enumerates mapping profile lifecycle events
type MappingProfileEventType string

const (
	MappingProfileCreated     MappingProfileEventType = "CREATED"
	MappingProfileUpdated     MappingProfileEventType = "UPDATED"
	MappingProfileDeactivated MappingProfileEventType = "DEACTIVATED"
)

// MappingProfileEvent is an immutable audit entry appended on every profile mutation
type MappingProfileEvent struct {
	ID        string                  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProfileID string                  `json:"profile_id" gorm:"not null;index" validate:"required"`
	TenantID  string                  `json:"tenant_id" gorm:"not null;index" validate:"required"`
	EventType MappingProfileEventType `json:"event_type" gorm:"type:varchar(16);not null" validate:"required,oneof=CREATED UPDATED DEACTIVATED"`
	Actor     string                  `json:"actor" gorm:"not null" validate:"required"`
	Payload   datatypes.JSON          `json:"payload" gorm:"type:jsonb"`
	CreatedAt time.Time               `json:"created_at" gorm:"not null;index"`
}

// TableName returns the table name for MappingProfileEvent
func (MappingProfileEvent) TableName() string {
	return "mapping_profile_events"
}
