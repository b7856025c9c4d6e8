package models

import "time"

// Aggregate types carried by outbox events
const (
	AggregatePerson     = "PERSON"
	AggregateGroup      = "GROUP"
	AggregateMembership = "MEMBERSHIP"
)

// Outbox event types emitted by ingestion runs
const (
	EventPersonUpserted     = "PERSON_UPSERTED"
	EventGroupUpserted      = "GROUP_UPSERTED"
	EventMembershipUpserted = "MEMBERSHIP_UPSERTED"
)

// Person is a canonical person, unique per tenant and external reference
type Person struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID    string    `json:"tenant_id" gorm:"not null;uniqueIndex:ux_people_natural_key,priority:1" validate:"required"`
	ExternalRef string    `json:"external_ref" gorm:"not null;uniqueIndex:ux_people_natural_key,priority:2" validate:"required"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty" gorm:"index"`
	Active      bool      `json:"active" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for Person
func (Person) TableName() string {
	return "people"
}

// Group is a canonical group, unique per tenant and external reference
type Group struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID    string    `json:"tenant_id" gorm:"not null;uniqueIndex:ux_groups_natural_key,priority:1" validate:"required"`
	ExternalRef string    `json:"external_ref" gorm:"not null;uniqueIndex:ux_groups_natural_key,priority:2" validate:"required"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Active      bool      `json:"active" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for Group
func (Group) TableName() string {
	return "groups"
}

// Membership links a person to a group under a role
type Membership struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID  string     `json:"tenant_id" gorm:"not null;uniqueIndex:ux_memberships_natural_key,priority:1" validate:"required"`
	PersonID  string     `json:"person_id" gorm:"not null;uniqueIndex:ux_memberships_natural_key,priority:2" validate:"required"`
	GroupID   string     `json:"group_id" gorm:"not null;uniqueIndex:ux_memberships_natural_key,priority:3" validate:"required"`
	Role      string     `json:"role" gorm:"not null;uniqueIndex:ux_memberships_natural_key,priority:4"`
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
	Active    bool       `json:"active" gorm:"not null"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the table name for Membership
func (Membership) TableName() string {
	return "memberships"
}
