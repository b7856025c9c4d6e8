package config

import "strings"

// ValidationConfig holds the default rule profile and per-tenant overrides
type ValidationConfig struct {
	Default ValidationProfile            `mapstructure:"default"`
	Tenants map[string]ValidationProfile `mapstructure:"tenants"`
}

// ValidationProfile is a versioned set of record rules applied to one tenant
type ValidationProfile struct {
	Version    int             `mapstructure:"version" json:"version"`
	Person     PersonRules     `mapstructure:"person" json:"person"`
	Group      GroupRules      `mapstructure:"group" json:"group"`
	Membership MembershipRules `mapstructure:"membership" json:"membership"`
}

// FieldRule requires a canonical field to be present with a minimum length
type FieldRule struct {
	Field     string `mapstructure:"field" json:"field"`
	MinLength int    `mapstructure:"min_length" json:"min_length"`
}

// PersonRules holds person record rules
type PersonRules struct {
	RequireExternalRef  bool        `mapstructure:"require_external_ref" json:"require_external_ref"`
	RequireEmail        bool        `mapstructure:"require_email" json:"require_email"`
	AllowedEmailDomains []string    `mapstructure:"allowed_email_domains" json:"allowed_email_domains,omitempty"`
	RequiredFields      []FieldRule `mapstructure:"required_fields" json:"required_fields,omitempty"`
}

// GroupRules holds group record rules
type GroupRules struct {
	RequireExternalRef bool        `mapstructure:"require_external_ref" json:"require_external_ref"`
	AllowedTypes       []string    `mapstructure:"allowed_types" json:"allowed_types,omitempty"`
	RequiredFields     []FieldRule `mapstructure:"required_fields" json:"required_fields,omitempty"`
}

// MembershipRules holds membership record rules
type MembershipRules struct {
	RequireExternalRefs       bool `mapstructure:"require_external_refs" json:"require_external_refs"`
	RequireExistingReferences bool `mapstructure:"require_existing_references" json:"require_existing_references"`
	// RequireActiveReferences implies RequireExistingReferences
	RequireActiveReferences bool                `mapstructure:"require_active_references" json:"require_active_references"`
	AllowedRolesByGroupType map[string][]string `mapstructure:"allowed_roles_by_group_type" json:"allowed_roles_by_group_type,omitempty"`
	RequiredFields          []FieldRule         `mapstructure:"required_fields" json:"required_fields,omitempty"`
}

// ProfileFor returns the tenant's profile, falling back to the default.
// Viper lower-cases map keys, so the lookup retries with a lower-cased id.
func (v ValidationConfig) ProfileFor(tenantID string) ValidationProfile {
	if profile, ok := v.Tenants[tenantID]; ok {
		return profile
	}
	if profile, ok := v.Tenants[strings.ToLower(tenantID)]; ok {
		return profile
	}
	return v.Default
}
