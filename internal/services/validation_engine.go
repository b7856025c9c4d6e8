package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// RecordKind is the canonical entity a mapped record describes
type RecordKind string

const (
	RecordKindPerson     RecordKind = "person"
	RecordKindGroup      RecordKind = "group"
	RecordKindMembership RecordKind = "membership"
)

const defaultRole = "member"

// ValidatedRecord holds the typed canonical values of an accepted record
type ValidatedRecord struct {
	Kind        RecordKind
	PersonRef   string
	GroupRef    string
	DisplayName string
	Email       string
	GroupType   string
	GroupName   string
	Role        string
	Active      bool
	ValidFrom   *time.Time
	ValidTo     *time.Time
}

// ValidationOutcome is the verdict on one mapped record. Reason is set when Valid is false.
type ValidationOutcome struct {
	Valid  bool
	Reason string
	Record ValidatedRecord
}

func reject(format string, args ...interface{}) ValidationOutcome {
	return ValidationOutcome{Reason: fmt.Sprintf(format, args...)}
}

// ValidationEngine applies a tenant validation profile to mapped records
type ValidationEngine struct {
	validationSvc *models.ValidationService
}

// NewValidationEngine creates a validation engine
func NewValidationEngine(validationSvc *models.ValidationService) *ValidationEngine {
	return &ValidationEngine{validationSvc: validationSvc}
}

// Validate evaluates the rules of profile against record in order and reports
// the first failure. The verdict depends only on the inputs and the state
// visible through refs. Errors are reserved for lookup failures.
func (e *ValidationEngine) Validate(ctx context.Context, tenantID string, record MappedRecord, profile config.ValidationProfile, refs ReferenceLookup) (ValidationOutcome, error) {
	kind, reason := recordKind(record)
	if reason != "" {
		return reject("%s", reason), nil
	}

	switch kind {
	case RecordKindPerson:
		return e.validatePerson(record, profile.Person), nil
	case RecordKindGroup:
		return e.validateGroup(record, profile.Group), nil
	default:
		return e.validateMembership(ctx, tenantID, record, profile.Membership, refs)
	}
}

func recordKind(record MappedRecord) (RecordKind, string) {
	if explicit, ok := record.Value(FieldRecordType); ok {
		switch RecordKind(strings.ToLower(strings.TrimSpace(explicit))) {
		case RecordKindPerson:
			return RecordKindPerson, ""
		case RecordKindGroup:
			return RecordKindGroup, ""
		case RecordKindMembership:
			return RecordKindMembership, ""
		}
		return "", fmt.Sprintf("record_type %q is not one of person, group, membership", explicit)
	}

	_, hasPerson := record.Value(FieldPersonID)
	_, hasGroup := record.Value(FieldGroupID)
	switch {
	case hasPerson && hasGroup:
		return RecordKindMembership, ""
	case hasGroup:
		return RecordKindGroup, ""
	case hasPerson:
		return RecordKindPerson, ""
	}
	if _, hasEmail := record.Value(FieldEmail); hasEmail {
		return RecordKindPerson, ""
	}
	return "", "record type cannot be determined: person_id or group_id is required"
}

// personRef resolves the external reference of a person. When the profile does
// not demand an explicit reference the email address stands in for it.
func personRef(record MappedRecord, requireExplicit bool) (string, bool) {
	if ref, ok := record.Value(FieldPersonID); ok && strings.TrimSpace(ref) != "" {
		return strings.TrimSpace(ref), true
	}
	if requireExplicit {
		return "", false
	}
	if email, ok := record.Value(FieldEmail); ok && strings.TrimSpace(email) != "" {
		return strings.ToLower(strings.TrimSpace(email)), true
	}
	return "", false
}

func groupRef(record MappedRecord, requireExplicit bool) (string, bool) {
	if ref, ok := record.Value(FieldGroupID); ok && strings.TrimSpace(ref) != "" {
		return strings.TrimSpace(ref), true
	}
	if requireExplicit {
		return "", false
	}
	if name, ok := record.Value(FieldGroupName); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name), true
	}
	return "", false
}

func checkRequiredFields(record MappedRecord, rules []config.FieldRule) string {
	for _, rule := range rules {
		field := models.NormalizeFieldKey(rule.Field)
		v, ok := record.Value(field)
		if !ok {
			return fmt.Sprintf("%s is required", field)
		}
		if rule.MinLength > 0 && utf8.RuneCountInString(strings.TrimSpace(v)) < rule.MinLength {
			return fmt.Sprintf("%s must be at least %d characters", field, rule.MinLength)
		}
	}
	return ""
}

func parseActive(record MappedRecord) (bool, string) {
	raw, ok := record.Value(FieldActive)
	if !ok {
		return true, ""
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "1", "yes", "y":
		return true, ""
	case "false", "f", "0", "no", "n":
		return false, ""
	}
	return false, fmt.Sprintf("active value %q is not a boolean", raw)
}

func (e *ValidationEngine) validatePerson(record MappedRecord, rules config.PersonRules) ValidationOutcome {
	ref, ok := personRef(record, rules.RequireExternalRef)
	if !ok {
		return reject("person_id is required")
	}
	if reason := checkRequiredFields(record, rules.RequiredFields); reason != "" {
		return reject("%s", reason)
	}

	email, hasEmail := record.Value(FieldEmail)
	email = strings.TrimSpace(email)
	if rules.RequireEmail && !hasEmail {
		return reject("email is required")
	}
	if hasEmail {
		if !e.validationSvc.IsEmail(email) {
			return reject("email %q is not a valid address", email)
		}
		if len(rules.AllowedEmailDomains) > 0 && !domainAllowed(email, rules.AllowedEmailDomains) {
			return reject("email domain of %q is not allowed", email)
		}
	}

	active, reason := parseActive(record)
	if reason != "" {
		return reject("%s", reason)
	}

	displayName, _ := record.Value(FieldDisplayName)
	return ValidationOutcome{Valid: true, Record: ValidatedRecord{
		Kind:        RecordKindPerson,
		PersonRef:   ref,
		DisplayName: strings.TrimSpace(displayName),
		Email:       email,
		Active:      active,
	}}
}

func domainAllowed(email string, allowed []string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range allowed {
		if strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@")) == domain {
			return true
		}
	}
	return false
}

func (e *ValidationEngine) validateGroup(record MappedRecord, rules config.GroupRules) ValidationOutcome {
	ref, ok := groupRef(record, rules.RequireExternalRef)
	if !ok {
		return reject("group_id is required")
	}
	if reason := checkRequiredFields(record, rules.RequiredFields); reason != "" {
		return reject("%s", reason)
	}

	groupType, hasType := record.Value(FieldGroupType)
	groupType = strings.TrimSpace(groupType)
	if len(rules.AllowedTypes) > 0 {
		if !hasType {
			return reject("group_type is required")
		}
		if !containsFold(rules.AllowedTypes, groupType) {
			return reject("group_type %q is not allowed", groupType)
		}
	}

	active, reason := parseActive(record)
	if reason != "" {
		return reject("%s", reason)
	}

	name, _ := record.Value(FieldGroupName)
	return ValidationOutcome{Valid: true, Record: ValidatedRecord{
		Kind:      RecordKindGroup,
		GroupRef:  ref,
		GroupType: groupType,
		GroupName: strings.TrimSpace(name),
		Active:    active,
	}}
}

func (e *ValidationEngine) validateMembership(ctx context.Context, tenantID string, record MappedRecord, rules config.MembershipRules, refs ReferenceLookup) (ValidationOutcome, error) {
	pRef, ok := personRef(record, rules.RequireExternalRefs)
	if !ok {
		return reject("person_id is required"), nil
	}
	gRef, ok := groupRef(record, rules.RequireExternalRefs)
	if !ok {
		return reject("group_id is required"), nil
	}
	if reason := checkRequiredFields(record, rules.RequiredFields); reason != "" {
		return reject("%s", reason), nil
	}

	role, hasRole := record.Value(FieldRole)
	role = strings.TrimSpace(role)
	if len(rules.AllowedRolesByGroupType) > 0 && !hasRole {
		return reject("role is required"), nil
	}
	if !hasRole {
		role = defaultRole
	}

	person, err := refs.LookupPerson(ctx, tenantID, pRef)
	if err != nil {
		return ValidationOutcome{}, err
	}
	switch {
	case !person.Exists && (rules.RequireExistingReferences || rules.RequireActiveReferences):
		return reject("person %q does not exist", pRef), nil
	case person.Exists && rules.RequireActiveReferences && !person.Active:
		return reject("person %q is not active", pRef), nil
	}

	group, err := refs.LookupGroup(ctx, tenantID, gRef)
	if err != nil {
		return ValidationOutcome{}, err
	}
	switch {
	case !group.Exists && (rules.RequireExistingReferences || rules.RequireActiveReferences):
		return reject("group %q does not exist", gRef), nil
	case group.Exists && rules.RequireActiveReferences && !group.Active:
		return reject("group %q is not active", gRef), nil
	}

	if allowed, restricted := rolesFor(rules.AllowedRolesByGroupType, group.Type); restricted && !containsFold(allowed, role) {
		return reject("role %q is not allowed for group type %q", role, group.Type), nil
	}

	validFrom, reason := parseDate(record, FieldValidFrom)
	if reason != "" {
		return reject("%s", reason), nil
	}
	validTo, reason := parseDate(record, FieldValidTo)
	if reason != "" {
		return reject("%s", reason), nil
	}
	if validFrom != nil && validTo != nil && validFrom.After(*validTo) {
		return reject("valid_from must not be after valid_to"), nil
	}

	active, reason := parseActive(record)
	if reason != "" {
		return reject("%s", reason), nil
	}

	return ValidationOutcome{Valid: true, Record: ValidatedRecord{
		Kind:      RecordKindMembership,
		PersonRef: pRef,
		GroupRef:  gRef,
		Role:      role,
		Active:    active,
		ValidFrom: validFrom,
		ValidTo:   validTo,
	}}, nil
}

// rolesFor returns the allowed roles of a group type. Types without an entry
// are unrestricted.
func rolesFor(byType map[string][]string, groupType string) ([]string, bool) {
	for t, roles := range byType {
		if strings.EqualFold(t, groupType) {
			return roles, true
		}
	}
	return nil, false
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(strings.TrimSpace(candidate), v) {
			return true
		}
	}
	return false
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(record MappedRecord, field string) (*time.Time, string) {
	raw, ok := record.Value(field)
	if !ok {
		return nil, ""
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, ""
		}
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.Unix(unix, 0).UTC()
		return &t, ""
	}
	return nil, fmt.Sprintf("%s %q is not a valid date", field, raw)
}
