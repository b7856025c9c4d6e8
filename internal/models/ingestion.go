package models

import (
	"time"

	"gorm.io/datatypes"
)

// RunStatus is the lifecycle state of an ingestion run
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

var runTransitions = map[RunStatus][]RunStatus{
	RunStatusPending: {RunStatusRunning, RunStatusFailed},
	RunStatusRunning: {RunStatusSucceeded, RunStatusFailed},
}

// CanTransitionTo reports whether the run may move from s to next.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// IngestionRun records one execution of the ingestion pipeline
type IngestionRun struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID         string     `json:"tenant_id" gorm:"not null;index:idx_ingestion_runs_tenant_started,priority:1"`
	SourceType       string     `json:"source_type" gorm:"not null"`
	MappingProfileID *string    `json:"mapping_profile_id,omitempty" gorm:"type:varchar(36)"`
	Status           RunStatus  `json:"status" gorm:"type:varchar(16);not null;index"`
	DryRun           bool       `json:"dry_run" gorm:"not null;default:false"`
	ReplayOfRunID    *string    `json:"replay_of_run_id,omitempty" gorm:"type:varchar(36);index"`
	ProcessedRecords int        `json:"processed_records" gorm:"not null;default:0"`
	RejectedRecords  int        `json:"rejected_records" gorm:"not null;default:0"`
	ErrorMessage     string     `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt        time.Time  `json:"started_at" gorm:"not null;index:idx_ingestion_runs_tenant_started,priority:2"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

// TableName returns the table name for IngestionRun
func (IngestionRun) TableName() string {
	return "ingestion_runs"
}

// IngestionSnapshot is the immutable input of one run, kept for replay
type IngestionSnapshot struct {
	RunID            string         `json:"run_id" gorm:"primaryKey;type:varchar(36)"`
	TenantID         string         `json:"tenant_id" gorm:"not null;index"`
	SourceType       string         `json:"source_type" gorm:"not null"`
	MappingProfileID *string        `json:"mapping_profile_id,omitempty" gorm:"type:varchar(36)"`
	SourceConfig     JSONMap        `json:"source_config" gorm:"type:jsonb"`
	SourceRecords    datatypes.JSON `json:"source_records" gorm:"type:jsonb;not null"`
	CreatedAt        time.Time      `json:"created_at" gorm:"not null;index"`
}

// TableName returns the table name for IngestionSnapshot
func (IngestionSnapshot) TableName() string {
	return "ingestion_snapshots"
}

// IngestionRejection records one record that failed mapping, validation or persistence
type IngestionRejection struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RunID     string    `json:"run_id" gorm:"not null;index:idx_ingestion_rejections_run_row,priority:1"`
	TenantID  string    `json:"tenant_id" gorm:"not null"`
	RowNumber int       `json:"row_number" gorm:"not null;index:idx_ingestion_rejections_run_row,priority:2"`
	Reason    string    `json:"reason" gorm:"type:text;not null"`
	RowData   string    `json:"row_data" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for IngestionRejection
func (IngestionRejection) TableName() string {
	return "ingestion_rejections"
}
