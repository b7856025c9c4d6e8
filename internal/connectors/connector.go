// Package connectors turns external sources into ordered SourceRecords.
package connectors

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// Source types served by the built-in connectors
const (
	SourceTypeCSV  = "CSV"
	SourceTypeJSON = "JSON"
	SourceTypeJDBC = "JDBC"
	SourceTypeREST = "REST"
)

// Connector loads raw records from one kind of source. Configuration
// problems are reported as configuration errors before any I/O happens;
// I/O problems are reported as source fetch errors.
type Connector interface {
	SourceType() string
	LoadRecords(ctx context.Context, cfg models.JSONMap) ([]models.SourceRecord, error)
}

// Registry resolves connectors by source type
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry creates a registry holding the built-in connectors
func NewRegistry(cfg *config.Config, log *logger.Logger) *Registry {
	r := &Registry{connectors: make(map[string]Connector)}
	r.Register(NewCSVConnector(cfg.Ingestion.CSV))
	r.Register(NewJSONConnector())
	r.Register(NewJDBCConnector(cfg.Ingestion.JDBC, log))
	r.Register(NewRESTConnector(cfg.Ingestion.REST, log))
	return r
}

// NormalizeSourceType folds a source type to its registry key
func NormalizeSourceType(sourceType string) string {
	return strings.ToUpper(strings.TrimSpace(sourceType))
}

// Register adds or replaces a connector
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[NormalizeSourceType(c.SourceType())] = c
}

// Get returns the connector for sourceType
func (r *Registry) Get(sourceType string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[NormalizeSourceType(sourceType)]
	if !ok {
		return nil, models.NewConfigurationError("unsupported source type %q", sourceType)
	}
	return c, nil
}

// Has reports whether sourceType is registered
func (r *Registry) Has(sourceType string) bool {
	_, err := r.Get(sourceType)
	return err == nil
}

// SourceTypes lists registered source types in alphabetical order
func (r *Registry) SourceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.connectors))
	for t := range r.connectors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
