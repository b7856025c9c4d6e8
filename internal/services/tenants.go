package services

import (
	"context"
	"strings"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
)

// configTenantDirectory resolves tenants from ingestion.tenants. An empty
// list accepts every tenant.
type configTenantDirectory struct {
	tenants map[string]struct{}
}

// NewTenantDirectory creates a tenant directory backed by configuration
func NewTenantDirectory(cfg *config.Config) TenantDirectory {
	tenants := make(map[string]struct{}, len(cfg.Ingestion.Tenants))
	for _, id := range cfg.Ingestion.Tenants {
		id = strings.TrimSpace(id)
		if id != "" {
			tenants[id] = struct{}{}
		}
	}
	return &configTenantDirectory{tenants: tenants}
}

func (d *configTenantDirectory) Exists(ctx context.Context, tenantID string) (bool, error) {
	if strings.TrimSpace(tenantID) == "" {
		return false, nil
	}
	if len(d.tenants) == 0 {
		return true, nil
	}
	_, ok := d.tenants[tenantID]
	return ok, nil
}
