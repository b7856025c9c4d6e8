package connectors

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// hardQueryTimeout caps every SQL fetch regardless of configuration
const hardQueryTimeout = 120 * time.Second

// JDBCConnector runs a read-only query against an operator-configured
// connection reference
type JDBCConnector struct {
	cfg    config.JDBCConnectorConfig
	logger *logger.Logger
}

// NewJDBCConnector creates a SQL connector
func NewJDBCConnector(cfg config.JDBCConnectorConfig, log *logger.Logger) *JDBCConnector {
	return &JDBCConnector{cfg: cfg, logger: log}
}

// SourceType returns JDBC
func (c *JDBCConnector) SourceType() string {
	return SourceTypeJDBC
}

// jdbcPlan is a resolved, bounded query ready to run
type jdbcPlan struct {
	ref       string
	driver    string
	dsn       string
	query     string
	timeout   time.Duration
	fetchSize int
	maxRows   int
}

func sqlDriverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres", "postgresql":
		return "pgx", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	}
	return "", fmt.Errorf("unsupported driver %q", driver)
}

func (c *JDBCConnector) plan(cfg models.JSONMap) (*jdbcPlan, error) {
	ref, err := requiredString(cfg, "connection_ref", "connectionRef")
	if err != nil {
		return nil, err
	}
	// viper lower-cases map keys, so references are matched case-insensitively
	conn, ok := c.cfg.Connections[strings.ToLower(strings.TrimSpace(ref))]
	if !ok || !conn.Enabled {
		return nil, models.NewConfigurationError("unknown or disabled connection reference %q", ref)
	}

	driver, err := sqlDriverName(conn.Driver)
	if err != nil {
		return nil, models.NewConfigurationError("connection reference %q: %v", ref, err)
	}

	query := conn.DefaultQuery
	custom, err := optionalString(cfg, "query")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(custom) != "" {
		if !conn.AllowCustomQuery {
			return nil, models.NewConfigurationError("connection reference %q does not allow custom queries", ref)
		}
		query = custom
	}
	if strings.TrimSpace(query) == "" {
		return nil, models.NewConfigurationError("connection reference %q has no query", ref)
	}

	checked, err := checkSelectOnly(query)
	if err != nil {
		return nil, models.NewConfigurationError("connection reference %q: %v", ref, err)
	}

	return &jdbcPlan{
		ref:       ref,
		driver:    driver,
		dsn:       conn.DSN,
		query:     checked,
		timeout:   boundedDuration(conn.QueryTimeout, c.cfg.MaxQueryTimeout, minDuration(c.cfg.MaxQueryTimeout, hardQueryTimeout)),
		fetchSize: boundedInt(conn.FetchSize, c.cfg.MaxFetchSize),
		maxRows:   boundedInt(conn.MaxRows, c.cfg.MaxRows),
	}, nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a <= 0 || b < a {
		return b
	}
	return a
}

// LoadRecords executes the query and returns one record per row, columns in
// select order. Rows past max_rows are dropped with a warning.
func (c *JDBCConnector) LoadRecords(ctx context.Context, cfg models.JSONMap) ([]models.SourceRecord, error) {
	plan, err := c.plan(cfg)
	if err != nil {
		return nil, err
	}

	log := c.logger.WithConnector(SourceTypeJDBC).WithField("connection_ref", plan.ref)

	ctx, cancel := context.WithTimeout(ctx, plan.timeout)
	defer cancel()

	db, err := sql.Open(plan.driver, plan.dsn)
	if err != nil {
		return nil, models.NewSourceFetchError(c.redact(err, plan), "cannot open connection reference %q", plan.ref)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, plan.query)
	if err != nil {
		return nil, models.NewSourceFetchError(c.redact(err, plan), "query on connection reference %q failed", plan.ref)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, models.NewSourceFetchError(c.redact(err, plan), "cannot read columns from %q", plan.ref)
	}
	keys := make([]string, len(columns))
	for i, col := range columns {
		keys[i] = models.NormalizeFieldKey(col)
	}

	var records []models.SourceRecord
	truncated := false
	for rows.Next() {
		if plan.maxRows > 0 && len(records) >= plan.maxRows {
			truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, models.NewSourceFetchError(c.redact(err, plan), "cannot scan row %d from %q", len(records)+1, plan.ref)
		}

		record := models.SourceRecord{RowNumber: len(records) + 1}
		raw := make(map[string]interface{}, len(columns))
		for i, key := range keys {
			value := sqlValue(values[i])
			record.Set(key, value)
			if value == nil {
				raw[columns[i]] = nil
			} else {
				raw[columns[i]] = *value
			}
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, models.NewSourceFetchError(err, "cannot encode row %d", record.RowNumber)
		}
		record.RawData = string(data)
		records = append(records, record)

		if plan.fetchSize > 0 && len(records)%plan.fetchSize == 0 {
			log.WithField("rows", len(records)).Debug("Fetched SQL batch")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewSourceFetchError(c.redact(err, plan), "reading rows from %q failed", plan.ref)
	}

	if truncated {
		log.WithField("max_rows", plan.maxRows).Warn("SQL source exceeded max rows, result truncated")
	}
	log.WithField("rows", len(records)).Info("Loaded SQL records")

	return records, nil
}

func (c *JDBCConnector) redact(err error, plan *jdbcPlan) error {
	if err == nil || plan.dsn == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, plan.dsn) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return errors.New(strings.ReplaceAll(msg, plan.dsn, "[redacted]"))
}

func sqlValue(v interface{}) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return models.NormalizeFieldValue(string(t))
	case string:
		return models.NormalizeFieldValue(t)
	case time.Time:
		s = t.Format(time.RFC3339)
	case bool:
		s = strconv.FormatBool(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = fmt.Sprint(t)
	}
	return &s
}
