package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"goldenbatch/internal/analysis"
	"goldenbatch/internal/models"

	_ "github.com/lib/pq"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Supported history source types.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// DataSourceConfig holds connection details
type DataSourceConfig struct {
	Type     string // "csv", "postgres", "sqlite"
	Path     string // csv file or sqlite database file
	DSN      string // overrides the discrete postgres fields when set
	Table    string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require"
}

// HistorySource yields the batch history used for training.
type HistorySource interface {
	LoadHistory(ctx context.Context) ([]models.HistoricalBatch, error)
	Close() error
}

// DataSource is a SQL database holding batch history in one table.
type DataSource interface {
	HistorySource
	Connect(config DataSourceConfig) error
	ListTables(ctx context.Context) ([]string, error)
}

// OpenHistorySource builds and connects the source named by config.Type.
func OpenHistorySource(config DataSourceConfig) (HistorySource, error) {
	switch config.Type {
	case SourceCSV, "":
		if config.Path == "" {
			return nil, fmt.Errorf("csv history source needs a path")
		}
		return &CSVHistorySource{Path: config.Path, csv: analysis.NewCSVService()}, nil
	case SourcePostgres:
		ds := &PostgresDataSource{}
		if err := ds.Connect(config); err != nil {
			return nil, err
		}
		return ds, nil
	case SourceSQLite:
		ds := &SQLiteDataSource{}
		if err := ds.Connect(config); err != nil {
			return nil, err
		}
		return ds, nil
	}
	return nil, fmt.Errorf("unsupported history source %q", config.Type)
}

// CSVHistorySource reads history from a CSV file.
type CSVHistorySource struct {
	Path string
	csv  *analysis.CSVService
}

func (c *CSVHistorySource) LoadHistory(ctx context.Context) ([]models.HistoricalBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	svc := c.csv
	if svc == nil {
		svc = analysis.NewCSVService()
	}
	return svc.LoadHistoryFile(c.Path)
}

func (c *CSVHistorySource) Close() error { return nil }

// sqlSource holds what Postgres and SQLite share: a handle, a table and a
// catalogue query used to whitelist the table name.
type sqlSource struct {
	db           *sql.DB
	table        string
	catalogQuery string
}

func (s *sqlSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *sqlSource) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.catalogQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

// LoadHistory reads every row of the configured table. The table name is
// checked against the catalogue before it is interpolated.
func (s *sqlSource) LoadHistory(ctx context.Context) ([]models.HistoricalBatch, error) {
	if s.db == nil {
		return nil, fmt.Errorf("data source not connected")
	}
	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	found := false
	for _, t := range tables {
		if t == s.table {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: table %q not found", models.ErrTrainingData, s.table)
	}

	query := fmt.Sprintf(`SELECT * FROM "%s"`, strings.ReplaceAll(s.table, `"`, `""`))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		rowMap := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		result = append(result, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return analysis.NewCSVService().HistoryFromRecords(result, columns)
}

// PostgresDataSource implements DataSource for PostgreSQL
type PostgresDataSource struct {
	sqlSource
}

func (p *PostgresDataSource) Connect(config DataSourceConfig) error {
	connStr := config.DSN
	if connStr == "" {
		connStr = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	p.sqlSource = sqlSource{
		db:    db,
		table: config.Table,
		catalogQuery: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name;
	`,
	}
	return nil
}

// SQLiteDataSource implements DataSource for a SQLite file.
type SQLiteDataSource struct {
	sqlSource
}

func (s *SQLiteDataSource) Connect(config DataSourceConfig) error {
	dsn := config.DSN
	if dsn == "" {
		dsn = config.Path
	}
	if dsn == "" {
		return fmt.Errorf("sqlite history source needs a path")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	s.sqlSource = sqlSource{
		db:           db,
		table:        config.Table,
		catalogQuery: `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`,
	}
	return nil
}

var (
	_ DataSource    = (*PostgresDataSource)(nil)
	_ DataSource    = (*SQLiteDataSource)(nil)
	_ HistorySource = (*CSVHistorySource)(nil)
)
