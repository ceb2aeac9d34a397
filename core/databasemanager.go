package core

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type LogLevel int

const (
	LogLevelSilent LogLevel = iota + 1
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "silent", "off":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	case "info", "debug":
		return LogLevelInfo
	}
	return LogLevelWarn
}

type DatabaseManager struct {
	SqlDB    *sql.DB
	LogLevel LogLevel
	// used when a caller passes "localhost" or an empty schema
	DefaultSchema string
}

// New creates the shared pool. Guarded updates rely on RowsAffected counting
// matched rows, so clientFoundRows is forced on.
func New(dsn string, maxConnection int) (*DatabaseManager, error) {
	dsn = withParam(dsn, "clientFoundRows", "true")
	dsn = withParam(dsn, "parseTime", "true")

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxConnection)
	sqlDB.SetMaxIdleConns(maxConnection)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping pool: %w", err)
	}

	return &DatabaseManager{SqlDB: sqlDB, DefaultSchema: SchemaFromDSN(dsn)}, nil
}

// SchemaFromDSN returns the database name of a DSN, or "".
func SchemaFromDSN(dsn string) string {
	withoutQuery := strings.SplitN(dsn, "?", 2)[0]
	segments := strings.Split(withoutQuery, "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[len(segments)-1]
}

func withParam(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}

// ResolveSchema maps a tenant host such as "acme.presence.example.com" to
// its schema "acme".
func (dm *DatabaseManager) ResolveSchema(schema string) string {
	if schema == "" || schema == "localhost" {
		return dm.DefaultSchema
	}
	return strings.Split(schema, ".")[0]
}

func (dm *DatabaseManager) gormLogger() logger.Interface {
	level := logger.Warn
	switch dm.LogLevel {
	case LogLevelError:
		level = logger.Error
	case LogLevelWarn:
		level = logger.Warn
	case LogLevelInfo:
		level = logger.Info
	case LogLevelSilent:
		level = logger.Silent
	}
	return logger.New(slogWriter{}, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// slogWriter routes gorm's printf logger into the default slog handler.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}

// GetDB gets a *gorm.DB bound to a single connection that has switched to
// the schema with `USE schema`. The caller closes the connection.
func (dm *DatabaseManager) GetDB(ctx context.Context, schema string) (*gorm.DB, *sql.Conn, error) {
	schema = dm.ResolveSchema(schema)
	if schema == "" {
		return nil, nil, fmt.Errorf("no schema selected")
	}

	conn, err := dm.SqlDB.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get conn: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "USE `"+schema+"`"); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to use schema %s: %w", schema, err)
	}

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger:                 dm.gormLogger(),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return db.WithContext(ctx), conn, nil
}

// Close closes the global pool
func (dm *DatabaseManager) Close() error {
	return dm.SqlDB.Close()
}

func (dm *DatabaseManager) Exec(ctx context.Context, schema string, fn func(db *gorm.DB) error) error {
	db, conn, err := dm.GetDB(ctx, schema)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(db)
}

// Transaction runs fn in a single transaction on a schema-bound connection.
func (dm *DatabaseManager) Transaction(ctx context.Context, schema string, fn func(tx *gorm.DB) error) error {
	return dm.Exec(ctx, schema, func(db *gorm.DB) error {
		return db.Transaction(fn)
	})
}

// GetAllDatabases lists tenant schemas, skipping MySQL's own.
func (dm *DatabaseManager) GetAllDatabases(ctx context.Context) ([]string, error) {
	rows, err := dm.SqlDB.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("failed to query databases: %w", err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var db string
		if err := rows.Scan(&db); err != nil {
			return nil, fmt.Errorf("failed to scan database name: %w", err)
		}

		switch db {
		case "information_schema", "mysql", "performance_schema", "sys":
			continue
		}
		databases = append(databases, db)
	}

	return databases, rows.Err()
}
