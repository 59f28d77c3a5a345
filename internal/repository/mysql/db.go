package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
)

// ErrParseTimeRequired is returned by Open when the DSN leaves parseTime off.
// Without it created_at comes back as []byte and every row scan fails.
var ErrParseTimeRequired = errors.New("mysql DSN must set parseTime=true")

const schema = `
CREATE TABLE IF NOT EXISTS private_uploads (
	id            CHAR(36)     NOT NULL PRIMARY KEY,
	user_id       VARCHAR(64)  NOT NULL,
	purpose       VARCHAR(64)  NOT NULL,
	storage       VARCHAR(16)  NOT NULL,
	storage_key   VARCHAR(255) NOT NULL,
	mime          VARCHAR(64)  NOT NULL,
	kind          VARCHAR(16)  NOT NULL,
	size_bytes    BIGINT       NOT NULL,
	original_name VARCHAR(255) NOT NULL,
	created_at    DATETIME(6)  NOT NULL,
	UNIQUE KEY uq_private_uploads_storage_key (storage_key),
	KEY idx_private_uploads_user (user_id, created_at)
)`

// parseDSN parses dsn and rejects configurations the repository cannot read
// rows with.
func parseDSN(dsn string) (*gomysql.Config, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing mysql DSN: %w", err)
	}
	if !cfg.ParseTime {
		return nil, ErrParseTimeRequired
	}
	return cfg, nil
}

// Open connects to MySQL with dsn and makes sure the private_uploads table
// exists.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(20)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating private_uploads table: %w", err)
	}
	return db, nil
}
