package hldb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

type Driver string

const (
	DriverMySQL  Driver = "mysql"
	DriverSQLite Driver = "sqlite"
)

type DBConfig struct {
	Driver Driver `default:"mysql" enum:"mysql,sqlite" env:"HIGHLIGHTS_DATABASE_DRIVER" help:"Database driver (mysql or sqlite)"`
	DSN    string `env:"HIGHLIGHTS_DATABASE_DSN" help:"Database DSN (MySQL DSN or SQLite file path)"`
	User   string `env:"HIGHLIGHTS_DATABASE_USER" help:"Database user, overrides the DSN"`
	Pass   string `env:"HIGHLIGHTS_DATABASE_PASS" help:"Database password, overrides the DSN"`
}

// OpenDB opens and pings the configured database.
func OpenDB(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if len(cfg.DSN) == 0 {
		return nil, fmt.Errorf("--database-dsn flag or HIGHLIGHTS_DATABASE_DSN environment variable required")
	}

	var (
		dbconn *sql.DB
		err    error
	)

	switch cfg.Driver {
	case DriverMySQL, "":
		dbconn, err = openMySQL(cfg)
	case DriverSQLite:
		dbconn, err = openSQLite(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := dbconn.PingContext(ctx); err != nil {
		dbconn.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	return dbconn, nil
}

func openMySQL(cfg DBConfig) (*sql.DB, error) {
	dbcfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if user := cfg.User; len(user) > 0 {
		dbcfg.User = user
	}
	if pass := cfg.Pass; len(pass) > 0 {
		dbcfg.Passwd = pass
	}

	dbcfg.ParseTime = true
	dbcfg.Loc = time.UTC

	connector, err := mysql.NewConnector(dbcfg)
	if err != nil {
		return nil, err
	}

	dbconn := sql.OpenDB(connector)
	dbconn.SetConnMaxLifetime(time.Minute * 3)
	dbconn.SetMaxOpenConns(10)
	dbconn.SetMaxIdleConns(5)

	return dbconn, nil
}

// SQLiteDSN adds the connection parameters the queries in this package
// depend on. Timestamps must be written as text that sorts chronologically.
func SQLiteDSN(path string) string {
	dsn := path
	params := url.Values{}
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		params, _ = url.ParseQuery(dsn[i+1:])
		dsn = dsn[:i]
	}
	if params.Get("_time_format") == "" {
		params.Set("_time_format", "sqlite")
	}
	if params.Get("_txlock") == "" {
		params.Set("_txlock", "immediate")
	}
	params.Add("_pragma", "busy_timeout(5000)")

	return dsn + "?" + params.Encode()
}

func openSQLite(path string) (*sql.DB, error) {
	dbconn, err := sql.Open("sqlite", SQLiteDSN(path))
	if err != nil {
		return nil, err
	}
	// a single writer keeps transactions from deadlocking on the file lock
	dbconn.SetMaxOpenConns(1)
	return dbconn, nil
}
