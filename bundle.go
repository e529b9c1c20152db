package reactor

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/petrijr/reactor/internal/engine"
	"github.com/petrijr/reactor/internal/persistence"
	"github.com/petrijr/reactor/pkg/config"
)

// NewFromConfig builds a Reactor from a loaded configuration. When the
// history driver is sqlite or mysql the database is opened here and closed by
// the returned function.
//
// Typical usage:
//
//	cfg, err := config.Load("reactor.yaml")
//	r, closeFn, err := reactor.NewFromConfig(cfg)
//	defer closeFn()
func NewFromConfig(cfg config.Config) (Reactor, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	ecfg := engine.Config{
		Logger:         cfg.Logger(os.Stderr),
		DefaultTimeout: cfg.Timeout(),
	}

	var (
		db      *sql.DB
		err     error
		persist func(*sql.DB) (persistence.Persistence, error)
	)
	switch cfg.History.Driver {
	case config.HistorySQLite:
		db, err = OpenSQLite(cfg.History.DSN)
		persist = engine.NewSQLitePersistence
	case config.HistoryMySQL:
		db, err = OpenMySQL(cfg.History.DSN)
		persist = engine.NewMySQLPersistence
	default:
		return engine.New(ecfg), func() error { return nil }, nil
	}
	if err != nil {
		return nil, nil, err
	}

	p, err := persist(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	ecfg.Persistence = p
	return engine.New(ecfg), db.Close, nil
}

// OpenSQLite opens the SQLite database at dsn with the pure Go driver.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	// One writer at a time; history rows are appended from many goroutines.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	return db, nil
}

// OpenMySQL opens and pings the MySQL database at dsn.
func OpenMySQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}
