package marketstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	"github.com/charleschow/market-matcher/internal/pool"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Options bounds how hard the reader leans on the store.
type Options struct {
	PoolSize       int
	AcquireTimeout time.Duration
	ReadRPS        float64 // 0 disables the limiter
}

// Store reads active market contracts in bulk. It owns no schema beyond
// the local sqlite development table; a postgres store is read as-is.
type Store struct {
	db      *sql.DB
	dialect dialect
	conns   *pool.Pool[*sql.Conn]
	limiter *rate.Limiter
}

// Open connects to a "postgres://" URL with lib/pq or treats dsn as a
// sqlite file path.
func Open(dsn string, opts Options) (*Store, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 4
	}

	var (
		db  *sql.DB
		d   dialect
		err error
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		d = dialectPostgres
		db, err = sql.Open("postgres", dsn)
	} else {
		d = dialectSQLite
		db, err = openSQLite(dsn)
	}
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(opts.PoolSize)
	db.SetMaxIdleConns(opts.PoolSize)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("marketstore: ping: %w", err)
	}

	conns, err := pool.New(pool.Options[*sql.Conn]{
		Size:           opts.PoolSize,
		AcquireTimeout: opts.AcquireTimeout,
		Open:           db.Conn,
		Close:          func(c *sql.Conn) error { return c.Close() },
		Healthy: func(ctx context.Context, c *sql.Conn) bool {
			return c.PingContext(ctx) == nil
		},
		IsBroken: isBrokenConn,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, dialect: d, conns: conns}
	if opts.ReadRPS > 0 {
		burst := int(opts.ReadRPS)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.ReadRPS), burst)
	}

	telemetry.Infof("marketstore: opened %s pool=%d", redact(dsn), opts.PoolSize)
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create market store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init market schema: %w", err)
	}
	return db, nil
}

const schema = `CREATE TABLE IF NOT EXISTS markets (
	ticker        TEXT PRIMARY KEY,
	event_ticker  TEXT,
	title         TEXT,
	yes_sub_title TEXT,
	yes_price     REAL,
	no_price      REAL,
	close_time    TEXT,
	status        TEXT NOT NULL DEFAULT 'active',
	sport         TEXT,
	volume        INTEGER,
	raw           TEXT
);
CREATE INDEX IF NOT EXISTS idx_markets_status_sport ON markets(status, sport);`

func (s *Store) Close() error {
	perr := s.conns.Close()
	return errors.Join(perr, s.db.Close())
}

// PoolStats exposes the connection guard for diagnostics.
func (s *Store) PoolStats() pool.Stats { return s.conns.Stats() }

// rebind rewrites "?" placeholders to "$n" for postgres.
func (s *Store) rebind(q string) string {
	if s.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isBrokenConn(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}

// redact drops the password from a postgres URL before logging.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		creds = creds[:i] + ":***"
	}
	return dsn[:scheme+3] + creds + dsn[at:]
}
