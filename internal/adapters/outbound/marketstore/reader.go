package marketstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/charleschow/market-matcher/internal/core/market"
	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/pool"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

const selectColumns = `SELECT ticker, event_ticker, title, yes_sub_title, yes_price, no_price,
	close_time, status, sport, volume, raw FROM markets`

// LoadActive returns every active contract for sport in one bulk read on a
// single leased connection. Rows with a null or empty sport are included.
// When the sport filter matches nothing, all active rows are returned and
// the index builder narrows them by team names.
func (s *Store) LoadActive(ctx context.Context, sport events.Sport) ([]market.Contract, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("marketstore: rate limit: %w", err)
		}
	}

	start := time.Now()
	var out []market.Contract
	err := s.conns.With(ctx, func(conn *sql.Conn) error {
		var err error
		out, err = s.query(ctx, conn,
			selectColumns+` WHERE LOWER(status) = ? AND (LOWER(sport) = ? OR sport IS NULL OR sport = '')`,
			string(market.StatusActive), string(sport))
		if err != nil || len(out) > 0 {
			return err
		}

		out, err = s.query(ctx, conn, selectColumns+` WHERE LOWER(status) = ?`, string(market.StatusActive))
		if err == nil && len(out) > 0 {
			telemetry.Warnf("marketstore: no %s rows by sport tag, falling back to %d untagged active rows", sport, len(out))
		}
		return err
	})
	if err != nil {
		telemetry.Metrics.StoreReads.WithLabelValues(string(sport), outcome(err)).Inc()
		return nil, fmt.Errorf("marketstore: load %s: %w", sport, err)
	}

	telemetry.Metrics.StoreReads.WithLabelValues(string(sport), "ok").Inc()
	telemetry.Debugf("marketstore: loaded %d %s contracts in %s", len(out), sport, time.Since(start))
	return out, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pool.ErrExhausted):
		return "exhausted"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

func (s *Store) query(ctx context.Context, conn *sql.Conn, q string, args ...any) ([]market.Contract, error) {
	rows, err := conn.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContract(rows *sql.Rows) (market.Contract, error) {
	var (
		c                            market.Contract
		eventTicker, title, subTitle sql.NullString
		status, sport, raw           sql.NullString
		yes, no                      decimal.NullDecimal
		closeTime                    any
		volume                       sql.NullInt64
	)
	if err := rows.Scan(&c.Ticker, &eventTicker, &title, &subTitle, &yes, &no,
		&closeTime, &status, &sport, &volume, &raw); err != nil {
		return c, fmt.Errorf("scan market row: %w", err)
	}

	c.EventTicker = eventTicker.String
	c.Title = title.String
	c.YesSubTitle = subTitle.String
	c.YesPrice = yes.Decimal
	c.NoPrice = no.Decimal
	c.Status = market.Status(strings.ToLower(status.String))
	c.Volume = volume.Int64
	c.CloseTime = scanTime(closeTime)
	if sp, err := events.ParseSport(sport.String); err == nil {
		c.Sport = sp
	}

	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &c.Raw); err != nil {
			telemetry.Debugf("marketstore: %s raw is not JSON: %v", c.Ticker, err)
		}
		fillFromRaw(&c)
	}
	return c, nil
}

// fillFromRaw backfills grouping and hint fields the sync job left in the
// raw payload only.
func fillFromRaw(c *market.Contract) {
	str := func(k string) string {
		s, _ := c.Raw[k].(string)
		return s
	}
	if c.EventTicker == "" {
		c.EventTicker = str("event_ticker")
	}
	if c.YesSubTitle == "" {
		c.YesSubTitle = str("yes_sub_title")
	}
	if c.Title == "" {
		c.Title = str("title")
	}
}

func scanTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		ts, _ := market.ParseTime(t)
		return ts
	case []byte:
		ts, _ := market.ParseTime(string(t))
		return ts
	}
	return time.Time{}
}
