package marketstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charleschow/market-matcher/internal/core/market"
)

const upsertSQL = `INSERT INTO markets
	(ticker, event_ticker, title, yes_sub_title, yes_price, no_price, close_time, status, sport, volume, raw)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (ticker) DO UPDATE SET
		event_ticker = excluded.event_ticker,
		title = excluded.title,
		yes_sub_title = excluded.yes_sub_title,
		yes_price = excluded.yes_price,
		no_price = excluded.no_price,
		close_time = excluded.close_time,
		status = excluded.status,
		sport = excluded.sport,
		volume = excluded.volume,
		raw = excluded.raw`

// UpsertContracts writes contracts in one transaction. The matching engine
// never writes in production; this seeds local stores and fixtures.
func (s *Store) UpsertContracts(ctx context.Context, contracts []market.Contract) error {
	return s.conns.With(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin upsert: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, s.rebind(upsertSQL))
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, c := range contracts {
			raw, err := rawJSON(c)
			if err != nil {
				return err
			}
			status := c.Status
			if status == "" {
				status = market.StatusActive
			}
			if _, err := stmt.ExecContext(ctx,
				c.Ticker, nullStr(c.EventTicker), nullStr(c.Title), nullStr(c.YesSubTitle),
				c.YesPrice, c.NoPrice, nullTime(c.CloseTime), string(status),
				nullStr(string(c.Sport)), c.Volume, raw,
			); err != nil {
				return fmt.Errorf("upsert %s: %w", c.Ticker, err)
			}
		}
		return tx.Commit()
	})
}

func rawJSON(c market.Contract) (sql.NullString, error) {
	if len(c.Raw) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(c.Raw)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal raw %s: %w", c.Ticker, err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
