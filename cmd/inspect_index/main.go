package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/charleschow/market-matcher/internal/adapters/outbound/marketstore"
	"github.com/charleschow/market-matcher/internal/config"
	"github.com/charleschow/market-matcher/internal/core/indexcache"
	"github.com/charleschow/market-matcher/internal/core/matcher"
	"github.com/charleschow/market-matcher/internal/core/teams"
	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

func main() {
	cfg := config.Load()

	dsn := flag.String("dsn", cfg.MarketStoreDSN, "sqlite path or postgres:// URL")
	sportFlag := flag.String("sport", "nfl", "sport key")
	aliases := flag.String("aliases", cfg.AliasTablePath, "alias table YAML (default: built-in)")
	n := flag.Int("n", 20, "max unindexed groups to list")
	away := flag.String("away", "", "away team to match (optional)")
	home := flag.String("home", "", "home team to match (optional)")
	start := flag.String("start", "", "event start time, ISO-8601 (default: now)")
	flag.Parse()

	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	sport, err := events.ParseSport(*sportFlag)
	if err != nil {
		fail("%v", err)
	}
	table, err := teams.Load(*aliases)
	if err != nil {
		fail("alias table: %v", err)
	}
	norm := teams.NewNormalizer(table)

	store, err := marketstore.Open(*dsn, marketstore.Options{PoolSize: 1})
	if err != nil {
		fail("open store: %v", err)
	}
	defer store.Close()

	cache := indexcache.NewManager(store, norm, indexcache.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	began := time.Now()
	snap, err := cache.Get(ctx, sport)
	if err != nil {
		fail("build index: %v", err)
	}
	ix := snap.Index

	fmt.Printf("sport       %s\n", ix.Sport)
	fmt.Printf("generation  %s\n", ix.Generation)
	fmt.Printf("aliases     %s (%s teams, %d issues)\n", ix.AliasVersion, humanize.Comma(int64(table.TeamCount())), len(table.Issues()))
	fmt.Printf("built       %s in %s\n", humanize.Time(ix.BuiltAt), time.Since(began).Round(time.Millisecond))
	fmt.Printf("contracts   %s\n", humanize.Comma(int64(ix.Contracts)))
	fmt.Printf("pairs       %s\n", humanize.Comma(int64(len(ix.Pairs()))))
	fmt.Printf("keys        %s\n", humanize.Comma(int64(ix.KeyCount())))
	if fi, err := os.Stat(*dsn); err == nil {
		fmt.Printf("store size  %s\n", humanize.Bytes(uint64(fi.Size())))
	}

	if len(ix.Skipped) > 0 {
		reasons := make([]string, 0, len(ix.Skipped))
		for r := range ix.Skipped {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		fmt.Println("\nskipped rows:")
		for _, r := range reasons {
			fmt.Printf("  %-20s %s\n", r, humanize.Comma(int64(ix.Skipped[r])))
		}
	}

	if len(ix.Unindexed) > 0 {
		fmt.Printf("\nunindexed groups: %s\n", humanize.Comma(int64(len(ix.Unindexed))))
		for i, u := range ix.Unindexed {
			if i >= *n {
				fmt.Printf("  ... %d more\n", len(ix.Unindexed)-i)
				break
			}
			partial := ""
			if u.Partial {
				partial = " (partial)"
			}
			fmt.Printf("  %-24s %-18s %s%s  %q\n", u.EventKey, u.Reason, strings.Join(u.Tickers, ","), partial, u.Title)
		}
	}

	if *away == "" && *home == "" {
		return
	}
	if *away == "" || *home == "" {
		fail("-away and -home must be given together")
	}

	startAt := time.Now().UTC()
	if *start != "" {
		body, _ := json.Marshal(map[string]string{"away_team": *away, "home_team": *home, "start_time": *start, "sport": string(sport)})
		var ev matcher.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			fail("%v", err)
		}
		startAt = ev.StartTime
	}

	m := matcher.New(cache, norm, matcher.Options{
		Window:    cfg.MatchWindow,
		Tolerance: decimal.NewFromFloat(cfg.PriceTolerance),
	})
	res := m.Match(ctx, matcher.Event{AwayTeam: *away, HomeTeam: *home, StartTime: startAt, Sport: sport})
	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Printf("\nmatch:\n%s\n", out)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
