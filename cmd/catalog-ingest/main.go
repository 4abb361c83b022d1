// Command catalog-ingest imports accessory feeds published by suppliers.
// Feeds are large gzip-compressed files of pipe-separated lines
// (SKU|NAME|PRICE). An accessory is only trusted when its SKU appears in at
// least two independent feeds; single-feed entries are treated as supplier
// noise and dropped.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/storage/postgres"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	numFeeds      = 3
	progressEvery = 5_000_000
	minSKULen     = 6
	maxSKULen     = 24
)

// accessoryLine is one parsed feed entry.
type accessoryLine struct {
	sku   string
	name  string
	price decimal.Decimal
}

// feedResult holds candidate entries found in a single feed during pass 2.
type feedResult struct {
	candidates map[string]accessoryLine
	seenIn     map[string]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing accessoriesN.gz feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	feeds := make([]string, numFeeds)
	for i := range numFeeds {
		feeds[i] = filepath.Join(dataDir, fmt.Sprintf("accessories%d.gz", i+1))
	}
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	// Pass 1: build one bloom filter of SKUs per feed, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("feeds", numFeeds))

	filters, err := buildBloomFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: collect entries whose SKU appears in 2+ feeds.
	slog.Info("pass 2: finding cross-confirmed accessories")

	accessories, err := findConfirmedAccessories(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "find confirmed accessories")
	}

	slog.Info("confirmed accessories", slog.Int("count", len(accessories)))

	if len(accessories) == 0 {
		slog.Info("nothing to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeAccessories(ctx, pool, accessories); err != nil {
		return errors.Wrap(err, "write accessories to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(buildFilterForFeed(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFeed(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFeed(ctx, path, func(line accessoryLine) {
			filter.AddString(line.sku)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("entries", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for feed %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_entries", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findConfirmedAccessories re-streams each feed and checks SKUs against OTHER
// feeds' bloom filters. An accessory is confirmed when its SKU appears in 2 or
// more feeds; the entry from the lowest-numbered feed wins on conflicting
// names or prices.
func findConfirmedAccessories(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]accessoryLine, error) {
	results := make([]feedResult, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(findCandidatesInFeed(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks and entries from all feeds.
	merged := make(map[string]uint)
	entries := make(map[string]accessoryLine)
	for _, r := range results {
		for sku, mask := range r.seenIn {
			merged[sku] |= mask
			if _, ok := entries[sku]; !ok {
				entries[sku] = r.candidates[sku]
			}
		}
	}

	var confirmed []accessoryLine
	for sku, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			confirmed = append(confirmed, entries[sku])
		}
	}

	return confirmed, nil
}

func findCandidatesInFeed(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []feedResult,
) func() error {
	return func() error {
		candidates := make(map[string]accessoryLine)
		seenIn := make(map[string]uint)
		feedBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFeed(ctx, path, func(line accessoryLine) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("entries", count),
				)
			}

			// Check whether this SKU appears in any OTHER feed's filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(line.sku) {
					candidates[line.sku] = line
					seenIn[line.sku] |= feedBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan feed %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_entries", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = feedResult{candidates: candidates, seenIn: seenIn}
		return nil
	}
}

// streamGzFeed opens a gzip-compressed feed and calls fn for each valid line.
// Malformed lines and out-of-range SKUs are skipped silently; supplier feeds
// are noisy.
func streamGzFeed(ctx context.Context, path string, fn func(line accessoryLine)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, ok := parseFeedLine(scanner.Text())
		if !ok {
			continue
		}
		fn(line)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// parseFeedLine parses "SKU|NAME|PRICE".
func parseFeedLine(raw string) (accessoryLine, bool) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 {
		return accessoryLine{}, false
	}

	sku := strings.TrimSpace(parts[0])
	if len(sku) < minSKULen || len(sku) > maxSKULen {
		return accessoryLine{}, false
	}
	name := strings.TrimSpace(parts[1])
	if name == "" {
		return accessoryLine{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil || price.IsNegative() {
		return accessoryLine{}, false
	}

	return accessoryLine{sku: sku, name: name, price: price}, true
}

// writeAccessories upserts all confirmed accessories keyed by SKU.
func writeAccessories(ctx context.Context, pool *pgxpool.Pool, accessories []accessoryLine) error {
	slog.Info("writing accessories to database", slog.Int("count", len(accessories)))

	for i, a := range accessories {
		_, err := pool.Exec(ctx, `INSERT INTO accessories (id, sku, name, price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (sku) DO UPDATE SET name = $3, price = $4`,
			"acc-"+a.sku, a.sku, a.name, a.price)
		if err != nil {
			return errors.Wrapf(err, "upsert accessory %s", a.sku)
		}

		if (i+1)%100 == 0 || i+1 == len(accessories) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(accessories)))
		}
	}

	return nil
}
