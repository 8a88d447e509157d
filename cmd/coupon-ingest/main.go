// Command coupon-ingest loads promo code dumps into the coupons table. Codes
// appear in three large gzip files; only codes present in at least two files
// are considered valid. Bloom filters keep the cross-file membership checks
// in memory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lojinha-dev/lojinha/internal/domain/coupon"
	"github.com/lojinha-dev/lojinha/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numDumps      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10

	// Line scans check the context in batches to keep the hot loop tight.
	ctxCheckEvery = 4096
	scanBufSize   = 1 << 20
)

// codeRule describes the discount to attach to a known promo code.
type codeRule struct {
	typ        coupon.Type
	value      string
	maxUses    int
	categories []string
}

var codeRules = map[string]codeRule{
	"FIFTYOFF": {typ: coupon.TypePercentage, value: "50", maxUses: 1000},
	"SIXTYOFF": {typ: coupon.TypePercentage, value: "60", maxUses: 1000},
	"GNULINUX": {typ: coupon.TypePercentage, value: "15", maxUses: 100_000},
	"OVER9000": {typ: coupon.TypeValue, value: "9", maxUses: 9000},
	"FRETEOFF": {typ: coupon.TypeFreeShipping, value: "0", maxUses: 100_000},
	"LIVROS20": {typ: coupon.TypePercentage, value: "20", maxUses: 50_000, categories: []string{"books"}},
}

var defaultRule = codeRule{typ: coupon.TypePercentage, value: "10", maxUses: 100_000}

func ruleFor(code string) codeRule {
	if rule, ok := codeRules[code]; ok {
		return rule
	}
	return defaultRule
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing couponbaseN.gz files")
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
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	dumps, err := discoverDumps(dataDir)
	if err != nil {
		return err
	}

	ing := &ingest{dumps: dumps}

	slog.Info("pass 1: building per-dump bloom filters", slog.Int("dumps", len(dumps)))
	if err := ing.buildFilters(ctx); err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: collecting codes shared across dumps")
	codes, err := ing.sharedCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "collect shared codes")
	}

	slog.Info("shared codes found", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		slog.Info("nothing to insert")
		return nil
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, repository.NewCouponRepository(pool), codes); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}
	return nil
}

// discoverDumps resolves the expected couponbaseN.gz paths and verifies each
// one exists before any streaming starts.
func discoverDumps(dataDir string) ([]string, error) {
	dumps := make([]string, 0, numDumps)
	for i := 1; i <= numDumps; i++ {
		path := filepath.Join(dataDir, fmt.Sprintf("couponbase%d.gz", i))
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "check dump %s", path)
		}
		dumps = append(dumps, path)
	}
	return dumps, nil
}

// ingest runs the two streaming passes over the promo code dumps.
type ingest struct {
	dumps   []string
	filters []*bloom.BloomFilter
}

// buildFilters streams every dump once, concurrently, and keeps one bloom
// filter of its codes.
func (ing *ingest) buildFilters(ctx context.Context) error {
	ing.filters = make([]*bloom.BloomFilter, len(ing.dumps))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range ing.dumps {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			seen, err := eachCode(ctx, path, i, "pass 1", func(code string) { filter.AddString(code) })
			if err != nil {
				return errors.Wrapf(err, "filter dump %d", i+1)
			}
			slog.Info("pass 1 dump done", slog.Int("dump", i+1), slog.Uint64("codes", seen))
			ing.filters[i] = filter
			return nil
		})
	}
	return g.Wait()
}

// sharedCodes streams every dump a second time and keeps codes that occur in
// at least two dumps. A code counts for a dump only when some other dump's
// filter also claims it, so each worker reports real cross-dump candidates
// and the tally below needs no positional bookkeeping.
func (ing *ingest) sharedCodes(ctx context.Context) ([]string, error) {
	found := make(chan map[string]struct{}, len(ing.dumps))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range ing.dumps {
		g.Go(func() error {
			candidates := make(map[string]struct{})
			seen, err := eachCode(gctx, path, i, "pass 2", func(code string) {
				if ing.inOtherDump(code, i) {
					candidates[code] = struct{}{}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan dump %d", i+1)
			}
			slog.Info("pass 2 dump done",
				slog.Int("dump", i+1),
				slog.Uint64("codes", seen),
				slog.Int("candidates", len(candidates)),
			)
			found <- candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(found)

	// Each worker contributes a code at most once, so the tally is the number
	// of dumps that both contain the code and cross-match another dump.
	tally := make(map[string]int)
	for candidates := range found {
		for code := range candidates {
			tally[code]++
		}
	}

	var shared []string
	for code, n := range tally {
		if n >= 2 {
			shared = append(shared, code)
		}
	}
	return shared, nil
}

// inOtherDump reports whether any filter except the self one claims the code.
func (ing *ingest) inOtherDump(code string, self int) bool {
	for j, f := range ing.filters {
		if j != self && f.TestString(code) {
			return true
		}
	}
	return false
}

// eachCode streams a gzip dump line by line, filters out malformed codes and
// feeds the rest to fn. It returns the number of well-formed codes seen.
func eachCode(ctx context.Context, path string, idx int, pass string, fn func(code string)) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "gunzip %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, scanBufSize), scanBufSize)

	var lines, seen uint64
	for scanner.Scan() {
		lines++
		if lines%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return seen, err
			}
		}

		code := scanner.Text()
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		seen++
		if seen%progressEvery == 0 {
			slog.Info(pass+" progress", slog.Int("dump", idx+1), slog.Uint64("codes", seen))
		}
		fn(code)
	}
	if err := scanner.Err(); err != nil {
		return seen, errors.Wrapf(err, "scan %s", path)
	}
	return seen, nil
}

// writeCoupons upserts all valid coupon codes into the database.
func writeCoupons(ctx context.Context, repo *repository.CouponRepository, codes []string) error {
	slog.Info("writing coupons", slog.Int("count", len(codes)))

	for i, code := range codes {
		rule := ruleFor(code)

		value, err := decimal.NewFromString(rule.value)
		if err != nil {
			return errors.Wrapf(err, "parse value for code %s", code)
		}

		c, err := coupon.New(code, rule.typ, value, nil, rule.maxUses, rule.categories)
		if err != nil {
			return errors.Wrapf(err, "build coupon %s", code)
		}
		if err := repo.Save(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}
	return nil
}
