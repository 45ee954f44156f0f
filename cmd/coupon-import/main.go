// Command coupon-import bulk-loads coupon definitions from gzipped
// JSON-lines files into PostgreSQL. Files are scanned concurrently; a bloom
// filter screens codes already seen in this run so duplicates are skipped
// without a database round trip per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/promo-engine/internal/domain/coupon"
	"github.com/xenking/promo-engine/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: coupon-import [--database-url URL] file.jsonl.gz ...")
		os.Exit(1)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := coupon.NewService(repository.NewCouponStore(pool), repository.NewUsageLedger(pool))

	var (
		mu       sync.Mutex
		seen     = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		imported int
		skipped  int
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			n, dup, err := importFile(ctx, svc, &mu, seen, file)
			mu.Lock()
			imported += n
			skipped += dup
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import finished", slog.Int("imported", imported), slog.Int("skipped", skipped))
	return nil
}

// importFile streams one gzipped JSON-lines file into the store. The bloom
// filter may report false positives; those lines fall through to the store,
// which rejects genuine duplicates, so correctness never depends on it.
func importFile(ctx context.Context, svc *coupon.Service, mu *sync.Mutex, seen *bloom.BloomFilter, path string) (imported, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "gzip reader %s", path)
	}
	defer gz.Close()

	lines := 0
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return imported, skipped, err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		c := coupon.Coupon{IsActive: true}
		if err := json.Unmarshal(line, &c); err != nil {
			return imported, skipped, errors.Wrapf(err, "parse line %d of %s", lines+1, path)
		}
		code := coupon.NormalizeCode(c.Code)

		mu.Lock()
		dup := seen.TestOrAddString(code)
		mu.Unlock()
		if dup {
			skipped++
			continue
		}

		switch err := svc.CreateCoupon(ctx, c); {
		case errors.Is(err, coupon.ErrDuplicateCode):
			skipped++
		case err != nil:
			return imported, skipped, errors.Wrapf(err, "create coupon %s", code)
		default:
			imported++
		}

		lines++
		if lines%progressEvery == 0 {
			slog.Info("progress", slog.String("file", path), slog.Int("lines", lines))
		}
	}
	if err := scanner.Err(); err != nil {
		return imported, skipped, errors.Wrapf(err, "scan %s", path)
	}
	return imported, skipped, nil
}
