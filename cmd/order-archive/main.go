package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/storage/postgres"
)

const (
	progressEvery  = 1_000
	maxLineBytes   = 1 << 20
	defaultWorkers = 4
)

// orderSource is the read side used by dump.
type orderSource interface {
	ScanAll(ctx context.Context) ([]order.Order, error)
}

// orderSink is the write side used by restore.
type orderSink interface {
	Create(ctx context.Context, o *order.Order) error
}

// counts tallies a restore.
type counts struct {
	restored atomic.Int64
	skipped  atomic.Int64
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: order-archive [flags] dump FILE.jsonl.gz | restore FILE.jsonl.gz...\n")
	flag.PrintDefaults()
}

func main() {
	var (
		databaseURL string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", defaultWorkers, "files restored concurrently")
	flag.Usage = usage
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	args := flag.Args()
	if len(args) < 2 || (args[0] != "dump" && args[0] != "restore") || (args[0] == "dump" && len(args) != 2) {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, args[0], args[1:], workers); err != nil {
		slog.Error("order archive failed", slog.String("command", args[0]), slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order archive completed successfully", slog.String("command", args[0]))
}

func run(ctx context.Context, databaseURL, command string, files []string, workers int) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	repo := postgres.NewOrderRepository(pool)

	if command == "dump" {
		return dumpFile(ctx, repo, files[0])
	}

	var c counts
	if err := restoreFiles(ctx, repo, files, workers, &c); err != nil {
		return err
	}
	slog.Info("restore complete",
		slog.Int64("restored", c.restored.Load()),
		slog.Int64("skipped", c.skipped.Load()),
	)
	return nil
}

func dumpFile(ctx context.Context, src orderSource, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	n, err := dump(ctx, src, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "close %s", path)
	}
	if err != nil {
		return err
	}
	slog.Info("dump complete", slog.String("path", path), slog.Int("orders", n))
	return nil
}

// dump writes every order in src to w as gzip-compressed JSON lines.
func dump(ctx context.Context, src orderSource, w io.Writer) (int, error) {
	orders, err := src.ScanAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "scan orders")
	}

	gz := pgzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	for i := range orders {
		if err := enc.Encode(&orders[i]); err != nil {
			return i, errors.Wrapf(err, "encode order %s", orders[i].ID)
		}
	}
	if err := gz.Close(); err != nil {
		return 0, errors.Wrap(err, "flush gzip")
	}
	return len(orders), nil
}

// restoreFiles restores each archive concurrently, at most workers at a time.
func restoreFiles(ctx context.Context, dst orderSink, files []string, workers int, c *counts) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, path := range files {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "open %s", path)
			}
			defer func() { _ = f.Close() }()

			if err := restore(ctx, dst, f, c); err != nil {
				return errors.Wrapf(err, "restore %s", path)
			}
			slog.Info("file restored", slog.String("path", path))
			return nil
		})
	}
	return g.Wait()
}

// restore creates every order in the archive r. Orders whose identifier
// already exists are skipped, so restoring twice is harmless.
func restore(ctx context.Context, dst orderSink, r io.Reader, c *counts) error {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var o order.Order
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			return errors.Wrapf(err, "decode line %d", line)
		}
		if !order.ValidID(o.ID) {
			return errors.Errorf("line %d: invalid order id %q", line, o.ID)
		}

		switch err := dst.Create(ctx, &o); {
		case errors.Is(err, order.ErrDuplicateID):
			c.skipped.Add(1)
		case err != nil:
			return errors.Wrapf(err, "create order %s", o.ID)
		default:
			if n := c.restored.Add(1); n%progressEvery == 0 {
				slog.Info("restore progress", slog.Int64("restored", n))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan archive")
	}
	return nil
}
