package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/plantpass/internal/domain/catalog"
	"github.com/xenking/plantpass/internal/storage/postgres"
)

// catalogFile is the seed document. Field names match the API payloads.
type catalogFile struct {
	Products []struct {
		SKU       string           `json:"SKU"`
		Name      string           `json:"item"`
		UnitPrice *decimal.Decimal `json:"price_ea"`
		SortOrder int              `json:"sort_order"`
	} `json:"products"`
	Discounts []struct {
		Name      string           `json:"name"`
		Kind      string           `json:"type"`
		Rate      *decimal.Decimal `json:"value"`
		SortOrder int              `json:"sort_order"`
	} `json:"discounts"`
	PaymentMethods []struct {
		Name      string `json:"name"`
		SortOrder int    `json:"sort_order"`
	} `json:"payment_methods"`
}

func main() {
	var (
		databaseURL   string
		catalogPath   string
		adminPassword string
		passphrase    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogPath, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file, optionally .gz")
	flag.StringVar(&adminPassword, "admin-password", "", "admin password to seed (or PLANTPASS_SEED_ADMIN_PASSWORD env)")
	flag.StringVar(&passphrase, "passphrase", "", "staff passphrase to seed (or PLANTPASS_SEED_PASSPHRASE env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("PLANTPASS_SEED_ADMIN_PASSWORD")
	}
	if passphrase == "" {
		passphrase = os.Getenv("PLANTPASS_SEED_PASSPHRASE")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogPath, adminPassword, passphrase); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, databaseURL, catalogPath, adminPassword, passphrase string) error {
	f, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := catalog.NewService(
		postgres.NewProductStore(pool),
		postgres.NewDiscountStore(pool),
		postgres.NewPaymentMethodStore(pool),
	)
	if err := importCatalog(ctx, svc, f); err != nil {
		return err
	}

	if adminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return errors.Wrap(err, "hash admin password")
		}
		if err := postgres.NewCredentialStore(pool).SetPasswordHash(ctx, hash); err != nil {
			return errors.Wrap(err, "seed admin password")
		}
		slog.Info("seeded admin password")
	}

	if passphrase != "" {
		if err := postgres.NewSettingsStore(pool).SetPassphrase(ctx, passphrase); err != nil {
			return errors.Wrap(err, "seed passphrase")
		}
		slog.Info("seeded staff passphrase")
	}

	return nil
}

// loadCatalog reads a catalog file, decompressing it when the name ends in
// ".gz".
func loadCatalog(path string) (*catalogFile, error) {
	slog.Info("reading catalog file", slog.String("path", path))

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog file")
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(file)
		if err != nil {
			return nil, errors.Wrap(err, "create gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var f catalogFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}
	return &f, nil
}

// importCatalog replaces every catalog list present in f. Absent lists are
// left untouched.
func importCatalog(ctx context.Context, svc *catalog.Service, f *catalogFile) error {
	if f.Products != nil {
		in := make([]catalog.ProductInput, len(f.Products))
		for i, p := range f.Products {
			in[i] = catalog.ProductInput(p)
		}
		res, err := svc.ReplaceProducts(ctx, in)
		if err != nil {
			return errors.Wrap(err, "replace products")
		}
		logResult("products", res)
	}

	if f.Discounts != nil {
		in := make([]catalog.DiscountInput, len(f.Discounts))
		for i, d := range f.Discounts {
			in[i] = catalog.DiscountInput(d)
		}
		res, err := svc.ReplaceDiscounts(ctx, in)
		if err != nil {
			return errors.Wrap(err, "replace discounts")
		}
		logResult("discounts", res)
	}

	if f.PaymentMethods != nil {
		in := make([]catalog.PaymentMethodInput, len(f.PaymentMethods))
		for i, m := range f.PaymentMethods {
			in[i] = catalog.PaymentMethodInput(m)
		}
		res, err := svc.ReplacePaymentMethods(ctx, in)
		if err != nil {
			return errors.Wrap(err, "replace payment methods")
		}
		logResult("payment methods", res)
	}

	return nil
}

func logResult(what string, res catalog.ReplaceResult) {
	slog.Info("replaced "+what,
		slog.Int("deleted", res.Deleted),
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
	)
}
