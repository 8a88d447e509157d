// Command seed-db loads the product catalog, demo customers, demo coupons and
// the back-office API key into the database.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lojinha-dev/lojinha/internal/domain/coupon"
	"github.com/lojinha-dev/lojinha/internal/domain/customer"
	"github.com/lojinha-dev/lojinha/internal/domain/product"
	"github.com/lojinha-dev/lojinha/internal/repository"
)

type productJSON struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Digital  *struct {
		DownloadURL string `json:"download_url"`
		LicenseKey  string `json:"license_key"`
	} `json:"digital,omitempty"`
	Physical *struct {
		Weight float64 `json:"weight"`
		Height float64 `json:"height"`
		Width  float64 `json:"width"`
		Depth  float64 `json:"depth"`
	} `json:"physical,omitempty"`
}

type customerJSON struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	TaxID     string `json:"tax_id"`
	Addresses []struct {
		PostalCode string `json:"postal_code"`
		City       string `json:"city"`
		Region     string `json:"region"`
		Street     string `json:"street"`
		Number     string `json:"number"`
		Complement string `json:"complement"`
	} `json:"addresses"`
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		customersFile string
		apiKey        string
		apiKeyPepper  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&customersFile, "customers-file", "db/seed/customers.json", "path to customers JSON file, skipped when absent")
	flag.StringVar(&apiKey, "api-key", "", "back-office API key to seed (or LOJA_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or LOJA_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("LOJA_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or LOJA_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("LOJA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, customersFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, customersFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCustomers(ctx, pool, customersFile); err != nil {
		return errors.Wrap(err, "seed customers")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var docs []productJSON
	if err := json.Unmarshal(data, &docs); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(docs)))

	repo := repository.NewProductRepository(pool)
	for _, doc := range docs {
		p, err := buildProduct(doc)
		if err != nil {
			return errors.Wrapf(err, "build product %s", doc.SKU)
		}
		if err := repo.Save(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", doc.SKU)
		}
		slog.Info("upserted product", slog.String("sku", p.SKU), slog.String("name", p.Name))
	}
	return nil
}

func buildProduct(doc productJSON) (*product.Product, error) {
	switch {
	case doc.Digital != nil:
		return product.NewDigital(doc.SKU, doc.Name, doc.Category, doc.Price, doc.Stock, product.Digital{
			DownloadURL: doc.Digital.DownloadURL,
			LicenseKey:  doc.Digital.LicenseKey,
		})
	case doc.Physical != nil:
		return product.NewPhysical(doc.SKU, doc.Name, doc.Category, doc.Price, doc.Stock, product.Physical{
			Weight: doc.Physical.Weight,
			Height: doc.Physical.Height,
			Width:  doc.Physical.Width,
			Depth:  doc.Physical.Depth,
		})
	default:
		return product.New(doc.SKU, doc.Name, doc.Category, doc.Price, doc.Stock)
	}
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, customersFile string) error {
	data, err := os.ReadFile(customersFile)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no customers file, skipping", slog.String("path", customersFile))
			return nil
		}
		return errors.Wrap(err, "read customers file")
	}

	var docs []customerJSON
	if err := json.Unmarshal(data, &docs); err != nil {
		return errors.Wrap(err, "parse customers JSON")
	}

	slog.Info("seeding customers", slog.Int("count", len(docs)))

	repo := repository.NewCustomerRepository(pool)
	for _, doc := range docs {
		c, err := customer.New(doc.Name, doc.Email, doc.TaxID)
		if err != nil {
			return errors.Wrapf(err, "build customer %s", doc.Email)
		}
		for _, a := range doc.Addresses {
			addr, err := customer.NewAddress(a.PostalCode, a.City, a.Region, a.Street, a.Number, a.Complement)
			if err != nil {
				return errors.Wrapf(err, "build address for %s", doc.Email)
			}
			c.AddAddress(addr)
		}

		// Seeding is rerun on every deploy, so existing customers are left alone.
		existing, err := repo.FindMatching(ctx, c)
		if err != nil {
			return errors.Wrapf(err, "check existing customer %s", doc.Email)
		}
		if len(existing) > 0 {
			slog.Info("customer exists, skipping", slog.String("email", c.Email))
			continue
		}

		if err := repo.Save(ctx, c); err != nil {
			return errors.Wrapf(err, "insert customer %s", doc.Email)
		}
		slog.Info("inserted customer", slog.String("email", c.Email))
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo coupons")

	repo := repository.NewCouponRepository(pool)

	ten, err := coupon.New("BEMVINDO10", coupon.TypePercentage, decimal.NewFromInt(10), nil, 1000, nil)
	if err != nil {
		return err
	}
	freeShip, err := coupon.New("FRETEGRATIS", coupon.TypeFreeShipping, decimal.Zero, nil, 500, nil)
	if err != nil {
		return err
	}
	books, err := coupon.New("LIVROS25", coupon.TypeValue, decimal.NewFromInt(25), nil, 200, []string{"books"})
	if err != nil {
		return err
	}

	for _, c := range []*coupon.Coupon{ten, freeShip, books} {
		if err := repo.Save(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		slog.Info("upserted coupon", slog.String("code", c.Code))
	}
	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name, active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding back-office API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, upsertAPIKeySQL,
		uuid.NewString(), keyHash, "Back-office key", []string{"back_office"},
	)
	if err != nil {
		return errors.Wrap(err, "upsert back-office API key")
	}

	slog.Info("upserted API key", slog.String("name", "Back-office key"))
	return nil
}
