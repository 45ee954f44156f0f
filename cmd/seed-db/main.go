// Command seed-db inserts the demo coupon set into PostgreSQL so the
// simulator has something to select against on a fresh database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/coupon"
	"github.com/xenking/promo-engine/internal/repository"
)

func main() {
	var databaseURL string
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

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := coupon.NewService(repository.NewCouponStore(pool), repository.NewUsageLedger(pool))

	for _, c := range demoCoupons(time.Now()) {
		err := svc.CreateCoupon(ctx, c)
		if errors.Is(err, coupon.ErrDuplicateCode) {
			slog.Info("coupon already present, skipping", slog.String("code", c.Code))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "create coupon %s", c.Code)
		}
		slog.Info("coupon created", slog.String("code", c.Code))
	}
	return nil
}

func demoCoupons(now time.Time) []coupon.Coupon {
	var (
		minCart50   = decimal.NewFromInt(50)
		minCart200  = decimal.NewFromInt(200)
		maxOff50    = decimal.NewFromInt(50)
		usageLimit1 = 1
	)
	return []coupon.Coupon{
		{
			Code: "WELCOME10",
			Description: "Flat 10 off for new users",
			DiscountType: coupon.DiscountFlat,
			DiscountValue: decimal.NewFromInt(10),
			ValidFrom: now,
			ValidUntil: now.AddDate(0, 0, 30),
			UsageLimitPerUser: &usageLimit1,
			Eligibility: &coupon.Eligibility{
				MinCartValue: &minCart50,
				FirstOrderOnly: true,
			},
			IsActive: true,
		},
		{
			Code: "SUMMER20",
			Description: "20% off on electronics",
			DiscountType: coupon.DiscountPercent,
			DiscountValue: decimal.NewFromInt(20),
			MaxDiscountAmount: &maxOff50,
			ValidFrom: now,
			ValidUntil: now.AddDate(0, 0, 7),
			Eligibility: &coupon.Eligibility{
				ApplicableCategories: []string{"electronics"},
			},
			IsActive: true,
		},
		{
			Code: "VIP50",
			Description: "Flat 50 off for Gold/Platinum users on high value orders",
			DiscountType: coupon.DiscountFlat,
			DiscountValue: decimal.NewFromInt(50),
			ValidFrom: now,
			ValidUntil: now.AddDate(0, 0, 60),
			Eligibility: &coupon.Eligibility{
				AllowedUserTiers: []string{"Gold", "Platinum"},
				MinCartValue: &minCart200,
			},
			IsActive: true,
		},
	}
}
