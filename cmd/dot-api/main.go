// README: Entry point; loads config, runs migrations, wires modules, serves the API.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dot/internal/config"
	httptransport "dot/internal/http"
	"dot/internal/infra"
	"dot/internal/logger"
	"dot/internal/maps"
	"dot/internal/modules/location"
	"dot/internal/modules/order"
	"dot/internal/modules/pricing"
	"dot/internal/modules/rating"
	"dot/internal/modules/settings"
	"dot/internal/modules/stats"
	"dot/internal/modules/wallet"
	"dot/internal/sms"
	"dot/internal/types"
	"dot/internal/ws"
)

func main() {
	cfg := config.Load()
	logg := logger.New(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("DOT_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}

	if err := infra.Migrate("migrations", cfg.DB.DSN); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password)
	defer redisClient.Close()

	mapsClient, err := maps.NewClient(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("maps init: %v", err)
	}

	settingsSvc := settings.NewService(settings.NewStore(dbPool), settings.Defaults{
		Commission:    cfg.Wallet.DefaultCommission,
		TaxiBase:      cfg.Pricing.TaxiBase,
		TaxiPerKm:     cfg.Pricing.TaxiPerKm,
		DeliveryBase:  cfg.Pricing.DeliveryBase,
		DeliveryPerKm: cfg.Pricing.DeliveryPerKm,
	})

	walletSvc := wallet.NewService(wallet.NewStore(dbPool), settingsSvc, logg)

	pricingSvc := pricing.NewService(mapsClient, settingsSvc, pricing.Defaults{
		TaxiBase:      cfg.Pricing.TaxiBase,
		TaxiPerKm:     cfg.Pricing.TaxiPerKm,
		DeliveryBase:  cfg.Pricing.DeliveryBase,
		DeliveryPerKm: cfg.Pricing.DeliveryPerKm,
		LookupTimeout: cfg.Pricing.LookupTimeout,
	})

	locationSvc := location.NewService(location.NewStore(redisClient))

	hub := ws.NewHub(logg)
	wsHandler := ws.NewHandler(hub, locationSvc, logg)

	smsSender := sms.New(sms.Config{
		Provider: cfg.SMS.Provider,
		APIKey:   cfg.SMS.APIKey,
		SenderID: cfg.SMS.SenderID,
		LinkBase: cfg.SMS.LinkBase,
	}, logg)

	orderSvc := order.NewService(order.NewStore(dbPool), order.ServiceDeps{
		Pricer:      pricingSvc,
		Geocoder:    mapsClient,
		Ledger:      walletLedger{walletSvc},
		Commissions: settingsSvc,
		Notifier:    ws.NewNotifier(hub),
		SMS:         smsSender,
		Log:         logg,
	})

	ratingSvc := rating.NewService(rating.NewStore(dbPool), orderSvc)
	statsSvc := stats.NewService(dbPool)

	server := httptransport.NewServer(cfg.HTTP.Addr, httptransport.ServerDeps{
		Orders:    orderSvc,
		Wallets:   walletSvc,
		Ratings:   ratingSvc,
		Settings:  settingsSvc,
		Stats:     statsSvc,
		Locations: locationSvc,
		WS:        wsHandler,
		Verifier:  verifier,
		Log:       logg,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error("shutdown", logger.Err(err))
		}
	}()

	if err := server.Run(); err != nil {
		log.Fatal(err)
	}
}

// walletLedger adapts the wallet service to the order module's ledger seam:
// a declined deduction comes back as a flag, not an error.
type walletLedger struct {
	wallets *wallet.Service
}

func (l walletLedger) CanAcceptOrders(ctx context.Context, driverID types.ID) (bool, error) {
	return l.wallets.CanAcceptOrders(ctx, driverID)
}

func (l walletLedger) DeductCommission(ctx context.Context, driverID types.ID, amount types.Money, orderID types.ID) (bool, error) {
	_, err := l.wallets.DeductCommission(ctx, driverID, amount, orderID)
	if errors.Is(err, wallet.ErrInsufficientBalance) {
		return true, nil
	}
	return false, err
}

func (l walletLedger) RefundCommission(ctx context.Context, driverID types.ID, amount types.Money, orderID types.ID) error {
	_, err := l.wallets.Refund(ctx, driverID, amount, orderID)
	return err
}
