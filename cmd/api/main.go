package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"crowdfund/internal/domain"
	"crowdfund/internal/escrow"
	"crowdfund/internal/http/handlers"
	httpapi "crowdfund/internal/http/httpapi"
	"crowdfund/internal/infra"
	"crowdfund/internal/store"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer st.Close()

	engineLogger := logger.With().Str("component", "escrow").Logger()
	engine, err := escrow.New(st, escrow.Options{
		Platform:         domain.Identity(cfg.PlatformIdentity),
		FeeNumerator:     cfg.FeeNumerator,
		FeeDenominator:   cfg.FeeDenominator,
		CampaignDuration: cfg.CampaignDuration,
		CampaignDeposit:  cfg.CampaignDeposit,
		ReceiptDeposit:   cfg.ReceiptDeposit,
		Logger:           &engineLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid engine configuration")
	}

	app := handlers.NewApp(engine, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	logger.Info().Str("addr", server.Addr()).Str("driver", cfg.StoreDriver).Msg("API listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
