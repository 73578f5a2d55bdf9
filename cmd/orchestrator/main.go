package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/aggregator"
	"github.com/chainarb/core/internal/chainadapter"
	"github.com/chainarb/core/internal/chainguard"
	"github.com/chainarb/core/internal/config"
	"github.com/chainarb/core/internal/executor"
	"github.com/chainarb/core/internal/httpapi"
	"github.com/chainarb/core/internal/metrics"
	"github.com/chainarb/core/internal/notify"
	"github.com/chainarb/core/internal/orchestrator"
	"github.com/chainarb/core/internal/pricecache"
	"github.com/chainarb/core/internal/queue"
	"github.com/chainarb/core/internal/risk"
	"github.com/chainarb/core/internal/scanner"
	"github.com/chainarb/core/internal/secretstore"
	"github.com/chainarb/core/internal/types"
	"github.com/chainarb/core/internal/venue"
)

func main() {
	configPath := flag.String("config", "", "path to orchestrator.yaml (default: ./configs or .)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.App.LogLevel))

	log.Info().Str("app", cfg.App.Name).Str("env", cfg.App.Environment).Msg("starting chainarb orchestrator")

	secrets, err := secretstore.New(cfg.Vault)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize secret store")
	}

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	stream := httpapi.NewStreamHub()
	hub, closeNotify := buildNotifyHub(cfg, secrets)
	hub.Subscribe(stream)

	riskMgr := risk.New(riskLimitsFromConfig(cfg), blacklistsFromConfig(cfg), oracleFromConfig(cfg))
	queues := queue.New(queueConfigFromConfig(cfg))
	guard := chainguard.NewRegistry(chainguard.DefaultSettings(), reg)
	cache := pricecache.New(cfg.Timeouts.PriceFreshnessTTL)

	var distLock executor.DistLock
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		cache.SetMirror(pricecache.NewMirror(rdb, cfg.Redis.MirrorPrefix, cfg.Redis.MirrorTTL))
		distLock = executor.NewRedisDistLock(rdb, cfg.Redis.DistLockPrefix)
	}

	chainAdapters := make(map[string]chainadapter.Adapter, len(cfg.Chains))
	venueAdapters := make(map[string]venue.Adapter)
	nativeToken := make(map[string]string, len(cfg.Chains))
	balances := make(map[string]httpapi.BalanceTarget, len(cfg.Chains))
	chains := make(map[string]orchestrator.ChainHandle, len(cfg.Chains))

	fees := venue.DefaultFeeSchedule()
	for name, chainCfg := range cfg.Chains {
		adapter := chainadapter.NewMock()
		chainAdapters[name] = adapter
		nativeToken[name] = chainCfg.NativeToken

		for _, venueName := range chainCfg.Venues {
			if _, ok := venueAdapters[venueName]; !ok {
				venueAdapters[venueName] = venue.NewMock(venueName, fees)
			}
		}

		if len(chainCfg.BalanceTokens) > 0 {
			balances[name] = httpapi.BalanceTarget{
				Adapter: adapter,
				Wallet:  chainCfg.WalletAddress,
				Tokens:  chainCfg.BalanceTokens,
			}
		}

		chains[name] = orchestrator.ChainHandle{Adapter: adapter}
	}

	agg := aggregator.New(aggregator.Gates{
		MinProfitUSD:       decimal.NewFromFloat(cfg.Gates.MinProfitUSD),
		MaxGasCostFraction: decimal.NewFromFloat(cfg.Gates.MaxGasCostFraction),
		MinLiquidityUSD:    decimal.NewFromFloat(cfg.Gates.MinLiquidityUSD),
		MaxPriceImpact:     decimal.NewFromFloat(cfg.Gates.MaxPriceImpact),
		OpportunityTTL:     cfg.Gates.OpportunityTTL,
	}, riskMgr, nil)

	execCfg := executor.DefaultConfig()
	execCfg.StepDeadline = cfg.Timeouts.StepDeadline
	execCfg.ExecutionTimeout = cfg.Timeouts.ExecutionTimeout
	execCfg.FreshnessTTL = cfg.Timeouts.ExecutionFreshnessTTL
	execCfg.MaxConcurrentTrades = int64(cfg.Risk.MaxConcurrentTrades)

	coordinator := executor.New(execCfg, chainAdapters, venueAdapters, nativeToken, oracleFromConfig(cfg), riskMgr, recorder, hub, log.Logger)
	if distLock != nil {
		coordinator.SetDistLock(distLock)
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.ShutdownGrace = cfg.Timeouts.ShutdownGrace
	orchCfg.HealthInterval = time.Duration(cfg.Scanner.HealthIntervalMs) * time.Millisecond
	orchCfg.JitterFraction = cfg.Scanner.JitterFraction
	orchCfg.ScanInterval = make(map[string]time.Duration, len(cfg.Scanner.IntervalMs))
	for name, ms := range cfg.Scanner.IntervalMs {
		orchCfg.ScanInterval[name] = time.Duration(ms) * time.Millisecond
	}

	orch := orchestrator.New(orchCfg, chains, agg, riskMgr, queues, coordinator, log.Logger)

	for name, chainCfg := range cfg.Chains {
		fees := venue.DefaultFeeSchedule()
		venueCfgs := make(map[string]scanner.VenueConfig, len(chainCfg.Venues))
		for _, venueName := range chainCfg.Venues {
			venueCfgs[venueName] = scanner.VenueConfig{Adapter: venueAdapters[venueName], Fees: fees}
		}

		providers := make([]scanner.LoanProvider, 0, len(chainCfg.LoanProviders))
		for _, p := range chainCfg.LoanProviders {
			providers = append(providers, scanner.LoanProvider{
				ID:           p.ID,
				MaxLiquidity: decimal.NewFromFloat(p.MaxLiquidityUSD),
				FeeBps:       p.FeeBps,
			})
		}

		sc := scanner.New(scanner.Config{
			Chain:               name,
			Venues:              venueCfgs,
			Pairs:               pairsFromConfig(chainCfg.Pairs),
			TriangularCycles:    chainCfg.TriangularCycles,
			FlashLoanPairs:      pairsFromConfig(chainCfg.FlashLoanPairs),
			MinProfitPct:        cfg.Gates.MinProfitPctDecimal(),
			QuoteDeadline:       cfg.Timeouts.QuoteDeadline,
			LoanCatalog:         scanner.NewLoanProviderCatalog(providers),
			LoanCapFraction:     decimal.NewFromFloat(chainCfg.LoanCapFraction),
			FlashLoanCap:        decimal.NewFromFloat(chainCfg.FlashLoanCapUSD),
			EnableCrossExchange: chainCfg.EnableCrossExchange,
			EnableTriangular:    chainCfg.EnableTriangular,
			EnableFlashLoan:     chainCfg.EnableFlashLoan,
		}, cache, guard, orch.RawChannel(), log.Logger)

		handle := chains[name]
		handle.Scanners = append(handle.Scanners, sc)
		chains[name] = handle
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start orchestrator")
	}

	metricsSrv := metrics.NewServer(cfg.API.MetricsPort, reg, log.Logger)
	if err := metricsSrv.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start metrics server")
	}

	apiSrv := httpapi.New(httpapi.Config{
		Port:           cfg.API.Port,
		AuthToken:      cfg.API.AuthToken,
		AllowedOrigins: cfg.API.AllowedOrigins,
		BalanceTimeout: cfg.API.BalanceTimeout,
	}, orch, balances, recorder, stream, log.Logger)
	if err := apiSrv.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start http api")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownGrace)
	defer shutdownCancel()

	if err := orch.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during orchestrator shutdown")
	}
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down http api")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down metrics server")
	}
	if closeNotify != nil {
		closeNotify()
	}

	log.Info().Msg("shutdown complete")
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

func riskLimitsFromConfig(cfg *config.Config) types.PortfolioLimits {
	dailyVolume := make(map[string]decimal.Decimal, len(cfg.Risk.MaxDailyVolumeUSD))
	for chain, v := range cfg.Risk.MaxDailyVolumeUSD {
		dailyVolume[chain] = decimal.NewFromFloat(v)
	}
	return types.PortfolioLimits{
		MaxSingleTradeUSD:   decimal.NewFromFloat(cfg.Risk.MaxSingleTradeUSD),
		MaxDailyVolumeUSD:   dailyVolume,
		MaxGasCostPct:       decimal.NewFromFloat(cfg.Risk.MaxGasCostPct),
		MaxConcurrentTrades: cfg.Risk.MaxConcurrentTrades,
		MinLiquidityRatio:   decimal.NewFromFloat(cfg.Risk.MinLiquidityRatio),
	}
}

func blacklistsFromConfig(cfg *config.Config) types.Blacklists {
	return types.NewBlacklists(cfg.Blacklist.Tokens, cfg.Blacklist.Venues)
}

// oracleFromConfig seeds a RateOracle with the stablecoins every chain's
// gas-cost/profit math assumes are USD-pegged (USDC, USDT, DAI at 1).
// Nothing in this binary calls SetRate, so every other token has no rate
// and USD conversion for it fails closed, per spec.md §9.
func oracleFromConfig(cfg *config.Config) *pricecache.RateOracle {
	return pricecache.NewRateOracle(map[string]decimal.Decimal{
		"USDC": decimal.NewFromInt(1),
		"USDT": decimal.NewFromInt(1),
		"DAI":  decimal.NewFromInt(1),
	})
}

func queueConfigFromConfig(cfg *config.Config) queue.Config {
	capacity := make(map[types.Kind]int, len(cfg.Queue.Capacity))
	for kind, v := range cfg.Queue.Capacity {
		capacity[types.Kind(kind)] = v
	}
	weight := make(map[types.Kind]int, len(cfg.Queue.Weights))
	for kind, v := range cfg.Queue.Weights {
		weight[types.Kind(kind)] = v
	}
	return queue.Config{Capacity: capacity, Weight: weight}
}

func pairsFromConfig(pairs []config.PairConfig) []types.Pair {
	out := make([]types.Pair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, types.Pair{TokenA: p.TokenA, TokenB: p.TokenB})
	}
	return out
}

// buildNotifyHub wires every configured notification sink onto one Hub.
// The log sink is always present; Telegram and the NATS broadcast are
// opt-in per spec.md §6.4. The returned closer tears down the embedded
// NATS server, if one was started, and is a no-op otherwise.
func buildNotifyHub(cfg *config.Config, secrets *secretstore.Store) (*notify.Hub, func()) {
	hub := notify.NewHub(cfg.Notify.Timeout, log.Logger)
	hub.Subscribe(notify.NewLogSink(log.Logger))

	var closers []func()

	if cfg.Notify.Telegram.Enabled {
		token := cfg.Notify.Telegram.BotToken
		if token == "" {
			if resolved, err := secrets.GetString(context.Background(), "telegram", "bot_token", "CHAINARB_TELEGRAM_BOT_TOKEN"); err == nil {
				token = resolved
			}
		}
		sink, err := notify.NewTelegramSink(token, cfg.Notify.Telegram.ChatIDs)
		if err != nil {
			log.Warn().Err(err).Msg("telegram notification sink disabled")
		} else {
			hub.Subscribe(sink)
		}
	}

	if cfg.Notify.NATS.Enabled {
		var sink *notify.NATSSink
		var err error
		if cfg.Notify.NATS.Embed {
			var ns *server.Server
			sink, ns, err = notify.EmbeddedNATS(cfg.Notify.NATS.Subject)
			if err == nil {
				closers = append(closers, ns.Shutdown)
			}
		} else {
			sink, err = notify.NewNATSSink(cfg.Notify.NATS.URL, cfg.Notify.NATS.Subject)
		}
		if err != nil {
			log.Warn().Err(err).Msg("nats notification sink disabled")
		} else {
			hub.Subscribe(sink)
			closers = append(closers, func() { _ = sink.Close() })
		}
	}

	return hub, func() {
		for _, c := range closers {
			c()
		}
	}
}
