// Command binance-venue demonstrates that internal/venue.Adapter is
// implementable against a centralized order book, not just an on-chain
// AMM pool: it builds a venue.Binance, quotes one pair, and prints the
// result. It is not wired into cmd/orchestrator — the core pipeline only
// ever sees the venue.Adapter interface and is configured against
// on-chain DEX venues.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
	"github.com/chainarb/core/internal/venue"
)

func main() {
	tokenA := flag.String("token-a", "BTC", "base token symbol")
	tokenB := flag.String("token-b", "USDT", "quote token symbol")
	amount := flag.String("amount", "1", "amount of token-a to quote")
	testnet := flag.Bool("testnet", true, "use the Binance testnet")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	adapter := venue.NewBinance(venue.BinanceConfig{
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		Testnet:   *testnet,
	}, log)

	amountIn, err := decimal.NewFromString(*amount)
	if err != nil {
		log.Fatal().Err(err).Str("amount", *amount).Msg("invalid amount")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pair := types.Pair{TokenA: *tokenA, TokenB: *tokenB}
	quote, err := adapter.Quote(ctx, pair, amountIn)
	if err != nil {
		log.Fatal().Err(err).Msg("quote failed")
	}

	liquidity, err := adapter.Liquidity(ctx, pair)
	if err != nil {
		log.Fatal().Err(err).Msg("liquidity lookup failed")
	}

	fmt.Printf("%s/%s: price=%s amountOut=%s liquidity=%s\n",
		*tokenA, *tokenB, quote.Price, quote.AmountOut, liquidity)
}
