package venue

import (
	"context"
	"fmt"
	"strconv"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/chainarb/core/internal/types"
)

// Binance is a reference venue adapter backed by a real market-data client.
// It is exercised only by an example binary (cmd/examples/binance-venue),
// never by the core pipeline, which only ever sees the venue.Adapter
// interface and is otherwise wired to on-chain DEX venues. Kept here to
// demonstrate that the interface is implementable against a centralized
// order book, not just AMM pools, in the same spirit as a BinanceExchange
// standing alongside a MockExchange behind one shared Exchange interface.
type Binance struct {
	client  *binance.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// BinanceConfig holds the credentials and network selection for the
// reference adapter.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	Testnet   bool
	// RequestsPerSecond bounds the rate of calls against Binance's REST
	// API, staying well under its weight limits. Zero uses a conservative
	// default (10/s).
	RequestsPerSecond float64
}

// NewBinance constructs a reference Binance venue adapter. Quote and
// Liquidity calls are read-only (book ticker, depth); BuildSwap returns an
// error since Binance is a centralized venue and has no on-chain swap to
// build. Every read call is rate-limited client-side (spec.md §5's
// per-venue politeness), independent of quoteDeadline.
func NewBinance(cfg BinanceConfig, log zerolog.Logger) *Binance {
	if cfg.Testnet {
		binance.UseTestnet = true
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Binance{
		client:  binance.NewClient(cfg.APIKey, cfg.SecretKey),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log.With().Str("venue", "binance").Logger(),
	}
}

func (b *Binance) Name() string { return "binance" }

func symbolFor(pair types.Pair) string {
	return pair.TokenA + pair.TokenB
}

func (b *Binance) Quote(ctx context.Context, pair types.Pair, amountIn decimal.Decimal) (Quote, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return Quote{}, fmt.Errorf("binance quote: rate limit wait: %w", err)
	}

	symbol := symbolFor(pair)
	tickers, err := b.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("binance quote %s: %w", symbol, err)
	}
	if len(tickers) == 0 {
		return Quote{}, fmt.Errorf("binance quote %s: no book ticker", symbol)
	}

	bidPrice, err := decimal.NewFromString(tickers[0].BidPrice)
	if err != nil {
		return Quote{}, fmt.Errorf("binance quote %s: parse bid price: %w", symbol, err)
	}

	amountOut := amountIn.Mul(bidPrice)
	return Quote{
		Price:       bidPrice,
		AmountOut:   amountOut,
		PriceImpact: decimal.Zero, // best-bid only; price impact is not estimated
	}, nil
}

func (b *Binance) Liquidity(ctx context.Context, pair types.Pair) (decimal.Decimal, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("binance liquidity: rate limit wait: %w", err)
	}

	symbol := symbolFor(pair)
	depth, err := b.client.NewDepthService().Symbol(symbol).Limit(50).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance liquidity %s: %w", symbol, err)
	}

	total := decimal.Zero
	for _, bid := range depth.Bids {
		price, err := strconv.ParseFloat(bid.Price, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(bid.Quantity, 64)
		if err != nil {
			continue
		}
		total = total.Add(decimal.NewFromFloat(price * qty))
	}
	return total, nil
}

// BuildSwap is unsupported: Binance has no on-chain swap transaction, only
// order placement, which is out of this adapter's read-only scope.
func (b *Binance) BuildSwap(ctx context.Context, pair types.Pair, dir SwapDirection, amountIn, minOut decimal.Decimal, recipient string, deadline int64) (any, error) {
	return nil, fmt.Errorf("binance venue adapter is read-only: no swap construction")
}
