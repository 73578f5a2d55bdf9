// Package httpapi implements the exposed HTTP/RPC surface (spec.md §6.3,
// via Orchestrator C11): health/balance reads, and the two operator
// override actions (/execute, /webhook/approve) that both resolve
// through Orchestrator.Force — SPEC_FULL.md §12's Open Question #2.
// Grounded on a health-server shape, rebuilt on gin rather than a bare
// net/http mux, plus gin-contrib/cors for the dashboard origin and
// gorilla/websocket for the live execution feed (stream.go).
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/chainadapter"
	"github.com/chainarb/core/internal/orchestrator"
	"github.com/chainarb/core/internal/types"
)

// Recorder is the metrics collaborator, satisfied by internal/metrics.Recorder.
type Recorder interface {
	GinMiddleware() gin.HandlerFunc
}

// BalanceTarget names one chain's wallet and the tokens GET /balances
// reports for it.
type BalanceTarget struct {
	Adapter chainadapter.Adapter
	Wallet  string
	Tokens  []string
}

// Config holds the HTTP surface's own settings.
type Config struct {
	Port           int
	AuthToken      string // required header value for /execute, /webhook/approve
	AllowedOrigins []string
	BalanceTimeout time.Duration
}

// Server is the gin-based HTTP surface wired to one Orchestrator.
type Server struct {
	cfg      Config
	engine   *gin.Engine
	server   *http.Server
	orch     *orchestrator.Orchestrator
	balances map[string]BalanceTarget
	stream   *StreamHub
	log      zerolog.Logger
}

// executeRequest is the body for POST /execute and POST /webhook/approve,
// per spec.md §6.3. Kind/Chain are accepted for the caller's own
// bookkeeping but are not checked: the Orchestrator resolves the
// opportunity from id alone, and they are never used to fabricate one.
type executeRequest struct {
	ID    string     `json:"id" binding:"required"`
	Kind  types.Kind `json:"kind"`
	Chain string     `json:"chain"`
}

// executionResultDTO mirrors types.ExecutionResult for JSON, flattening
// the Error field to a string since error has no natural JSON form.
type executionResultDTO struct {
	OpportunityID      string          `json:"opportunity_id"`
	Success            bool            `json:"success"`
	RealizedProfitUSD  decimal.Decimal `json:"realized_profit_usd"`
	RealizedGasCostUSD decimal.Decimal `json:"realized_gas_cost_usd"`
	TxRefs             []types.TxRef   `json:"tx_refs"`
	ElapsedMS          int64           `json:"elapsed_ms"`
	Error              string          `json:"error,omitempty"`
	FinalState         types.State     `json:"final_state"`
	RecordedAt         time.Time       `json:"recorded_at"`
}

func toDTO(r types.ExecutionResult) executionResultDTO {
	dto := executionResultDTO{
		OpportunityID:      r.OpportunityID,
		Success:            r.Success,
		RealizedProfitUSD:  r.RealizedProfitUSD,
		RealizedGasCostUSD: r.RealizedGasCostUSD,
		TxRefs:             r.TxRefs,
		ElapsedMS:          r.Elapsed.Milliseconds(),
		FinalState:         r.FinalState,
		RecordedAt:         r.RecordedAt,
	}
	if r.Error != nil {
		dto.Error = r.Error.Error()
	}
	return dto
}

// New builds a Server. recorder may be nil to skip API-latency metrics
// (used by tests that don't need a Prometheus registry).
func New(cfg Config, orch *orchestrator.Orchestrator, balances map[string]BalanceTarget, recorder Recorder, stream *StreamHub, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowMethods = []string{"GET", "POST"}
		engine.Use(cors.New(corsCfg))
	}

	if recorder != nil {
		engine.Use(recorder.GinMiddleware())
	}

	if cfg.BalanceTimeout <= 0 {
		cfg.BalanceTimeout = 5 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		orch:     orch,
		balances: balances,
		stream:   stream,
		log:      log.With().Str("component", "httpapi").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/balances", s.handleBalances)
	s.engine.GET("/feed", s.stream.ServeWS)

	authed := s.engine.Group("/")
	authed.Use(s.requireAuthToken)
	authed.POST("/execute", s.handleExecute)
	authed.POST("/webhook/approve", s.handleExecute)
}

func (s *Server) requireAuthToken(c *gin.Context) {
	if s.cfg.AuthToken == "" {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "api auth token not configured"})
		return
	}
	got := c.GetHeader("Authorization")
	if got != "Bearer "+s.cfg.AuthToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer token"})
		return
	}
	c.Next()
}

func (s *Server) handleHealth(c *gin.Context) {
	health := s.orch.Health()
	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func (s *Server) handleBalances(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.BalanceTimeout)
	defer cancel()

	out := make(map[string]map[string]string, len(s.balances))
	for chain, target := range s.balances {
		perToken := make(map[string]string, len(target.Tokens))
		for _, token := range target.Tokens {
			amount, err := target.Adapter.GetBalance(ctx, token, target.Wallet)
			if err != nil {
				s.log.Warn().Err(err).Str("chain", chain).Str("token", token).Msg("balance query failed")
				continue
			}
			perToken[token] = amount.String()
		}
		out[chain] = perToken
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.orch.Force(c.Request.Context(), req.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toDTO(result))
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("starting http api")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("http api server error")
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi: shutdown server: %w", err)
	}
	return nil
}
