package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/chainarb/core/internal/types"
)

// LogSink writes every notification as a structured log line, adapted
// from a LogAlerter shape — always available, used as the fallback sink
// when no chat/webhook integration is configured.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "notify.log").Logger()}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, result types.ExecutionResult, opp types.Opportunity) error {
	evt := s.log.Info()
	if !result.Success {
		evt = s.log.Warn()
	}
	evt.Str("opportunity_id", result.OpportunityID).
		Str("kind", string(opp.Kind)).
		Str("chain", opp.Chain).
		Str("state", string(result.FinalState)).
		Str("summary", Summary(result)).
		Dur("elapsed", result.Elapsed).
		Msg("execution result")
	return nil
}
