package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/chainarb/core/internal/types"
)

// wireResult is the JSON payload published to the broadcast subject —
// shaped like a from/topic/payload/timestamp message envelope but
// carrying an ExecutionResult instead of a trading decision.
type wireResult struct {
	OpportunityID      string    `json:"opportunity_id"`
	Kind               string    `json:"kind"`
	Chain              string    `json:"chain"`
	State              string    `json:"state"`
	Success            bool      `json:"success"`
	RealizedProfitUSD  string    `json:"realized_profit_usd"`
	RealizedGasCostUSD string    `json:"realized_gas_cost_usd"`
	Error              string    `json:"error,omitempty"`
	RecordedAt         time.Time `json:"recorded_at"`
}

// NATSSink publishes every terminal ExecutionResult to a NATS subject, so
// any number of external subscribers (dashboards, a second orchestrator
// instance, an ops console) can observe the fan-out without the
// Coordinator knowing about them individually — the typed broadcast
// channel in place of a shared mutable callback list, adapted from a
// message-bus publish path.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to url and builds a sink publishing to subject.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("chainarb-orchestrator"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("notify: connect nats: %w", err)
	}
	return &NATSSink{nc: nc, subject: subject}, nil
}

// EmbeddedNATS starts an in-process NATS server (no external infra
// required for a local/dev run) and returns a NATSSink connected to it —
// the same nats-server/v2 server.NewServer + ReadyForConnections pattern
// commonly used in tests, promoted here to a real runtime component
// instead of a test fixture.
func EmbeddedNATS(subject string) (*NATSSink, *server.Server, error) {
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		return nil, nil, fmt.Errorf("notify: start embedded nats: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		return nil, nil, fmt.Errorf("notify: embedded nats server not ready")
	}
	sink, err := NewNATSSink(ns.ClientURL(), subject)
	if err != nil {
		ns.Shutdown()
		return nil, nil, err
	}
	return sink, ns, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Close() error {
	s.nc.Close()
	return nil
}

func (s *NATSSink) Send(ctx context.Context, result types.ExecutionResult, opp types.Opportunity) error {
	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}
	payload, err := json.Marshal(wireResult{
		OpportunityID:      result.OpportunityID,
		Kind:               string(opp.Kind),
		Chain:              opp.Chain,
		State:              string(result.FinalState),
		Success:            result.Success,
		RealizedProfitUSD:  result.RealizedProfitUSD.String(),
		RealizedGasCostUSD: result.RealizedGasCostUSD.String(),
		Error:              errMsg,
		RecordedAt:         result.RecordedAt,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal result: %w", err)
	}
	return s.nc.Publish(s.subject, payload)
}
