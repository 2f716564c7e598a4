// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"baws-workers/internal/common/errors"
	"baws-workers/internal/common/logger"
)

// Client owns the gateway connection shared by every job worker.
type Client struct {
	zb     zbc.Client
	cfg    ClientConfig
	logger logger.Logger
}

type ClientConfig struct {
	GatewayAddress string
	Plaintext      bool
	// ProbeTimeout bounds one topology request.
	ProbeTimeout time.Duration
	Retry        RetryPolicy
}

// RetryPolicy is exponential backoff capped at MaxDelay. Attempts counts the
// first try.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 4, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// NewClient dials the gateway and waits until it answers a topology request,
// so workers are only opened against a reachable broker.
func NewClient(ctx context.Context, cfg ClientConfig, log logger.Logger) (*Client, error) {
	if cfg.Retry.Attempts < 1 {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}

	zb, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.Plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{zb: zb, cfg: cfg, logger: log.With(map[string]interface{}{"component": "zeebe"})}
	topo, err := withRetry(ctx, cfg.Retry, "topology", c.logger, c.Topology)
	if err != nil {
		zb.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe gateway at %s: %w", cfg.GatewayAddress, err)
	}
	c.logger.Info("zeebe gateway reachable", map[string]interface{}{
		"gateway": cfg.GatewayAddress,
		"brokers": len(topo.GetBrokers()),
	})
	return c, nil
}

// Zeebe returns the raw client job workers are opened on.
func (c *Client) Zeebe() zbc.Client {
	return c.zb
}

func (c *Client) Close() error {
	return c.zb.Close()
}

// Topology sends one topology request under the probe timeout.
func (c *Client) Topology(ctx context.Context) (*pb.TopologyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	return c.zb.NewTopologyCommand().Send(ctx)
}

// HealthCheck reports the gateway unhealthy when it cannot be reached or
// knows no brokers.
func (c *Client) HealthCheck(ctx context.Context) error {
	topo, err := c.Topology(ctx)
	if err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	if len(topo.GetBrokers()) == 0 {
		return fmt.Errorf("zeebe health check failed: gateway reports no brokers")
	}
	return nil
}

// withRetry runs fn until it succeeds, fails permanently, or the policy is
// exhausted. The returned error is already mapped to an application error.
func withRetry[T any](ctx context.Context, p RetryPolicy, op string, log logger.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !retryable(err) || attempt+1 >= p.Attempts {
			return zero, mapError(err, op, attempt+1)
		}

		wait := p.delay(attempt)
		log.Warn("zeebe request failed, retrying", map[string]interface{}{
			"operation":   op,
			"attempt":     attempt + 1,
			"nextRetryIn": wait.String(),
			"error":       err,
		})
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, fmt.Errorf("zeebe %s cancelled after %d attempts: %w", op, attempt+1, ctx.Err())
		}
	}
}

// transientPhrases catch transport errors that never reached gRPC status
// handling.
var transientPhrases = []string{"connection refused", "connection reset", "broken pipe", "unreachable"}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	case codes.Unknown:
		msg := strings.ToLower(err.Error())
		for _, p := range transientPhrases {
			if strings.Contains(msg, p) {
				return true
			}
		}
	}
	return false
}

func mapError(err error, op string, attempts int) error {
	wrapped := fmt.Errorf("zeebe %s failed after %d attempt(s): %w", op, attempts, err)
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError("zeebe", wrapped)
	case codes.NotFound:
		return errors.NewNotFoundError("Zeebe resource", wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
