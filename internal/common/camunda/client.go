// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
)

// Client wraps the Zeebe gRPC client with a retried, topology-checked connect.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

type RetryConfig struct {
	MaxRetries uint
	BaseDelay  time.Duration
	MaxJitter  time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 10,
	BaseDelay:  2 * time.Second,
	MaxJitter:  500 * time.Millisecond,
}

// Connect dials the gateway and verifies topology, retrying transient failures.
func Connect(ctx context.Context, config *ClientConfig, log *zap.Logger) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.RetryConfig.MaxRetries == 0 {
		// zero attempts means retry forever
		config.RetryConfig.MaxRetries = 1
	}
	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	zeebeClient, err := retry.DoWithData(
		func() (zbc.Client, error) {
			c, err := zbc.NewClient(&zbc.ClientConfig{
				GatewayAddress:         config.GatewayAddress,
				UsePlaintextConnection: config.UsePlaintextConnection,
			})
			if err != nil {
				return nil, err
			}
			tctx, cancel := context.WithTimeout(ctx, config.ConnectionTimeout)
			defer cancel()
			if _, err := c.NewTopologyCommand().Send(tctx); err != nil {
				_ = c.Close()
				return nil, err
			}
			return c, nil
		},
		retry.Context(ctx),
		retry.Attempts(config.RetryConfig.MaxRetries),
		retry.Delay(config.RetryConfig.BaseDelay),
		retry.MaxJitter(config.RetryConfig.MaxJitter),
		retry.RetryIf(isRetryableZeebeError),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("Zeebe connection failed, retrying...",
				zap.Error(err),
				zap.Uint("attempt", n+1),
				zap.Uint("maxRetries", config.RetryConfig.MaxRetries),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{client: zeebeClient, config: config}, nil
}

// GetClient returns the raw Zeebe client for job worker registration.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
