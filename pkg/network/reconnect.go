package network

import (
	"context"
	"fmt"
	"time"
)

// RedialPolicy controls Redial.
type RedialPolicy struct {
	// Token for the ping round trip of every attempt; random if empty.
	Token          string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxAttempts is the number of attempts before giving up. Zero means unlimited.
	MaxAttempts int
}

// DefaultRedialPolicy retries forever, backing off from 1s up to 30s.
func DefaultRedialPolicy() RedialPolicy {
	return RedialPolicy{
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Redial dials addr and runs Connect until a session is established, backing off exponentially
// between failed attempts. It returns the connected client, or the last error once the attempts
// are exhausted or ctx is done.
func Redial(ctx context.Context, addr string, policy RedialPolicy, opts ...ClientOption) (*Client, error) {
	logger := newClientOptions(opts).logger
	backoff := policy.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	maxBackoff := policy.MaxBackoff
	if maxBackoff < backoff {
		maxBackoff = backoff
	}

	for attempt := 1; ; attempt++ {
		client, err := Dial(ctx, addr, opts...)
		if err == nil {
			if err = client.Connect(policy.Token); err == nil {
				if attempt > 1 {
					logger.Info().Int("attempt", attempt).Msg("Reconnected successfully")
				}
				return client, nil
			}
			_ = client.Close()
		}

		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("Connection failed, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
