package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestRetryGatewayRetriesRateLimits(t *testing.T) {
	calls := 0
	next := GatewayFunc(func(ctx context.Context, req Request) (string, error) {
		calls++
		if calls < 3 {
			return "", &RemoteAPIError{StatusCode: 429}
		}
		return "ok", nil
	})

	var delays []time.Duration
	gw := NewRetryGateway(next, 3, nil)
	gw.sleep = noSleep(&delays)

	text, err := gw.Invoke(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestRetryGatewayHonoursRetryAfterAndCap(t *testing.T) {
	next := GatewayFunc(func(ctx context.Context, req Request) (string, error) {
		return "", &RemoteAPIError{StatusCode: 429, RetryAfter: 5 * time.Minute}
	})

	var delays []time.Duration
	gw := NewRetryGateway(next, 1, nil)
	gw.sleep = noSleep(&delays)

	_, err := gw.Invoke(context.Background(), Request{})
	var apiErr *RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []time.Duration{60 * time.Second}, delays)
}

func TestRetryGatewayDoesNotRetryOtherFailures(t *testing.T) {
	tests := []error{
		&RemoteAPIError{StatusCode: 500},
		&TransportError{Op: "chat", Err: errors.New("refused")},
		&ValidationError{Field: "images", Reason: "too many"},
	}
	for _, failure := range tests {
		calls := 0
		next := GatewayFunc(func(ctx context.Context, req Request) (string, error) {
			calls++
			return "", failure
		})
		gw := NewRetryGateway(next, 5, nil)
		_, err := gw.Invoke(context.Background(), Request{})
		assert.Equal(t, failure, err)
		assert.Equal(t, 1, calls)
	}
}

func TestRetryGatewayZeroRetries(t *testing.T) {
	calls := 0
	next := GatewayFunc(func(ctx context.Context, req Request) (string, error) {
		calls++
		return "", &RemoteAPIError{StatusCode: 429}
	})
	_, err := NewRetryGateway(next, 0, nil).Invoke(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryGatewayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	next := GatewayFunc(func(ctx context.Context, req Request) (string, error) {
		cancel()
		return "", &RemoteAPIError{StatusCode: 429}
	})
	_, err := NewRetryGateway(next, 3, nil).Invoke(ctx, Request{})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}
