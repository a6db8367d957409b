package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nanzhong/nsequote/config"
	"github.com/nanzhong/nsequote/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServe_listen_failure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := config.Config{Addr: l.Addr().String(), SlackBotToken: "token"}
	tracker := market.NewTracker(&market.FakeBackend{}, &market.FakeBackend{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- serve(context.Background(), cfg, tracker, zap.NewNop())
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running after the listener failed")
	}
}

func TestServe_shutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.Config{Addr: addr, SlackBotToken: "token"}
	tracker := market.NewTracker(&market.FakeBackend{}, &market.FakeBackend{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, tracker, zap.NewNop())
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
