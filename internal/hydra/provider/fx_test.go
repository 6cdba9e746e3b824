package provider

import (
	"testing"
	"time"

	"github.com/smallbiznis/hydrapay/internal/clock"
	"github.com/smallbiznis/hydrapay/internal/config"
	"github.com/smallbiznis/hydrapay/internal/hydra/events"
	"github.com/smallbiznis/hydrapay/internal/hydra/mock"
	"github.com/smallbiznis/hydrapay/internal/hydra/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func params(t *testing.T, cfg config.Config) (Params, *fxtest.Lifecycle) {
	lc := fxtest.NewLifecycle(t)
	return Params{
		Lc:     lc,
		Config: cfg,
		Clock:  clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Bus:    events.NewBus(),
		Log:    zap.NewNop(),
	}, lc
}

func TestNewTransportDefaultsToMockNode(t *testing.T) {
	p, lc := params(t, config.Config{Hydra: config.HydraConfig{Transport: config.TransportMock}})

	transport, err := NewTransport(p)
	require.NoError(t, err)
	assert.IsType(t, &mock.Node{}, transport)

	lc.RequireStart()
	lc.RequireStop()
}

func TestNewTransportRemote(t *testing.T) {
	p, lc := params(t, config.Config{Hydra: config.HydraConfig{
		Transport: config.TransportRemote,
		APIURL:    "http://localhost:4001",
		WSURL:     "ws://localhost:4001/ws",
		Timeout:   time.Second,
	}})

	transport, err := NewTransport(p)
	require.NoError(t, err)
	assert.IsType(t, &remote.Client{}, transport)

	lc.RequireStart()
	lc.RequireStop()
}

func TestNewTransportRejectsUnknown(t *testing.T) {
	p, _ := params(t, config.Config{Hydra: config.HydraConfig{Transport: "carrier-pigeon"}})
	_, err := NewTransport(p)
	assert.Error(t, err)
}

func TestNewTransportRemoteNeedsURL(t *testing.T) {
	p, _ := params(t, config.Config{Hydra: config.HydraConfig{Transport: config.TransportRemote}})
	_, err := NewTransport(p)
	assert.Error(t, err)
}
