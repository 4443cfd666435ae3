// SPDX-License-Identifier: LGPL-3.0-or-later

package wsrelay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kktp-network/kktp/transport"
)

func newTestServer(t *testing.T) (wsURL string, cleanup func()) {
	t.Helper()
	relay := NewServer()
	httpSrv := httptest.NewServer(relay.Handler())
	wsURL = "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	return wsURL, func() {
		relay.Close()
		httpSrv.Close()
	}
}

func TestClientPublishIsEchoedWithHash(t *testing.T) {
	url, cleanup := newTestServer(t)
	defer cleanup()

	ctx := context.Background()
	client := NewClient(url)
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	hash, err := client.Publish(ctx, "KKTP:GROUP:{\"hello\":true}")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
}

func TestClientScanSeesAnotherClientsPublish(t *testing.T) {
	url, cleanup := newTestServer(t)
	defer cleanup()

	ctx := context.Background()
	publisher := NewClient(url)
	require.NoError(t, publisher.Connect(ctx))
	defer publisher.Close()

	subscriber := NewClient(url)
	require.NoError(t, subscriber.Connect(ctx))
	defer subscriber.Close()

	// Give the subscriber's connection a moment to register before the
	// publish, since the relay only fans out to already-connected clients.
	time.Sleep(50 * time.Millisecond)

	_, err := publisher.Publish(ctx, "KKTP:GROUP:{\"seq\":1}")
	require.NoError(t, err)

	var got transport.Payload
	err = subscriber.Scan(ctx, transport.ScanOptions{
		Prefixes:   []string{"KKTP:GROUP:"},
		MaxSeconds: 2,
		OnMatch: func(p transport.Payload) bool {
			got = p
			return true
		},
	})
	require.NoError(t, err)
	require.Equal(t, "KKTP:GROUP:{\"seq\":1}", got.Data)
}

func TestClientScanReplaysHistoryBacklog(t *testing.T) {
	url, cleanup := newTestServer(t)
	defer cleanup()

	ctx := context.Background()
	publisher := NewClient(url)
	require.NoError(t, publisher.Connect(ctx))
	defer publisher.Close()

	_, err := publisher.Publish(ctx, "KKTP:GROUP:{\"seq\":1}")
	require.NoError(t, err)

	// A client joining after the publish still sees it via the relay's
	// replayed history backlog.
	latecomer := NewClient(url)
	require.NoError(t, latecomer.Connect(ctx))
	defer latecomer.Close()
	time.Sleep(50 * time.Millisecond)

	var got transport.Payload
	err = latecomer.Scan(ctx, transport.ScanOptions{
		Prefixes:   []string{"KKTP:GROUP:"},
		MaxSeconds: 1,
		OnMatch: func(p transport.Payload) bool {
			got = p
			return true
		},
	})
	require.NoError(t, err)
	require.Equal(t, "KKTP:GROUP:{\"seq\":1}", got.Data)
}

func TestClientScanRespectsMaxSecondsWhenNothingMatches(t *testing.T) {
	url, cleanup := newTestServer(t)
	defer cleanup()

	ctx := context.Background()
	client := NewClient(url)
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	start := time.Now()
	err := client.Scan(ctx, transport.ScanOptions{
		Prefixes:   []string{"KKTP:GROUP:"},
		MaxSeconds: 0.2,
	})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}
