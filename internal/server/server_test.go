package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zeusync/missionsim/internal/core/clock"
	"github.com/zeusync/missionsim/internal/core/eligibility"
	"github.com/zeusync/missionsim/internal/core/events/bus"
	"github.com/zeusync/missionsim/internal/core/mission"
	"github.com/zeusync/missionsim/internal/core/observability/log"
)

const testCatalog = `{"settings": [{"mission": "Supply Delivery", "devices": [
  {"surveillance::drone": ["observe"]},
  {"supply::drone": ["navigate", "carry_payload"]}
]}]}`

type fixture struct {
	sched    *clock.Scheduler
	scenario *mission.Scenario
	server   *Server
	http     *httptest.Server
}

func newFixture(t *testing.T, cfg Config, withCatalog bool) *fixture {
	t.Helper()
	logger := log.NewNop()
	eventBus := bus.New()
	sched := clock.NewScheduler(logger)
	sc, err := mission.New(mission.DefaultConfig(), sched, eventBus, logger)
	require.NoError(t, err)

	var catalog *eligibility.Catalog
	if withCatalog {
		catalog, err = eligibility.ParseCatalog(strings.NewReader(testCatalog))
		require.NoError(t, err)
	}

	srv, err := NewServer(cfg, sc, catalog, eventBus, logger)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Close()
		ts.Close()
		sc.Stop()
	})
	return &fixture{sched: sched, scenario: sc, server: srv, http: ts}
}

func (f *fixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return typ, data
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.NoError(t, cfg.Validate())

	cfg.ClientTimeout = cfg.PingInterval
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultServerConfig()
	cfg.MaxClients = 0
	_, err := NewServer(cfg, nil, nil, bus.New(), log.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSnapshotEndpoint(t *testing.T) {
	f := newFixture(t, DefaultServerConfig(), false)
	require.NoError(t, f.scenario.Start())
	f.sched.Advance(3 * time.Second)

	resp, err := http.Get(f.http.URL + "/api/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap mission.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, f.scenario.RunID(), snap.RunID)
	scout, ok := snap.Agent(mission.RoleScout)
	require.True(t, ok)
	assert.Equal(t, "OUTBOUND", scout.Phase)
	assert.Len(t, scout.Path, 3)
	assert.Equal(t, 3*time.Second, snap.Elapsed)
}

func TestPathsEndpoint(t *testing.T) {
	f := newFixture(t, DefaultServerConfig(), false)
	require.NoError(t, f.scenario.Start())
	f.sched.Advance(2 * time.Second)

	resp, err := http.Get(f.http.URL + "/api/paths")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	scout, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, scout, 2)
	assert.Equal(t, "surveillance", fc.Features[0].Properties["role"])

	relay, ok := fc.Features[1].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Empty(t, relay)
	assert.Equal(t, "supply", fc.Features[1].Properties["role"])

	zone, ok := fc.Features[2].Geometry.(orb.Point)
	require.True(t, ok)
	assert.Equal(t, orb.Point{915, 422}, zone)
	assert.Equal(t, "threat", fc.Features[2].Properties["kind"])
	assert.Equal(t, 180.0, fc.Features[2].Properties["radius"])
	assert.Equal(t, 241.0, fc.Features[2].Properties["range"])
}

func TestWebSocketStreamsJSON(t *testing.T) {
	f := newFixture(t, DefaultServerConfig(), false)
	conn := f.dial(t, "")

	typ, data := readFrame(t, conn)
	assert.Equal(t, websocket.TextMessage, typ)
	var first mission.Snapshot
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, uint64(1), first.Seq)

	require.NoError(t, f.scenario.Start())
	f.sched.Advance(time.Second)

	// Start, blink at 0.5s, then scout and blink at 1s
	var last mission.Snapshot
	for i := 0; i < 4; i++ {
		_, data = readFrame(t, conn)
		require.NoError(t, json.Unmarshal(data, &last))
	}
	assert.Equal(t, uint64(5), last.Seq)
	scout, _ := last.Agent(mission.RoleScout)
	assert.Len(t, scout.Path, 1)
	assert.Equal(t, int64(1), f.server.GetStats().ClientCount)
}

func TestWebSocketStreamsMsgpack(t *testing.T) {
	f := newFixture(t, DefaultServerConfig(), false)
	conn := f.dial(t, "?codec=msgpack")

	typ, data := readFrame(t, conn)
	assert.Equal(t, websocket.BinaryMessage, typ)
	var snap mission.Snapshot
	require.NoError(t, msgpack.Unmarshal(data, &snap))
	assert.Equal(t, f.scenario.Fingerprint(), snap.Fingerprint)
	assert.Len(t, snap.Agents, 2)
	assert.Equal(t, 241.0, snap.Threat.Range)
}

func TestWebSocketRejections(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxClients = 1
	f := newFixture(t, cfg, false)
	u := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(u+"?codec=xml", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn := f.dial(t, "")
	readFrame(t, conn)

	_, resp, err = websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

const devicesJSON = `[
  {"device_name": "Hawk-1", "device_type": "drone", "allowedTasks": ["observe"]},
  {"device_name": "Mule-2", "device_type": "drone", "allowedTasks": ["navigate", "carry_payload"]}
]`

func TestEligibilityEndpoint(t *testing.T) {
	f := newFixture(t, DefaultServerConfig(), true)
	url := f.http.URL + "/api/eligibility"

	resp, out := post(t, url, fmt.Sprintf(`{"mission": "Supply Delivery", "devices": %s}`, devicesJSON))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// defaults pick Hawk-1 for both roles
	assert.Equal(t, true, out["insufficient"])
	assert.Equal(t, false, out["incomplete"])

	resp, _ = post(t, url, `{"mission": "Nope", "devices": []}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = post(t, url, `{"mission": "Supply Delivery", "selections": {"pilot": "Hawk-1"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, url, `{"mission": "Supply Delivery", "extra": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bare := newFixture(t, DefaultServerConfig(), false)
	resp, out = post(t, bare.http.URL+"/api/eligibility", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, ErrNoCatalog.Error(), out["error"])
}

func TestSubmissionEndpoint(t *testing.T) {
	f := newFixture(t, DefaultServerConfig(), true)
	url := f.http.URL + "/api/submissions"

	resp, out := post(t, url, fmt.Sprintf(`{"mission": "Supply Delivery", "devices": %s}`, devicesJSON))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, true, out["insufficient"])

	body := fmt.Sprintf(`{"mission": "Supply Delivery", "devices": %s,
		"selections": {"surveillance": "Hawk-1", "supply": "Mule-2"}}`, devicesJSON)
	resp, out = post(t, url, body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, out["id"])
	assert.Equal(t, "Supply Delivery", out["mission"])
	assert.Equal(t, f.scenario.Fingerprint(), out["fingerprint"])
	assert.Equal(t, map[string]any{"surveillance": "Hawk-1", "supply": "Mule-2"}, out["devices"])
}

func TestMissionsEndpoint(t *testing.T) {
	f := newFixture(t, DefaultServerConfig(), true)
	resp, err := http.Get(f.http.URL + "/api/missions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Equal(t, []string{"Supply Delivery"}, names)
}

func TestStartStop(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	f := newFixture(t, cfg, false)
	srv := f.server

	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerAlreadyRunning)
	require.NotNil(t, srv.Addr())
	assert.True(t, srv.GetStats().Running)

	resp, err := http.Get("http://" + srv.Addr().String() + "/api/snapshot")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.ErrorIs(t, srv.Stop(ctx), ErrServerNotRunning)

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerClosed)
}

func TestWebSocketConcurrentUpgradesRespectLimit(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxClients = 2
	f := newFixture(t, cfg, false)
	u := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"

	var (
		wg       sync.WaitGroup
		accepted int64
		mu       sync.Mutex
		conns    []*websocket.Conn
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(u, nil)
			if err != nil {
				return
			}
			atomic.AddInt64(&accepted, 1)
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}()
	}
	wg.Wait()
	t.Cleanup(func() {
		for _, c := range conns {
			_ = c.Close()
		}
	})

	assert.Equal(t, int64(2), accepted)
	assert.LessOrEqual(t, f.server.GetStats().ClientCount, int64(2))
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t, DefaultServerConfig(), false)
	conn := f.dial(t, "")
	readFrame(t, conn)

	require.NoError(t, f.scenario.Start())
	f.sched.Advance(time.Second)

	resp, err := http.Get(f.http.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.Server.ClientCount)
	assert.False(t, stats.Server.Running)
	// Start, blink at 0.5s, then scout and blink at 1s
	assert.Equal(t, uint64(4), stats.Events[mission.EventSnapshot])
	var total uint64
	for _, n := range stats.Events {
		total += n
	}
	assert.Equal(t, total, stats.Bus.Published)
	assert.Equal(t, uint64(1), stats.Bus.SubscribersActive)
	assert.Zero(t, stats.Bus.Errors)
}

func TestRestartAfterStop(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	f := newFixture(t, cfg, false)
	srv := f.server

	for i := 0; i < 2; i++ {
		require.NoError(t, srv.Start(context.Background()))
		resp, err := http.Get("http://" + srv.Addr().String() + "/api/snapshot")
		require.NoError(t, err)
		resp.Body.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.NoError(t, srv.Stop(ctx))
		cancel()
	}
}

func TestRunPublishesAddr(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	f := newFixture(t, cfg, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx) }()

	assert.Eventually(t, func() bool { return f.server.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
