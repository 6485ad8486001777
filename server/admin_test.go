package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHealthz(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	rec := httptest.NewRecorder()
	s.AdminMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAdminConfigRoundTrip(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	mux := s.AdminMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var cur map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cur))
	assert.EqualValues(t, 2000, cur["spawnMinDelayMs"])
	assert.EqualValues(t, 8000, cur["spawnMaxDelayMs"])
	assert.EqualValues(t, 3, cur["pickupChance"])

	body := `{"spawnMinDelayMs":1000,"spawnMaxDelayMs":500,"pickupChance":5}`
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, time.Second, s.cfg.SpawnMinDelay)
	// 上限被抬到下限
	assert.Equal(t, time.Second, s.cfg.SpawnMaxDelay)
	assert.Equal(t, 5, s.cfg.PickupChance)
}

func TestAdminConfigRejectsBadInput(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	mux := s.AdminMux()

	for _, body := range []string{`{"pickupChance":0}`, `{"spawnMinDelayMs":-1}`, `not json`} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/config", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, 3, s.cfg.PickupChance)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/config", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAdminStateAndMetrics(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	connect(t, s)
	connect(t, s)
	mux := s.AdminMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Peers, 2)
	assert.True(t, snap.Peers[0].Host)
	assert.False(t, snap.Peers[1].Host)
	assert.Equal(t, "ready", snap.Peers[0].State)
	assert.Len(t, snap.Aircraft, 2)
	assert.True(t, snap.Listening)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Peers    int                `json:"peers"`
		Aircraft int                `json:"aircraft"`
		Metrics  map[string]float64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 2, payload.Peers)
	assert.Equal(t, 2, payload.Aircraft)
	assert.EqualValues(t, 2, payload.Metrics["peers_accepted"])
}

func TestSpectatorReceivesMsgpackSnapshot(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	connect(t, s)

	ts := httptest.NewServer(s.AdminMux())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/spectate?format=msgpack"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	require.Eventually(t, func() bool { return s.hub.count() == 1 }, time.Second, 2*time.Millisecond)
	s.update(s.cfg.tickInterval())

	_ = ws.SetReadDeadline(time.Now().Add(time.Second))
	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	var snap Snapshot
	require.NoError(t, msgpack.Unmarshal(data, &snap))
	assert.Len(t, snap.Peers, 1)
	require.Len(t, snap.Aircraft, 1)
	assert.EqualValues(t, 100, snap.Aircraft[0].Hitpoints)
}

func TestSpectateRejectsUnknownFormat(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	rec := httptest.NewRecorder()
	s.AdminMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spectate?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpectatorHubLogsThroughServerLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := New(DefaultConfig(), WithLogger(zap.New(core).Sugar()))
	t.Cleanup(s.Stop)

	s.hub.register(newSpectator(nil, "xml"))
	s.hub.publish(s.Snapshot())

	assert.Equal(t, 1, logs.FilterMessage("encode snapshot failed").Len())
}
