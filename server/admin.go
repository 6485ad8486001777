package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// tuning 可在运行期调整的生成参数
type tuning struct {
	SpawnMinDelayMs *int64   `json:"spawnMinDelayMs,omitempty"`
	SpawnMaxDelayMs *int64   `json:"spawnMaxDelayMs,omitempty"`
	SpawnCutoff     *float32 `json:"spawnCutoff,omitempty"`
	PickupChance    *int     `json:"pickupChance,omitempty"`
}

// HandleAdminConfig 提供生成参数的读取与更新（热更新基本规则）
// GET /admin/config  返回当前配置
// POST /admin/config 以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		minMs, maxMs := s.cfg.SpawnMinDelay.Milliseconds(), s.cfg.SpawnMaxDelay.Milliseconds()
		cur := tuning{
			SpawnMinDelayMs: &minMs,
			SpawnMaxDelayMs: &maxMs,
			SpawnCutoff:     &s.cfg.SpawnCutoff,
			PickupChance:    &s.cfg.PickupChance,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cur)
		s.mu.Unlock()
		return
	case http.MethodPost:
		var body tuning
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if (body.PickupChance != nil && *body.PickupChance <= 0) ||
			(body.SpawnMinDelayMs != nil && *body.SpawnMinDelayMs <= 0) ||
			(body.SpawnMaxDelayMs != nil && *body.SpawnMaxDelayMs <= 0) {
			http.Error(w, "values must be positive", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		if body.SpawnMinDelayMs != nil {
			s.cfg.SpawnMinDelay = time.Duration(*body.SpawnMinDelayMs) * time.Millisecond
		}
		if body.SpawnMaxDelayMs != nil {
			s.cfg.SpawnMaxDelay = time.Duration(*body.SpawnMaxDelayMs) * time.Millisecond
		}
		if s.cfg.SpawnMaxDelay < s.cfg.SpawnMinDelay {
			s.cfg.SpawnMaxDelay = s.cfg.SpawnMinDelay
		}
		if body.SpawnCutoff != nil {
			s.cfg.SpawnCutoff = *body.SpawnCutoff
		}
		if body.PickupChance != nil {
			s.cfg.PickupChance = *body.PickupChance
		}
		s.log.Infof("config updated: spawnDelay=[%v,%v] cutoff=%.0f pickupChance=1/%d",
			s.cfg.SpawnMinDelay, s.cfg.SpawnMaxDelay, s.cfg.SpawnCutoff, s.cfg.PickupChance)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	payload := map[string]any{
		"peers":     len(s.peers),
		"aircraft":  len(s.records),
		"listening": s.listening,
		"metrics":   s.metrics.Snapshot(),
	}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// HandleState 输出完整快照
// GET /admin/state
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Snapshot())
}

// AdminMux 管理与监控接口
func (s *Server) AdminMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/admin/state", s.HandleState)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/spectate", s.HandleSpectate)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
