package server

import "skyfront/protocol"

// PeerInfo 快照中的连接信息
type PeerInfo struct {
	ID        PeerID                `json:"id" msgpack:"id"`
	Host      bool                  `json:"host" msgpack:"host"`
	State     string                `json:"state" msgpack:"state"`
	Remote    string                `json:"remote" msgpack:"remote"`
	Aircraft  []protocol.AircraftID `json:"aircraft" msgpack:"aircraft"`
	SilenceMs int64                 `json:"silenceMs" msgpack:"silenceMs"`
}

// Snapshot 服务端状态的只读副本，供管理接口与观战使用
type Snapshot struct {
	TimeMs       int64           `json:"timeMs" msgpack:"timeMs"`
	ScrollOffset float32         `json:"scrollOffset" msgpack:"scrollOffset"`
	Listening    bool            `json:"listening" msgpack:"listening"`
	MissionDone  bool            `json:"missionDone" msgpack:"missionDone"`
	Peers        []PeerInfo      `json:"peers" msgpack:"peers"`
	Aircraft     []AircraftState `json:"aircraft" msgpack:"aircraft"`
}

// Snapshot 复制当前状态
func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Server) snapshot() Snapshot {
	snap := Snapshot{
		TimeMs:       s.now.Milliseconds(),
		ScrollOffset: s.leadingEdge(),
		Listening:    s.listening,
		MissionDone:  s.missionDone,
		Peers:        make([]PeerInfo, 0, len(s.peers)),
		Aircraft:     make([]AircraftState, 0, len(s.records)),
	}
	for _, p := range s.peers {
		snap.Peers = append(snap.Peers, PeerInfo{
			ID:        p.ID,
			Host:      s.isHost(p),
			State:     p.state.String(),
			Remote:    p.RemoteAddr(),
			Aircraft:  append([]protocol.AircraftID(nil), p.aircraft...),
			SilenceMs: (s.now - p.lastPacket).Milliseconds(),
		})
	}
	for _, id := range s.sortedAircraft() {
		snap.Aircraft = append(snap.Aircraft, s.records[id].state(id))
	}
	return snap
}

func (s *Server) publishSnapshot() {
	if s.hub.count() == 0 {
		return
	}
	s.hub.publish(s.snapshot())
}
