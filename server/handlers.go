package server

import "skyfront/protocol"

// handleMessage 按消息类型分发一条已解码的客户端消息
func (s *Server) handleMessage(p *Peer, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case *protocol.Quit:
		s.log.Infow("peer quit", "peer", p.ID)
		p.state = PeerTimedOut

	case *protocol.PlayerEvent:
		// 发送方联网时不在本地执行一次性动作，回显给所有人（包括自己）
		s.sendToAll(&protocol.PlayerEvent{ID: m.ID, Action: m.Action})
		s.metrics.IncRelayed()

	case *protocol.PlayerRealtimeChange:
		if rec, ok := s.records[m.ID]; ok {
			rec.RealtimeActions[m.Action] = m.Enabled
		}
		// 发送方已在本地预测，只转发给其他人
		s.sendExcept(p, &protocol.PlayerRealtimeChange{ID: m.ID, Action: m.Action, Enabled: m.Enabled})
		s.metrics.IncRelayed()

	case *protocol.RequestCoopPartner:
		id := s.allocateAircraft(p)
		rec := s.records[id]
		s.enqueue(p, &protocol.AcceptCoopPartner{ID: id, Position: rec.Position})
		s.sendExcept(p, &protocol.PlayerConnect{ID: id, Position: rec.Position})
		s.log.Infow("coop partner accepted", "peer", p.ID, "aircraft", id)

	case *protocol.PositionUpdate:
		// 信任客户端上报的自身飞机状态，不做校验；只接受发送方拥有的飞机
		for _, st := range m.Aircraft {
			rec, ok := s.records[st.ID]
			if !ok || !p.owns(st.ID) {
				continue
			}
			rec.Position = st.Position
			rec.Hitpoints = st.Hitpoints
			rec.MissileAmmo = st.MissileAmmo
		}

	case *protocol.GameEvent:
		// 多个客户端都会观察到同一次爆炸，只采信宿主的上报
		if m.Kind != protocol.EnemyExplode || !s.isHost(p) {
			return
		}
		if s.rng.Intn(s.cfg.PickupChance) != 0 {
			return
		}
		s.sendToAll(&protocol.SpawnPickup{
			Type:     int32(s.rng.Intn(int(protocol.PickupTypeCount))),
			Position: m.Position,
		})
		s.metrics.IncPickups()
	}
}
