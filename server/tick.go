package server

import (
	"time"

	"skyfront/protocol"
)

// tick 固定频率的逻辑 Tick：清理 → 广播状态 → 任务判定 → 敌机生成 → 推送观战快照
func (s *Server) tick() {
	s.collectWrecks()
	s.updateClientState()
	s.checkMissionSuccess()
	s.spawnEnemies()
	s.publishSnapshot()
}

// collectWrecks 移除血量耗尽的记录（一个连接有两架飞机时可能只损失一架）
func (s *Server) collectWrecks() {
	for id, rec := range s.records {
		if rec.Hitpoints <= 0 {
			delete(s.records, id)
		}
	}
}

func (s *Server) updateClientState() {
	msg := &protocol.UpdateClientState{ScrollOffset: s.leadingEdge()}
	for _, id := range s.sortedAircraft() {
		msg.Aircraft = append(msg.Aircraft, protocol.AircraftPosition{ID: id, Position: s.records[id].Position})
	}
	s.sendToAll(msg)
}

// checkMissionSuccess 所有飞机越过终点（y <= 0）时只通知一次
func (s *Server) checkMissionSuccess() {
	if s.missionDone || len(s.records) == 0 {
		return
	}
	for _, rec := range s.records {
		if rec.Position.Y > 0 {
			return
		}
	}
	s.missionDone = true
	s.log.Infow("mission success", "aircraft", len(s.records))
	s.sendToAll(&protocol.MissionSuccess{})
}

// spawnEnemies 到时间后生成 1~2 架敌机；战场接近终点后不再生成
func (s *Server) spawnEnemies() {
	if s.now < s.lastSpawn+s.nextSpawn || s.battlefield.Top <= s.cfg.SpawnCutoff {
		return
	}
	count := 1 + s.rng.Intn(2)
	center := float32(s.rng.Intn(500) - 250)

	// 单架出现在中心；两架时第一架在中心左侧 distance/2 处，之后每架右移 distance/2
	var distance float32
	next := center
	if count == 2 {
		distance = float32(150 + s.rng.Intn(250))
		next = center - distance/2
	}
	for i := 0; i < count; i++ {
		s.sendToAll(&protocol.SpawnEnemy{
			Type:      1 + int32(s.rng.Intn(int(protocol.AircraftTypeCount-1))),
			Height:    s.cfg.WorldHeight - s.battlefield.Top + 500,
			RelativeX: next,
		})
		next += distance / 2
	}
	s.metrics.AddEnemies(count)

	s.lastSpawn = s.now
	s.nextSpawn = s.cfg.SpawnMinDelay
	if spread := s.cfg.SpawnMaxDelay - s.cfg.SpawnMinDelay; spread >= time.Millisecond {
		s.nextSpawn += time.Duration(s.rng.Int63n(int64(spread/time.Millisecond))) * time.Millisecond
	}
}
