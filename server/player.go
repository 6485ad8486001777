package server

import "skyfront/protocol"

// AircraftRecord 一架飞机的服务端权威状态
type AircraftRecord struct {
	Position    protocol.Vec2
	Hitpoints   int32
	MissileAmmo int32
	// RealtimeActions 最近一次转发的实时动作状态
	RealtimeActions map[protocol.Action]bool
}

func newAircraftRecord(pos protocol.Vec2) *AircraftRecord {
	return &AircraftRecord{
		Position:        pos,
		Hitpoints:       100,
		MissileAmmo:     2,
		RealtimeActions: make(map[protocol.Action]bool),
	}
}

// AircraftState 供快照与 InitialState 使用的只读副本
type AircraftState struct {
	ID          protocol.AircraftID `json:"id" msgpack:"id"`
	Position    protocol.Vec2       `json:"position" msgpack:"position"`
	Hitpoints   int32               `json:"hitpoints" msgpack:"hitpoints"`
	MissileAmmo int32               `json:"missileAmmo" msgpack:"missileAmmo"`
}

func (r *AircraftRecord) state(id protocol.AircraftID) AircraftState {
	return AircraftState{ID: id, Position: r.Position, Hitpoints: r.Hitpoints, MissileAmmo: r.MissileAmmo}
}

func (a AircraftState) wire() protocol.AircraftState {
	return protocol.AircraftState{ID: a.ID, Position: a.Position, Hitpoints: a.Hitpoints, MissileAmmo: a.MissileAmmo}
}
