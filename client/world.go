package client

import (
	"time"

	"skyfront/command"
	"skyfront/protocol"
)

// Aircraft 会话需要读写的飞机状态（渲染与物理在外部）
type Aircraft interface {
	Position() protocol.Vec2
	SetPosition(protocol.Vec2)
	Hitpoints() int32
	SetHitpoints(int32)
	MissileAmmo() int32
	SetMissileAmmo(int32)
}

// World 会话对本地模拟世界的最小依赖
type World interface {
	Update(dt time.Duration)
	Commands() *command.Queue

	AddAircraft(id protocol.AircraftID) Aircraft
	RemoveAircraft(id protocol.AircraftID)
	Aircraft(id protocol.AircraftID) (Aircraft, bool)

	SetWorldHeight(height float32)
	SetCurrentBattlefieldPosition(lineY float32)
	SetScrollCompensation(factor float32)
	// LeadingEdge 本地视野下边缘（top+height），与服务端 UpdateClientState 的滚动值同口径
	LeadingEdge() float32

	AddEnemy(kind int32, relX, relY float32)
	SortEnemies()
	CreatePickup(kind int32, pos protocol.Vec2)

	// PollGameAction 取出一个本地观察到、需要上报服务端的游戏事件
	PollGameAction() (protocol.GameEvent, bool)
}
