package world

import (
	"time"

	"skyfront/command"
	"skyfront/protocol"
)

type aircraftData struct {
	hitpoints int32
	speed     float32
}

// 仅保留解释协议所需的最小参数
var aircraftTable = [protocol.AircraftTypeCount]aircraftData{
	protocol.Eagle:   {hitpoints: 100, speed: 200},
	protocol.Raptor:  {hitpoints: 20, speed: 80},
	protocol.Avenger: {hitpoints: 40, speed: 50},
}

// Aircraft 场景树中的飞机实体
type Aircraft struct {
	id          protocol.AircraftID
	kind        int32
	category    command.Category
	position    protocol.Vec2
	velocity    protocol.Vec2
	hitpoints   int32
	missileAmmo int32
	firing      bool
	launched    int
	removed     bool
}

func newAircraft(kind int32, cat command.Category) *Aircraft {
	if kind < 0 || kind >= protocol.AircraftTypeCount {
		kind = protocol.Raptor
	}
	return &Aircraft{
		kind:        kind,
		category:    cat,
		hitpoints:   aircraftTable[kind].hitpoints,
		missileAmmo: 2,
	}
}

func (a *Aircraft) Category() command.Category { return a.category }
func (a *Aircraft) Children() []command.Node   { return nil }

func (a *Aircraft) ID() protocol.AircraftID { return a.id }
func (a *Aircraft) Kind() int32             { return a.kind }

func (a *Aircraft) Position() protocol.Vec2     { return a.position }
func (a *Aircraft) SetPosition(p protocol.Vec2) { a.position = p }
func (a *Aircraft) Velocity() protocol.Vec2     { return a.velocity }

func (a *Aircraft) Hitpoints() int32       { return a.hitpoints }
func (a *Aircraft) SetHitpoints(hp int32)  { a.hitpoints = hp }
func (a *Aircraft) MissileAmmo() int32     { return a.missileAmmo }
func (a *Aircraft) SetMissileAmmo(n int32) { a.missileAmmo = n }

// MaxSpeed 机型最大速度
func (a *Aircraft) MaxSpeed() float32 { return aircraftTable[a.kind].speed }

// Accelerate 叠加速度（每步开始时玩家速度清零）
func (a *Aircraft) Accelerate(v protocol.Vec2) { a.velocity = a.velocity.Add(v) }

// Fire 本步开火（弹道不在本包模拟）
func (a *Aircraft) Fire() { a.firing = true }

// Firing 最近一步是否开火
func (a *Aircraft) Firing() bool { return a.firing }

// LaunchMissile 有弹药时发射一枚导弹
func (a *Aircraft) LaunchMissile() {
	if a.missileAmmo > 0 {
		a.missileAmmo--
		a.launched++
	}
}

// MissilesLaunched 累计发射数
func (a *Aircraft) MissilesLaunched() int { return a.launched }

// Damage 扣血
func (a *Aircraft) Damage(n int32) { a.hitpoints -= n }

func (a *Aircraft) Destroyed() bool { return a.hitpoints <= 0 }

// Remove 标记移除，下一步清理
func (a *Aircraft) Remove() { a.removed = true }

func (a *Aircraft) update(dt time.Duration) {
	a.position = a.position.Add(a.velocity.Scale(float32(dt.Seconds())))
}
