package client

import (
	"time"

	"skyfront/command"
	"skyfront/protocol"
)

// Controllable 玩家命令需要的飞机能力
type Controllable interface {
	ID() protocol.AircraftID
	MaxSpeed() float32
	Accelerate(v protocol.Vec2)
	Fire()
	LaunchMissile()
}

// Mover 按 ID 过滤的移动命令：速度 = 方向 * 最大速度
func Mover(id protocol.AircraftID, dir protocol.Vec2) command.Action {
	return command.For(func(a Controllable, _ time.Duration) {
		if a.ID() == id {
			a.Accelerate(dir.Scale(a.MaxSpeed()))
		}
	})
}

// FireTrigger 开火命令
func FireTrigger(id protocol.AircraftID) command.Action {
	return command.For(func(a Controllable, _ time.Duration) {
		if a.ID() == id {
			a.Fire()
		}
	})
}

// MissileTrigger 发射导弹命令
func MissileTrigger(id protocol.AircraftID) command.Action {
	return command.For(func(a Controllable, _ time.Duration) {
		if a.ID() == id {
			a.LaunchMissile()
		}
	})
}

func actionFor(id protocol.AircraftID, a protocol.Action) command.Action {
	switch a {
	case protocol.MoveLeft:
		return Mover(id, protocol.Vec2{X: -1})
	case protocol.MoveRight:
		return Mover(id, protocol.Vec2{X: 1})
	case protocol.MoveUp:
		return Mover(id, protocol.Vec2{Y: -1})
	case protocol.MoveDown:
		return Mover(id, protocol.Vec2{Y: 1})
	case protocol.Fire:
		return FireTrigger(id)
	case protocol.LaunchMissile:
		return MissileTrigger(id)
	default:
		return nil
	}
}
