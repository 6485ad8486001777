package client

import "skyfront/protocol"

// Key 物理按键（与具体窗口库无关）
type Key int

const (
	KeyUnknown Key = iota - 1
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeySpace
	KeyEnter
	KeyEscape
	KeyA
	KeyD
	KeyF
	KeyM
	KeyR
	KeyS
	KeyW
)

// KeyState 实时按键状态查询
type KeyState interface {
	IsKeyPressed(k Key) bool
}

// KeyEventType 离散输入事件类型
type KeyEventType int

const (
	KeyPressed KeyEventType = iota
	KeyReleased
	GainedFocus
	LostFocus
)

// KeyEvent 窗口产生的离散输入事件
type KeyEvent struct {
	Type KeyEventType
	Key  Key
}

// KeyBinding 按键到玩家动作的映射，一个动作同一时刻只绑定一个键
type KeyBinding struct {
	keys map[Key]protocol.Action
}

// NewKeyBinding 预设 1：方向键 + 空格 + M；预设 2：WASD + F + R
func NewKeyBinding(preset int) *KeyBinding {
	b := &KeyBinding{keys: make(map[Key]protocol.Action)}
	if preset == 2 {
		b.AssignKey(protocol.MoveLeft, KeyA)
		b.AssignKey(protocol.MoveRight, KeyD)
		b.AssignKey(protocol.MoveUp, KeyW)
		b.AssignKey(protocol.MoveDown, KeyS)
		b.AssignKey(protocol.Fire, KeyF)
		b.AssignKey(protocol.LaunchMissile, KeyR)
		return b
	}
	b.AssignKey(protocol.MoveLeft, KeyLeft)
	b.AssignKey(protocol.MoveRight, KeyRight)
	b.AssignKey(protocol.MoveUp, KeyUp)
	b.AssignKey(protocol.MoveDown, KeyDown)
	b.AssignKey(protocol.Fire, KeySpace)
	b.AssignKey(protocol.LaunchMissile, KeyM)
	return b
}

// AssignKey 绑定 key，并移除该动作原有的键
func (b *KeyBinding) AssignKey(action protocol.Action, key Key) {
	for k, a := range b.keys {
		if a == action {
			delete(b.keys, k)
		}
	}
	b.keys[key] = action
}

// AssignedKey 动作当前绑定的键，未绑定返回 KeyUnknown
func (b *KeyBinding) AssignedKey(action protocol.Action) Key {
	for k, a := range b.keys {
		if a == action {
			return k
		}
	}
	return KeyUnknown
}

// CheckAction 按键对应的动作
func (b *KeyBinding) CheckAction(key Key) (protocol.Action, bool) {
	a, ok := b.keys[key]
	return a, ok
}

// RealtimeActions 当前按住的实时动作，按动作编号排序
func (b *KeyBinding) RealtimeActions(state KeyState) []protocol.Action {
	var out []protocol.Action
	for a := protocol.Action(0); a < protocol.ActionCount; a++ {
		if !protocol.IsRealtime(a) {
			continue
		}
		if k := b.AssignedKey(a); k != KeyUnknown && state.IsKeyPressed(k) {
			out = append(out, a)
		}
	}
	return out
}
