package client

import (
	"skyfront/command"
	"skyfront/protocol"
)

// Sender 网络发送端；离线模式下 Player 不持有 Sender
type Sender interface {
	Send(m protocol.ClientMessage) error
}

// Player 一架飞机的输入代理。本地代理读取按键，远端代理回放服务端转发的动作
type Player struct {
	id       protocol.AircraftID
	binding  *KeyBinding
	sender   Sender
	realtime map[protocol.Action]bool
}

// NewPlayer binding 为 nil 表示远端飞机；sender 为 nil 表示离线
func NewPlayer(sender Sender, id protocol.AircraftID, binding *KeyBinding) *Player {
	return &Player{
		id:       id,
		binding:  binding,
		sender:   sender,
		realtime: make(map[protocol.Action]bool),
	}
}

func (p *Player) ID() protocol.AircraftID { return p.id }

// IsLocal 由本机按键控制
func (p *Player) IsLocal() bool { return p.binding != nil }

func (p *Player) networked() bool { return p.sender != nil }

func (p *Player) command(a protocol.Action) command.Command {
	return command.Command{Category: command.PlayerAircraft, Action: actionFor(p.id, a)}
}

// HandleEvent 处理离散按键事件。联网时一次性动作只发往服务端，由回显执行
func (p *Player) HandleEvent(ev KeyEvent, q *command.Queue) error {
	if !p.IsLocal() || (ev.Type != KeyPressed && ev.Type != KeyReleased) {
		return nil
	}
	action, ok := p.binding.CheckAction(ev.Key)
	if !ok {
		return nil
	}
	pressed := ev.Type == KeyPressed

	if !p.networked() {
		if pressed && !protocol.IsRealtime(action) {
			q.Push(p.command(action))
		}
		return nil
	}

	if protocol.IsRealtime(action) {
		if p.realtime[action] == pressed {
			return nil
		}
		p.realtime[action] = pressed
		return p.sender.Send(&protocol.PlayerRealtimeChange{ID: p.id, Action: action, Enabled: pressed})
	}
	if pressed {
		return p.sender.Send(&protocol.PlayerEvent{ID: p.id, Action: action})
	}
	return nil
}

// HandleRealtimeInput 本地飞机按住的实时动作每步入队（联网时即本地预测）
func (p *Player) HandleRealtimeInput(keys KeyState, q *command.Queue) {
	if !p.IsLocal() {
		return
	}
	for _, a := range p.binding.RealtimeActions(keys) {
		q.Push(p.command(a))
	}
}

// HandleRealtimeNetworkInput 远端飞机按服务端转发的实时状态每步入队
func (p *Player) HandleRealtimeNetworkInput(q *command.Queue) {
	if !p.networked() || p.IsLocal() {
		return
	}
	for a := protocol.Action(0); a < protocol.ActionCount; a++ {
		if p.realtime[a] {
			q.Push(p.command(a))
		}
	}
}

// HandleNetworkEvent 执行服务端转发的一次性动作
func (p *Player) HandleNetworkEvent(a protocol.Action, q *command.Queue) {
	if !a.Valid() {
		return
	}
	q.Push(p.command(a))
}

// HandleNetworkRealtimeChange 记录远端飞机的实时动作状态
func (p *Player) HandleNetworkRealtimeChange(a protocol.Action, enabled bool) {
	if p.IsLocal() || !protocol.IsRealtime(a) {
		return
	}
	p.realtime[a] = enabled
}

// DisableAllRealtimeActions 松开所有实时动作；本地联网飞机同时通知服务端
func (p *Player) DisableAllRealtimeActions() error {
	var first error
	for a := protocol.Action(0); a < protocol.ActionCount; a++ {
		if !p.realtime[a] {
			continue
		}
		p.realtime[a] = false
		if p.IsLocal() && p.networked() {
			if err := p.sender.Send(&protocol.PlayerRealtimeChange{ID: p.id, Action: a}); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
