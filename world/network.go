package world

import (
	"skyfront/command"
	"skyfront/protocol"
)

// NetworkNode 挂在场景树上的网络节点，收集需要上报服务端的游戏事件
type NetworkNode struct {
	pending []protocol.GameEvent
}

func (n *NetworkNode) Category() command.Category { return command.Network }
func (n *NetworkNode) Children() []command.Node   { return nil }

// Notify 记录一个游戏事件
func (n *NetworkNode) Notify(kind protocol.GameActionType, pos protocol.Vec2) {
	n.pending = append(n.pending, protocol.GameEvent{Kind: kind, Position: pos})
}

// Poll 按发生顺序取出一个事件
func (n *NetworkNode) Poll() (protocol.GameEvent, bool) {
	if len(n.pending) == 0 {
		return protocol.GameEvent{}, false
	}
	ev := n.pending[0]
	n.pending = n.pending[1:]
	return ev, true
}
