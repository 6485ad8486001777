// Package world 无渲染的本地模拟世界：场景树、卷轴视野、敌机生成队列。
// 供无头客户端与测试使用，渲染、音效、弹道与碰撞不在此实现。
package world

import (
	"math"
	"time"

	"skyfront/client"
	"skyfront/command"
	"skyfront/protocol"
)

const (
	defaultWorldHeight = 5000
	defaultScrollSpeed = -50
	borderDistance     = 40
	battlefieldMargin  = 100
)

// layer 场景层
type layer struct {
	category command.Category
	children []command.Node
}

func (l *layer) Category() command.Category { return l.category }
func (l *layer) Children() []command.Node   { return l.children }

// Pickup 道具实体
type Pickup struct {
	Kind     int32
	Position protocol.Vec2
}

func (p *Pickup) Category() command.Category { return command.Pickup }
func (p *Pickup) Children() []command.Node   { return nil }

// World 本地模拟世界，实现 client.World
type World struct {
	viewWidth, viewHeight float32
	viewCenter            protocol.Vec2
	worldHeight           float32
	spawnPosition         protocol.Vec2
	scrollSpeed           float32
	compensation          float32

	root     *layer
	air      *layer
	network  *NetworkNode
	commands *command.Queue

	players map[protocol.AircraftID]*Aircraft
	enemies []*Aircraft
	pickups []*Pickup
	spawns  SpawnQueue

	lastErr error
}

var _ client.World = (*World)(nil)

// New 创建与视野尺寸对应的世界，初始视野位于世界底部
func New(viewWidth, viewHeight float32) *World {
	w := &World{
		viewWidth:    viewWidth,
		viewHeight:   viewHeight,
		worldHeight:  defaultWorldHeight,
		scrollSpeed:  defaultScrollSpeed,
		compensation: 1,
		network:      &NetworkNode{},
		commands:     command.NewQueue(),
		players:      make(map[protocol.AircraftID]*Aircraft),
	}
	w.spawnPosition = protocol.Vec2{X: viewWidth / 2, Y: w.worldHeight - viewHeight/2}
	w.viewCenter = w.spawnPosition
	w.air = &layer{category: command.SceneAirLayer}
	w.root = &layer{children: []command.Node{w.air, w.network}}
	return w
}

func (w *World) Commands() *command.Queue { return w.commands }

// LastCommandError 最近一步命令分发中的类型不匹配错误
func (w *World) LastCommandError() error { return w.lastErr }

// ViewTop 视野上边缘
func (w *World) ViewTop() float32 { return w.viewCenter.Y - w.viewHeight/2 }

func (w *World) LeadingEdge() float32 { return w.ViewTop() + w.viewHeight }

// BattlefieldTop 战场上边界（视野上方再留出一段用于提前生成敌机）
func (w *World) BattlefieldTop() float32 { return w.ViewTop() - battlefieldMargin }

func (w *World) SetWorldHeight(height float32) { w.worldHeight = height }

// SetCurrentBattlefieldPosition 以下边缘 lineY 定位视野
func (w *World) SetCurrentBattlefieldPosition(lineY float32) {
	w.viewCenter.Y = lineY - w.viewHeight/2
	w.spawnPosition.Y = w.worldHeight
}

func (w *World) SetScrollCompensation(factor float32) { w.compensation = factor }

func (w *World) ScrollCompensation() float32 { return w.compensation }

func (w *World) AddAircraft(id protocol.AircraftID) client.Aircraft {
	a := newAircraft(protocol.Eagle, command.PlayerAircraft)
	a.id = id
	a.position = w.viewCenter
	w.players[id] = a
	w.rebuildAirLayer()
	return a
}

func (w *World) RemoveAircraft(id protocol.AircraftID) {
	if a, ok := w.players[id]; ok {
		a.Remove()
		delete(w.players, id)
		w.rebuildAirLayer()
	}
}

func (w *World) Aircraft(id protocol.AircraftID) (client.Aircraft, bool) {
	a, ok := w.players[id]
	if !ok {
		return nil, false
	}
	return a, true
}

// Player 返回具体类型的玩家飞机
func (w *World) Player(id protocol.AircraftID) (*Aircraft, bool) {
	a, ok := w.players[id]
	return a, ok
}

func (w *World) HasAlivePlayer() bool { return len(w.players) > 0 }

// AddEnemy 相对出生点加入一个生成点
func (w *World) AddEnemy(kind int32, relX, relY float32) {
	w.spawns.Add(SpawnPoint{Type: kind, X: w.spawnPosition.X + relX, Y: w.spawnPosition.Y - relY})
}

func (w *World) SortEnemies() { w.spawns.Sort() }

// PendingSpawns 尚未生成的敌机数
func (w *World) PendingSpawns() int { return w.spawns.Len() }

// Enemies 当前场上的敌机
func (w *World) Enemies() []*Aircraft { return w.enemies }

func (w *World) CreatePickup(kind int32, pos protocol.Vec2) {
	w.pickups = append(w.pickups, &Pickup{Kind: kind, Position: pos})
	w.rebuildAirLayer()
}

func (w *World) Pickups() []*Pickup { return w.pickups }

func (w *World) PollGameAction() (protocol.GameEvent, bool) { return w.network.Poll() }

// Update 推进一步：卷轴、命令分发、速度修正、敌机生成、移动、清理
func (w *World) Update(dt time.Duration) {
	sec := float32(dt.Seconds())
	w.viewCenter.Y += w.scrollSpeed * sec * w.compensation

	for _, p := range w.players {
		p.velocity = protocol.Vec2{}
		p.firing = false
	}

	w.lastErr = w.commands.Apply(w.root, dt)
	w.adaptPlayerVelocity()
	w.spawnEnemies()

	for _, p := range w.players {
		p.update(dt)
	}
	for _, e := range w.enemies {
		e.update(dt)
	}
	w.adaptPlayerPosition()
	w.removeWrecks()
}

func (w *World) adaptPlayerVelocity() {
	for _, p := range w.players {
		v := p.velocity
		if v.X != 0 && v.Y != 0 {
			v = v.Scale(float32(1 / math.Sqrt2))
		}
		p.velocity = v.Add(protocol.Vec2{Y: w.scrollSpeed})
	}
}

func (w *World) adaptPlayerPosition() {
	left, right := float32(borderDistance), w.viewWidth-borderDistance
	top := w.ViewTop() + borderDistance
	bottom := w.ViewTop() + w.viewHeight - borderDistance
	for _, p := range w.players {
		pos := p.position
		pos.X = clamp(pos.X, left, right)
		pos.Y = clamp(pos.Y, top, bottom)
		p.position = pos
	}
}

func (w *World) spawnEnemies() {
	due := w.spawns.Due(w.BattlefieldTop())
	if len(due) == 0 {
		return
	}
	for _, sp := range due {
		e := newAircraft(sp.Type, command.EnemyAircraft)
		e.position = protocol.Vec2{X: sp.X, Y: sp.Y}
		e.velocity = protocol.Vec2{Y: e.MaxSpeed()}
		w.enemies = append(w.enemies, e)
	}
	w.rebuildAirLayer()
}

// removeWrecks 被击毁的敌机通知网络节点；离开战场下方的敌机与道具静默移除
func (w *World) removeWrecks() {
	bottom := w.ViewTop() + w.viewHeight
	changed := false
	kept := w.enemies[:0]
	for _, e := range w.enemies {
		switch {
		case e.Destroyed():
			w.network.Notify(protocol.EnemyExplode, e.position)
			changed = true
		case e.removed || e.position.Y > bottom+battlefieldMargin:
			changed = true
		default:
			kept = append(kept, e)
		}
	}
	w.enemies = kept
	pickups := w.pickups[:0]
	for _, p := range w.pickups {
		if p.Position.Y > bottom+battlefieldMargin {
			changed = true
			continue
		}
		pickups = append(pickups, p)
	}
	w.pickups = pickups
	for id, p := range w.players {
		if p.Destroyed() || p.removed {
			delete(w.players, id)
			changed = true
		}
	}
	if changed {
		w.rebuildAirLayer()
	}
}

func (w *World) rebuildAirLayer() {
	nodes := make([]command.Node, 0, len(w.players)+len(w.enemies)+len(w.pickups))
	for _, p := range w.players {
		nodes = append(nodes, p)
	}
	for _, e := range w.enemies {
		nodes = append(nodes, e)
	}
	for _, p := range w.pickups {
		nodes = append(nodes, p)
	}
	w.air.children = nodes
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
