package protocol

// ServerPort 服务端固定监听端口
const ServerPort = 5000

// AircraftID 服务端分配的飞机唯一标识（从 1 开始单调递增，会话内不复用）
type AircraftID int32

// ServerTag 服务端发出的消息类型
type ServerTag int32

const (
	ServerBroadcastMessage ServerTag = iota
	ServerSpawnSelf
	ServerInitialState
	ServerPlayerEvent
	ServerPlayerRealtimeChange
	ServerPlayerConnect
	ServerPlayerDisconnect
	ServerAcceptCoopPartner
	ServerSpawnEnemy
	ServerSpawnPickup
	ServerUpdateClientState
	ServerMissionSuccess
	serverTagCount
)

var serverTagNames = [...]string{
	"BroadcastMessage", "SpawnSelf", "InitialState", "PlayerEvent",
	"PlayerRealtimeChange", "PlayerConnect", "PlayerDisconnect",
	"AcceptCoopPartner", "SpawnEnemy", "SpawnPickup", "UpdateClientState",
	"MissionSuccess",
}

func (t ServerTag) String() string {
	if t >= 0 && t < serverTagCount {
		return serverTagNames[t]
	}
	return "ServerTag(?)"
}

// ClientTag 客户端发出的消息类型
type ClientTag int32

const (
	ClientPlayerEvent ClientTag = iota
	ClientPlayerRealtimeChange
	ClientRequestCoopPartner
	ClientPositionUpdate
	ClientGameEvent
	ClientQuit
	clientTagCount
)

var clientTagNames = [...]string{
	"PlayerEvent", "PlayerRealtimeChange", "RequestCoopPartner",
	"PositionUpdate", "GameEvent", "Quit",
}

func (t ClientTag) String() string {
	if t >= 0 && t < clientTagCount {
		return clientTagNames[t]
	}
	return "ClientTag(?)"
}

// Action 玩家动作
type Action int32

const (
	MoveLeft Action = iota
	MoveRight
	MoveUp
	MoveDown
	Fire
	LaunchMissile
	ActionCount
)

var actionNames = [...]string{"MoveLeft", "MoveRight", "MoveUp", "MoveDown", "Fire", "LaunchMissile"}

func (a Action) String() string {
	if a >= 0 && a < ActionCount {
		return actionNames[a]
	}
	return "Action(?)"
}

// Valid 是否为已知动作
func (a Action) Valid() bool { return a >= 0 && a < ActionCount }

// IsRealtime 实时动作（按住持续生效）：移动与开火；发射导弹是一次性事件
func IsRealtime(a Action) bool {
	switch a {
	case MoveLeft, MoveRight, MoveUp, MoveDown, Fire:
		return true
	default:
		return false
	}
}

// GameActionType 客户端上报的游戏事件
type GameActionType int32

const (
	EnemyExplode GameActionType = iota
)

// Vec2 二维坐标，线上以两个 float32 表示
type Vec2 struct {
	X float32 `json:"x" msgpack:"x"`
	Y float32 `json:"y" msgpack:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(f float32) Vec2 { return Vec2{float32(v.X * f), float32(v.Y * f)} }

// Approach 向目标移动剩余距离的 fraction 比例：p + fraction*(q-p)
func (v Vec2) Approach(target Vec2, fraction float32) Vec2 {
	return v.Add(target.Sub(v).Scale(fraction))
}

// 线上使用的飞机类型编号；0 为玩家机型，其余为敌机
const (
	Eagle int32 = iota
	Raptor
	Avenger
	AircraftTypeCount
)

// 线上使用的道具类型编号
const (
	HealthRefill int32 = iota
	MissileRefill
	FireSpread
	FireRate
	PickupTypeCount
)
