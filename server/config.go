package server

import "time"

// Config 服务端参数
type Config struct {
	Addr          string
	MaxPeers      int
	ClientTimeout time.Duration

	WorldHeight       float32
	BattlefieldWidth  float32
	BattlefieldHeight float32
	ScrollSpeed       float32

	StepRate  int // 卷轴物理步频率（Hz）
	TickRate  int // 逻辑 Tick 频率（Hz）
	LoopSleep time.Duration

	FirstSpawnDelay time.Duration
	SpawnMinDelay   time.Duration
	SpawnMaxDelay   time.Duration
	// SpawnCutoff 战场上边界不高于该值后不再生成敌机
	SpawnCutoff float32
	// PickupChance 敌机爆炸掉落道具的概率为 1/PickupChance
	PickupChance int

	SendQueue    int
	InboundRate  float64 // 每个连接每秒允许的入站消息数
	InboundBurst int
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		Addr:              ":5000",
		MaxPeers:          10,
		ClientTimeout:     3 * time.Second,
		WorldHeight:       5000,
		BattlefieldWidth:  1024,
		BattlefieldHeight: 768,
		ScrollSpeed:       -50,
		StepRate:          60,
		TickRate:          20,
		LoopSleep:         10 * time.Millisecond,
		FirstSpawnDelay:   5 * time.Second,
		SpawnMinDelay:     2 * time.Second,
		SpawnMaxDelay:     8 * time.Second,
		SpawnCutoff:       600,
		PickupChance:      3,
		SendQueue:         256,
		InboundRate:       200,
		InboundBurst:      100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.MaxPeers <= 0 {
		c.MaxPeers = d.MaxPeers
	}
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = d.ClientTimeout
	}
	if c.WorldHeight <= 0 {
		c.WorldHeight = d.WorldHeight
	}
	if c.BattlefieldWidth <= 0 {
		c.BattlefieldWidth = d.BattlefieldWidth
	}
	if c.BattlefieldHeight <= 0 {
		c.BattlefieldHeight = d.BattlefieldHeight
	}
	if c.ScrollSpeed == 0 {
		c.ScrollSpeed = d.ScrollSpeed
	}
	if c.StepRate <= 0 {
		c.StepRate = d.StepRate
	}
	if c.TickRate <= 0 {
		c.TickRate = d.TickRate
	}
	if c.LoopSleep <= 0 {
		c.LoopSleep = d.LoopSleep
	}
	if c.FirstSpawnDelay <= 0 {
		c.FirstSpawnDelay = d.FirstSpawnDelay
	}
	if c.SpawnMinDelay <= 0 {
		c.SpawnMinDelay = d.SpawnMinDelay
	}
	if c.SpawnMaxDelay < c.SpawnMinDelay {
		c.SpawnMaxDelay = c.SpawnMinDelay
	}
	if c.PickupChance <= 0 {
		c.PickupChance = d.PickupChance
	}
	if c.SendQueue <= 0 {
		c.SendQueue = d.SendQueue
	}
	if c.InboundRate <= 0 {
		c.InboundRate = d.InboundRate
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = d.InboundBurst
	}
	return c
}

func (c Config) stepInterval() time.Duration { return time.Second / time.Duration(c.StepRate) }
func (c Config) tickInterval() time.Duration { return time.Second / time.Duration(c.TickRate) }
