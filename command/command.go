package command

import (
	"fmt"
	"time"
)

// Category 实体分类位集，用于选择命令作用的实体
type Category uint32

const (
	None             Category = 0
	SceneAirLayer    Category = 1 << 0
	PlayerAircraft   Category = 1 << 1
	AlliedAircraft   Category = 1 << 2
	EnemyAircraft    Category = 1 << 3
	Pickup           Category = 1 << 4
	AlliedProjectile Category = 1 << 5
	EnemyProjectile  Category = 1 << 6
	ParticleSystem   Category = 1 << 7
	SoundEffect      Category = 1 << 8
	Network          Category = 1 << 9

	Aircraft   = PlayerAircraft | AlliedAircraft | EnemyAircraft
	Projectile = AlliedProjectile | EnemyProjectile
)

// Matches 两个分类是否有交集
func (c Category) Matches(mask Category) bool { return c&mask != 0 }

// Node 场景树节点。Children 返回的切片在遍历时被视为快照
type Node interface {
	Category() Category
	Children() []Node
}

// Action 作用在单个节点上的操作
type Action func(n Node, dt time.Duration) error

// Command 分类掩码 + 操作
type Command struct {
	Category Category
	Action   Action
}

// MismatchError 节点不具备命令要求的能力（类型）
type MismatchError struct {
	Want string
	Got  Node
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("command: node %T does not implement %s", e.Got, e.Want)
}

// For 把针对具体能力 T 的函数包装为 Action；节点不满足 T 时返回 *MismatchError，不 panic
func For[T any](fn func(T, time.Duration)) Action {
	return func(n Node, dt time.Duration) error {
		t, ok := n.(T)
		if !ok {
			return &MismatchError{Want: fmt.Sprintf("%T", (*T)(nil))[1:], Got: n}
		}
		fn(t, dt)
		return nil
	}
}
