package command

import (
	"errors"
	"sync"
	"time"
)

// Queue 先进先出命令队列，可由多个生产者并发 Push，单个消费者 Apply
type Queue struct {
	mu    sync.Mutex
	items []Command
}

func NewQueue() *Queue {
	return &Queue{items: make([]Command, 0, 16)}
}

// Push 入队
func (q *Queue) Push(c Command) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

// Pop 出队；队列为空时 ok=false
func (q *Queue) Pop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Command{}, false
	}
	c := q.items[0]
	q.items[0] = Command{}
	q.items = q.items[1:]
	return c, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Empty() bool { return q.Len() == 0 }

func (q *Queue) drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = make([]Command, 0, cap(out))
	return out
}

// Apply 取出调用前已入队的全部命令，按 FIFO 顺序作用于场景树。
// 目标集合在开始时以先序遍历一次性快照：本步中新建的节点不会收到本步的命令，
// 本步执行中新入队的命令留到下一次 Apply。
func (q *Queue) Apply(root Node, dt time.Duration) error {
	cmds := q.drain()
	if len(cmds) == 0 || root == nil {
		return nil
	}
	nodes := Flatten(root)
	var errs []error
	for _, c := range cmds {
		if c.Action == nil {
			continue
		}
		for _, n := range nodes {
			if !n.Category().Matches(c.Category) {
				continue
			}
			if err := c.Action(n, dt); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Flatten 先序遍历，返回当前树中的全部节点
func Flatten(root Node) []Node {
	var out []Node
	var walk func(n Node)
	walk = func(n Node) {
		out = append(out, n)
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}
