package world

import "sort"

// SpawnPoint 待生成的敌机：Y 为世界绝对坐标
type SpawnPoint struct {
	Type int32
	X    float32
	Y    float32
}

// SpawnQueue 按 Y 升序保存生成点，Y 最大（最先进入视野）的在末尾
type SpawnQueue struct {
	points []SpawnPoint
}

func (q *SpawnQueue) Add(p SpawnPoint) { q.points = append(q.points, p) }

// Sort 网络模式下生成点乱序到达，每次加入后重新排序
func (q *SpawnQueue) Sort() {
	sort.SliceStable(q.points, func(i, j int) bool { return q.points[i].Y < q.points[j].Y })
}

func (q *SpawnQueue) Len() int { return len(q.points) }

// Due 弹出所有 Y 已越过战场上边界 top 的生成点（从末尾开始）
func (q *SpawnQueue) Due(top float32) []SpawnPoint {
	var out []SpawnPoint
	for n := len(q.points); n > 0 && q.points[n-1].Y > top; n = len(q.points) {
		out = append(out, q.points[n-1])
		q.points = q.points[:n-1]
	}
	return out
}
