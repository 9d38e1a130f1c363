package domain

import "time"

// Record 是行为日志中的一行（摄入后不可变）。
//
// 约束：
// - ID 为输入流中的序号（从 0 开始），用于报告排序与回溯
// - Timestamp 为无时区语义的墙钟时间，必须与录像文件名时间使用同一 Location 解析
type Record struct {
	ID        int
	UserID    int
	Timestamp time.Time
	Page      string
}
