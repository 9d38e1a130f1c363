package domain

import "time"

// RecordingFile 描述一个录像文件的时间元数据（每个任务首次用到时推导，任务结束即丢弃）。
type RecordingFile struct {
	Path      string
	StartTime time.Time
	FrameRate float64
	// FrameCount <= 0 表示未知（不做越界判断）。
	FrameCount int
}

// FrameCountKnown 报告 FrameCount 是否可用于越界判断。
func (r RecordingFile) FrameCountKnown() bool { return r.FrameCount > 0 }

// RecordingGroup 是解析到同一录像文件的所有记录。
//
// 不变量：
// - Path 为 clean + absolute，作为分组主键
// - Records 保持输入顺序（策略内部自行排序）
type RecordingGroup struct {
	Path    string
	Records []Record
}
