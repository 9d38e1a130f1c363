package domain

import "time"

// ErrKind 是单条记录失败原因的稳定标识（同时用于 report.json 与 metrics 标签）。
type ErrKind string

const (
	ErrKindNone                 ErrKind = ""
	ErrKindNoVideoMatch         ErrKind = "no_video_match"
	ErrKindMalformedFileName    ErrKind = "malformed_file_name"
	ErrKindTimestampBeforeStart ErrKind = "timestamp_before_start"
	ErrKindOutOfRange           ErrKind = "out_of_range"
	ErrKindReadError            ErrKind = "read_error"
	ErrKindWriteError           ErrKind = "write_error"
	ErrKindOpenError            ErrKind = "open_error"
)

// AllErrKinds 按固定顺序列出全部失败种类（用于输出与测试）。
var AllErrKinds = []ErrKind{
	ErrKindNoVideoMatch,
	ErrKindMalformedFileName,
	ErrKindTimestampBeforeStart,
	ErrKindOutOfRange,
	ErrKindReadError,
	ErrKindWriteError,
	ErrKindOpenError,
}

const (
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusUnresolved = "unresolved"
)

// Strategy 标识抽帧策略。
type Strategy string

const (
	StrategyNone           Strategy = ""
	StrategyDirectSeek     Strategy = "direct_seek"
	StrategyBufferedWindow Strategy = "buffered_window"
)

// Outcome 是单条记录的处理结果：Success{OutputPath} 或 Failure{Kind}。
//
// 每条输入记录恰好对应一个 Outcome；FrameIndex 为 -1 表示未计算出帧号。
type Outcome struct {
	RecordID  int
	UserID    int
	Timestamp time.Time
	Page      string

	Status     string
	Kind       ErrKind
	OutputPath string
	FrameIndex int
	Strategy   Strategy
	Message    string
}

// Succeeded 构造成功结果。
func Succeeded(r Record, s Strategy, frameIndex int, outputPath string) Outcome {
	return Outcome{
		RecordID:   r.ID,
		UserID:     r.UserID,
		Timestamp:  r.Timestamp,
		Page:       r.Page,
		Status:     StatusSuccess,
		OutputPath: outputPath,
		FrameIndex: frameIndex,
		Strategy:   s,
	}
}

// Failed 构造失败结果。
func Failed(r Record, s Strategy, kind ErrKind, frameIndex int, msg string) Outcome {
	return Outcome{
		RecordID:   r.ID,
		UserID:     r.UserID,
		Timestamp:  r.Timestamp,
		Page:       r.Page,
		Status:     StatusFailed,
		Kind:       kind,
		FrameIndex: frameIndex,
		Strategy:   s,
		Message:    msg,
	}
}

// Unresolved 构造“找不到录像”的结果；它只计入 unresolved，不计入 failures_by_kind。
func Unresolved(r Record) Outcome {
	return Outcome{
		RecordID:   r.ID,
		UserID:     r.UserID,
		Timestamp:  r.Timestamp,
		Page:       r.Page,
		Status:     StatusUnresolved,
		Kind:       ErrKindNoVideoMatch,
		FrameIndex: -1,
		Message:    "找不到与该用户/日期匹配的录像文件",
	}
}

// FailAll 把一整组记录转为同一种失败（用于 open_error / malformed_file_name 等任务级错误）。
func FailAll(records []Record, s Strategy, kind ErrKind, msg string) []Outcome {
	out := make([]Outcome, 0, len(records))
	for _, r := range records {
		out = append(out, Failed(r, s, kind, -1, msg))
	}
	return out
}
