package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
	ErrCodeRecordsInvalid    = "records_invalid"
	ErrCodeIOFailed          = "io_failed"
)

// RunReport 是对外稳定输出（stdout JSON / report 文件）的结构。
type RunReport struct {
	RunID   string `json:"run_id"`
	Records string `json:"records"`
	Videos  string `json:"videos"`
	Out     string `json:"out"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	// Errors 是与具体记录无关的运行级错误（配置/读取记录失败等）。
	Errors []RunError   `json:"errors"`
	Items  []ItemResult `json:"items"`
}

// ReportSummary 满足：Successes + Σ FailuresByKind + Unresolved == TotalRecords。
type ReportSummary struct {
	TotalRecords   int             `json:"total_records"`
	Successes      int             `json:"successes"`
	Failed         int             `json:"failed"`
	Unresolved     int             `json:"unresolved"`
	FailuresByKind map[ErrKind]int `json:"failures_by_kind"`
}

type RunError struct {
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

type ItemResult struct {
	RecordID   int       `json:"record_id"`
	UserID     int       `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
	Page       string    `json:"page"`
	Status     string    `json:"status"`
	ErrorCode  string    `json:"error_code"`
	ErrorMsg   string    `json:"error_msg"`
	Output     string    `json:"output"`
	FrameIndex int       `json:"frame_index"`
	Strategy   string    `json:"strategy"`
}

// Add 把一个任务（或 unresolved 记录）产出的 Outcome 合并进报告；到达顺序无关。
func (r *RunReport) Add(outs []Outcome) {
	for _, o := range outs {
		r.Items = append(r.Items, ItemResult{
			RecordID:   o.RecordID,
			UserID:     o.UserID,
			Timestamp:  o.Timestamp,
			Page:       o.Page,
			Status:     o.Status,
			ErrorCode:  string(o.Kind),
			ErrorMsg:   o.Message,
			Output:     o.OutputPath,
			FrameIndex: o.FrameIndex,
			Strategy:   string(o.Strategy),
		})
	}
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 record_id 升序
// 3) summary 由 items 计算得出（unresolved 单独计数，不进入 failures_by_kind）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	if r.Errors == nil {
		r.Errors = []RunError{}
	}

	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].RecordID < r.Items[j].RecordID })

	s := ReportSummary{FailuresByKind: make(map[ErrKind]int, len(AllErrKinds))}
	for _, it := range r.Items {
		s.TotalRecords++
		switch it.Status {
		case StatusSuccess:
			s.Successes++
		case StatusUnresolved:
			s.Unresolved++
		default:
			s.Failed++
			s.FailuresByKind[ErrKind(it.ErrorCode)]++
		}
	}
	r.Summary = s
}

// OK 表示所有记录都成功抽帧且没有运行级错误。
func (r RunReport) OK() bool {
	return len(r.Errors) == 0 && r.Summary.Failed == 0 && r.Summary.Unresolved == 0
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为（map key 由 encoding/json 排序）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
