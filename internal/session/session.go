package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Layout 是录像文件名中嵌入的开始时间格式：user{id}-{YYYY-MM-DD HH-MM-SS}.{ext}
const Layout = "2006-01-02 15-04-05"

// MalformedError 表示无法从文件名解析出开始时间。
// 对整组记录是致命错误（上层映射为 malformed_file_name）。
type MalformedError struct {
	Name string
	Err  error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("无法从录像文件名 %q 解析开始时间（期望 user{id}-YYYY-MM-DD HH-MM-SS.ext）：%v", e.Name, e.Err)
	}
	return fmt.Sprintf("无法从录像文件名 %q 解析开始时间（期望 user{id}-YYYY-MM-DD HH-MM-SS.ext）", e.Name)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// StartTime 从录像路径的文件名中解析开始时间，使用 loc 解释墙钟时间。
//
// 规则：取第一个 '-' 之后、最后一个 '.' 之前的子串，按 Layout 解析。
// 这与记录时间戳使用同一 Location，保证两者相减得到的是真实偏移。
func StartTime(path string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	base := filepath.Base(path)

	_, rest, ok := strings.Cut(base, "-")
	if !ok || rest == "" {
		return time.Time{}, &MalformedError{Name: base}
	}
	if ext := filepath.Ext(rest); ext != "" {
		rest = strings.TrimSuffix(rest, ext)
	}

	t, err := time.ParseInLocation(Layout, rest, loc)
	if err != nil {
		return time.Time{}, &MalformedError{Name: base, Err: err}
	}
	return t, nil
}
