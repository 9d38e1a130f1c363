package naming

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/framex/internal/domain"
)

// UnknownLabel 是未在映射表中出现的 page 所使用的标签。
const UnknownLabel = "challenge_unknown"

// DefaultLabels 是内置的 page -> label 映射（可被配置覆盖/扩展）。
func DefaultLabels() map[string]string {
	return map[string]string{
		"/tantangan/penjumlahan-dua-angka": "challenge1",
		"/tantangan/status-http":           "challenge2",
	}
}

// Namer 根据记录生成确定性的输出文件名。
//
// 约束：纯函数，无随机性；同一输入重复运行得到同名文件（覆盖而非新增）。
type Namer struct {
	labels map[string]string
}

// New 拷贝一份 labels，避免调用方之后的修改影响已构造的 Namer。
func New(labels map[string]string) Namer {
	m := make(map[string]string, len(labels))
	for k, v := range labels {
		m[k] = v
	}
	return Namer{labels: m}
}

// Label 返回 page 对应的标签。
func (n Namer) Label(page string) string {
	if l, ok := n.labels[page]; ok && strings.TrimSpace(l) != "" {
		return l
	}
	return UnknownLabel
}

// FileName 返回 user{user_id}_{label}_time{HHMMSS}.jpg；时间取记录自身时间戳的时分秒。
func (n Namer) FileName(r domain.Record) string {
	return fmt.Sprintf("user%d_%s_time%s.jpg", r.UserID, n.Label(r.Page), r.Timestamp.Format("150405"))
}
