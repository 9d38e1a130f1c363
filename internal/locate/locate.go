package locate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoVideoMatch 表示在目录中找不到与 (user, 日期[/小时]) 匹配的录像。
var ErrNoVideoMatch = errors.New("no video match")

// videoExts 的顺序即同一模式内的优先级（.mp4 先于 .mkv）。
var videoExts = []string{".mp4", ".mkv"}

// Locator 按文件名模式把 (user_id, timestamp) 映射到录像文件路径。
//
// 约束：
// - 目录只在 New 时列举一次；Locate 为纯内存匹配（只读，不做 stat）
// - 只看目录第一层的普通文件（与 glob 语义一致，不递归）
// - 保持目录列举顺序：多个文件命中同一模式时取第一个（不同文件系统下不保证确定）
type Locator struct {
	dir   string
	names []string
}

// New 列举 dir 并构造 Locator。dir 会被规范化为 clean + absolute。
func New(dir string) (*Locator, error) {
	abs, err := filepath.Abs(filepath.Clean(strings.TrimSpace(dir)))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// File.ReadDir 不排序（区别于 os.ReadDir），保留文件系统给出的列举顺序。
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isVideoExt(filepath.Ext(name)) {
			continue
		}
		names = append(names, name)
	}
	return &Locator{dir: abs, names: names}, nil
}

// Dir 返回规范化后的录像目录。
func (l *Locator) Dir() string { return l.dir }

// Len 返回参与匹配的录像文件数。
func (l *Locator) Len() int { return len(l.names) }

// Locate 按严格优先级查找录像：
// 1) user{id}-{YYYY-MM-DD} {HH}-*.{mp4|mkv}（日期 + 小时）
// 2) user{id}-{YYYY-MM-DD}*.{mp4|mkv}（仅日期）
//
// 第一个有命中的模式胜出；都没有命中时返回 ErrNoVideoMatch。
func (l *Locator) Locate(userID int, ts time.Time) (string, error) {
	date := ts.Format("2006-01-02")
	hour := ts.Format("15")

	prefixes := []string{
		fmt.Sprintf("user%d-%s %s-", userID, date, hour),
		fmt.Sprintf("user%d-%s", userID, date),
	}
	for _, prefix := range prefixes {
		for _, ext := range videoExts {
			if name, ok := l.first(prefix, ext); ok {
				return filepath.Join(l.dir, name), nil
			}
		}
	}
	return "", ErrNoVideoMatch
}

func (l *Locator) first(prefix, ext string) (string, bool) {
	for _, name := range l.names {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext) && len(name) >= len(prefix)+len(ext) {
			return name, true
		}
	}
	return "", false
}

// 与 glob 保持一致：扩展名大小写敏感。
func isVideoExt(ext string) bool {
	for _, x := range videoExts {
		if ext == x {
			return true
		}
	}
	return false
}
