package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/framex/internal/domain"
)

// 支持的时间戳格式：按顺序尝试。
var layouts = []string{
	"02/01/2006 15:04:05",
	"2006-01-02 15:04:05",
}

var requiredColumns = []string{"user_id", "timestamp", "page"}

// RowError 表示第 Row 行（1-based，含表头）无法解析。
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("第 %d 行无法解析：%v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Load 读取 CSV 记录文件。时间戳按 loc 解释为墙上时间（nil 表示本地时区）。
func Load(path string, loc *time.Location) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, loc)
}

// Parse 解析带表头的 CSV：列按表头识别，顺序任意，多余列忽略。
// 记录 ID 为数据行的 0-based 序号。
func Parse(r io.Reader, loc *time.Location) ([]domain.Record, error) {
	if loc == nil {
		loc = time.Local
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &RowError{Row: 1, Err: errors.New("缺少表头")}
	}
	if err != nil {
		return nil, &RowError{Row: 1, Err: err}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, &RowError{Row: 1, Err: fmt.Errorf("缺少列 %q", c)}
		}
	}

	var out []domain.Record
	for row := 2; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}

		rec, err := parseRow(fields, cols, loc)
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		rec.ID = len(out)
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(fields []string, cols map[string]int, loc *time.Location) (domain.Record, error) {
	get := func(name string) (string, error) {
		i := cols[name]
		if i >= len(fields) {
			return "", fmt.Errorf("缺少字段 %q", name)
		}
		return strings.TrimSpace(fields[i]), nil
	}

	uid, err := get("user_id")
	if err != nil {
		return domain.Record{}, err
	}
	id, err := strconv.Atoi(uid)
	if err != nil {
		return domain.Record{}, fmt.Errorf("user_id 不是整数：%q", uid)
	}

	raw, err := get("timestamp")
	if err != nil {
		return domain.Record{}, err
	}
	ts, err := parseTimestamp(raw, loc)
	if err != nil {
		return domain.Record{}, err
	}

	page, err := get("page")
	if err != nil {
		return domain.Record{}, err
	}
	return domain.Record{UserID: id, Timestamp: ts, Page: page}, nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("时间戳格式无效：%q", s)
}
