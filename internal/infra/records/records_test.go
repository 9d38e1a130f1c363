package records

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_BothLayoutsAnyColumnOrder(t *testing.T) {
	in := "page,timestamp,user_id,extra\n" +
		"/tantangan/penjumlahan-dua-angka,01/05/2023 10:15:32,7,x\n" +
		"/tantangan/status-http, 2023-05-01 10:16:00 ,8,y\n"

	recs, err := Parse(strings.NewReader(in), time.UTC)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d", len(recs))
	}

	want0 := time.Date(2023, 5, 1, 10, 15, 32, 0, time.UTC)
	if recs[0].ID != 0 || recs[0].UserID != 7 || !recs[0].Timestamp.Equal(want0) || recs[0].Page != "/tantangan/penjumlahan-dua-angka" {
		t.Fatalf("第一条记录不符合预期：%+v", recs[0])
	}
	want1 := time.Date(2023, 5, 1, 10, 16, 0, 0, time.UTC)
	if recs[1].ID != 1 || recs[1].UserID != 8 || !recs[1].Timestamp.Equal(want1) {
		t.Fatalf("第二条记录不符合预期：%+v", recs[1])
	}
}

func TestParse_DayFirstLayout(t *testing.T) {
	// 02/01 是 1 月 2 日，而不是 2 月 1 日。
	recs, err := Parse(strings.NewReader("user_id,timestamp,page\n1,02/01/2024 08:00:00,/p\n"), time.UTC)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if recs[0].Timestamp.Month() != time.January || recs[0].Timestamp.Day() != 2 {
		t.Fatalf("应按日/月/年解析：%v", recs[0].Timestamp)
	}
}

func TestParse_Location(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	recs, err := Parse(strings.NewReader("user_id,timestamp,page\n1,2024-01-02 08:00:00,/p\n"), loc)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if recs[0].Timestamp.Location() != loc || recs[0].Timestamp.Hour() != 8 {
		t.Fatalf("应按指定时区解释墙上时间：%v", recs[0].Timestamp)
	}
}

func TestParse_BadRowsCarryRowNumber(t *testing.T) {
	cases := []struct {
		name string
		in   string
		row  int
	}{
		{"空输入", "", 1},
		{"缺列", "user_id,page\n1,/p\n", 1},
		{"user_id 非整数", "user_id,timestamp,page\n1,2024-01-02 08:00:00,/p\nabc,2024-01-02 08:00:00,/p\n", 3},
		{"时间戳无效", "user_id,timestamp,page\n1,2024/01/02 08:00,/p\n", 2},
		{"字段不足", "page,user_id,timestamp\n/p,1\n", 2},
	}
	for _, tc := range cases {
		_, err := Parse(strings.NewReader(tc.in), time.UTC)
		var re *RowError
		if !errors.As(err, &re) {
			t.Fatalf("%s：期望 RowError，实际 %T %v", tc.name, err, err)
		}
		if re.Row != tc.row {
			t.Fatalf("%s：行号=%d，期望 %d", tc.name, re.Row, tc.row)
		}
	}
}

func TestLoad_FileAndBOM(t *testing.T) {
	p := filepath.Join(t.TempDir(), "records.csv")
	if err := os.WriteFile(p, []byte("\ufeffuser_id,timestamp,page\n7,01/05/2023 10:15:32,/p\n"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	recs, err := Load(p, time.UTC)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(recs) != 1 || recs[0].UserID != 7 {
		t.Fatalf("记录不符合预期：%+v", recs)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv"), time.UTC); err == nil {
		t.Fatalf("文件不存在时应返回错误")
	}
}
