package naming

import (
	"testing"
	"time"

	"github.com/John-Robertt/framex/internal/domain"
)

func TestFileName_Scenario(t *testing.T) {
	n := New(DefaultLabels())
	r := domain.Record{
		UserID:    7,
		Timestamp: time.Date(2023, 5, 1, 10, 15, 32, 0, time.UTC),
		Page:      "/tantangan/penjumlahan-dua-angka",
	}
	if got := n.FileName(r); got != "user7_challenge1_time101532.jpg" {
		t.Fatalf("文件名不符合预期：%q", got)
	}
	// 确定性：重复调用结果一致。
	if n.FileName(r) != n.FileName(r) {
		t.Fatalf("同一输入应得到同一文件名")
	}
}

func TestFileName_UnknownPage(t *testing.T) {
	n := New(DefaultLabels())
	r := domain.Record{
		UserID:    3,
		Timestamp: time.Date(2023, 5, 1, 9, 5, 7, 0, time.UTC),
		Page:      "/beranda",
	}
	if got := n.FileName(r); got != "user3_challenge_unknown_time090507.jpg" {
		t.Fatalf("未知 page 应使用哨兵标签：%q", got)
	}
}

func TestNew_CopiesTable(t *testing.T) {
	labels := map[string]string{"/a": "A"}
	n := New(labels)
	labels["/a"] = "B"
	if n.Label("/a") != "A" {
		t.Fatalf("Namer 不应受调用方后续修改影响")
	}
}
