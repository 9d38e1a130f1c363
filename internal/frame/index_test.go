package frame

import (
	"testing"
	"time"

	"github.com/John-Robertt/framex/internal/domain"
)

func TestIndex(t *testing.T) {
	cases := []struct {
		name       string
		elapsed    float64
		rate       float64
		frameCount int
		wantIdx    int
		wantKind   domain.ErrKind
	}{
		{"整数秒", 32, 30, 0, 960, domain.ErrKindNone},
		{"小数秒向下取整", 1.99, 30, 0, 59, domain.ErrKindNone},
		{"起点", 0, 25, 0, 0, domain.ErrKindNone},
		{"负偏移", -1, 30, 0, -1, domain.ErrKindTimestampBeforeStart},
		{"帧率无效回退 30", 2, 0, 0, 60, domain.ErrKindNone},
		{"帧率为负回退 30", 2, -5, 0, 60, domain.ErrKindNone},
		{"越界", 10, 30, 300, 300, domain.ErrKindOutOfRange},
		{"最后一帧", 9.99, 30, 300, 299, domain.ErrKindNone},
		{"帧数未知不判越界", 1000, 30, 0, 30000, domain.ErrKindNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx, kind := Index(tc.elapsed, tc.rate, tc.frameCount)
			if idx != tc.wantIdx || kind != tc.wantKind {
				t.Fatalf("Index(%v,%v,%d)=(%d,%q)，期望 (%d,%q)", tc.elapsed, tc.rate, tc.frameCount, idx, kind, tc.wantIdx, tc.wantKind)
			}
		})
	}
}

func TestForRecord_Scenario(t *testing.T) {
	start := time.Date(2023, 5, 1, 10, 15, 0, 0, time.UTC)
	rec := domain.RecordingFile{StartTime: start, FrameRate: 30}

	r := domain.Record{UserID: 7, Timestamp: time.Date(2023, 5, 1, 10, 15, 32, 0, time.UTC)}
	idx, kind := ForRecord(r, rec)
	if idx != 960 || kind != domain.ErrKindNone {
		t.Fatalf("期望 (960, none)，实际 (%d,%q)", idx, kind)
	}

	before := domain.Record{UserID: 7, Timestamp: start.Add(-time.Second)}
	if _, kind := ForRecord(before, rec); kind != domain.ErrKindTimestampBeforeStart {
		t.Fatalf("起点前 1 秒应为 timestamp_before_start，实际 %q", kind)
	}
}
