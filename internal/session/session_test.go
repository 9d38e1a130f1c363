package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestStartTime_Valid(t *testing.T) {
	p := filepath.Join(string(filepath.Separator), "videos", "user7-2023-05-01 10-15-00.mp4")
	got, err := StartTime(p, time.UTC)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := time.Date(2023, 5, 1, 10, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
}

func TestStartTime_UsesLocation(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	got, err := StartTime("user12-2024-01-31 23-59-59.mkv", loc)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got.Location() != loc || got.Hour() != 23 {
		t.Fatalf("应按给定 Location 解释墙钟时间：%v", got)
	}
}

func TestStartTime_Malformed(t *testing.T) {
	cases := []string{
		"user7.mp4",
		"user7-2023-05-01.mp4",
		"user7-2023-05-01 10-15.mp4",
		"user7-not a time.mp4",
		"user7-2023-13-01 10-15-00.mp4",
	}
	for _, name := range cases {
		_, err := StartTime(name, time.UTC)
		var me *MalformedError
		if !errors.As(err, &me) {
			t.Fatalf("%q：期望 MalformedError，实际 err=%v", name, err)
		}
		if me.Name != name {
			t.Fatalf("%q：错误中的文件名不正确：%q", name, me.Name)
		}
	}
}
