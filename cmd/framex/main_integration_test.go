package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/framex/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 这个测试锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON（进度/配置必须走 stderr 或直接禁用）。
	root := t.TempDir()

	// 准备最小输入：录像目录中没有该用户的录像，因此不需要真实 ffmpeg。
	videos := filepath.Join(root, "videos")
	if err := os.MkdirAll(videos, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(filepath.Join(videos, "user8-2023-05-01 09-00-00.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入视频失败：%v", err)
	}
	records := filepath.Join(root, "records.csv")
	if err := os.WriteFile(records, []byte("user_id,timestamp,page\n71,01/05/2023 10:15:32,/x\n"), 0o644); err != nil {
		t.Fatalf("写入记录失败：%v", err)
	}
	out := filepath.Join(root, "out")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/framex", "run",
		"--records", records, "--videos", videos, "--out", out, "--workers", "1",
	)
	cmd.Dir = repoRoot
	cmd.Env = append(os.Environ(), "FRAMEX_LOG_LEVEL=error")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// 存在 unresolved 记录：退出码必须为 1。
	err = cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("期望退出码 1，实际 err=%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	// stdout 必须是单个 JSON。
	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if rr.Summary.TotalRecords != 1 || rr.Summary.Unresolved != 1 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
	if len(rr.Items) != 1 || rr.Items[0].ErrorCode != string(domain.ErrKindNoVideoMatch) {
		t.Fatalf("items 不符合预期：%+v", rr.Items)
	}
	if strings.Contains(stdout.String(), "配置（生效）") || strings.Contains(stdout.String(), "进度:") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout.String())
	}

	// stderr 至少应包含最终摘要行；报告同时落盘到输出目录。
	if !strings.Contains(stderr.String(), "完成：total=1") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(out, ReportFileName)); err != nil {
		t.Fatalf("输出目录缺少 report.json：%v", err)
	}
}
