package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/framex/internal/app/planner"
	"github.com/John-Robertt/framex/internal/infra/logx"
	"github.com/John-Robertt/framex/internal/naming"
)

var noEnv = map[string]string{}

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, noEnv, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}

	// --config 指向不存在的文件同样是 config_not_found。
	_, err = LoadEffective(cwd, noEnv, CLIArgs{ConfigPath: "nope.json", Records: "r", Videos: "v", Out: "o"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_ConfigMissingPath(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"records":"r.csv","videos":"v"}`))

	_, err := LoadEffective(cwd, noEnv, CLIArgs{})
	if Code(err) != ErrCodeMissingPath {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingPath, err, Code(err))
	}
}

func TestLoadEffective_CLIPaths_ConfigOptional(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, noEnv, CLIArgs{Records: "r.csv", Videos: "v", Out: "o", WorkersSet: true, Workers: 3})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("未读取配置文件时 ConfigPath 应为空：%q", eff.ConfigPath)
	}
	if eff.Records != filepath.Join(cwd, "r.csv") || eff.Videos != filepath.Join(cwd, "v") || eff.Out != filepath.Join(cwd, "o") {
		t.Fatalf("CLI 路径应相对 cwd 解析：%+v", eff)
	}
	if eff.DensityThreshold != planner.DefaultDensityThreshold {
		t.Fatalf("期望默认 density_threshold，实际 %d", eff.DensityThreshold)
	}
	if eff.LogLevel != logx.DefaultLevel || eff.FFmpegBin != "ffmpeg" {
		t.Fatalf("默认值不符合预期：level=%q bin=%q", eff.LogLevel, eff.FFmpegBin)
	}
	if eff.PageLabels["/tantangan/status-http"] != "challenge2" {
		t.Fatalf("期望默认页面标签表：%v", eff.PageLabels)
	}
	if eff.UseHardwareDecode {
		t.Fatalf("默认不启用硬件解码")
	}
}

func TestLoadEffective_FilePathsRelativeToConfigDir(t *testing.T) {
	cwd := t.TempDir()
	dir := filepath.Join(cwd, "conf")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(dir, "a.json"), []byte(`{
		"records":"r.csv","videos":"/abs/v","out":"out",
		"max_workers":2,"metrics_textfile":"m.prom",
		"page_label_table":{"/p":"px"},"timezone":"UTC"
	}`))

	eff, err := LoadEffective(cwd, noEnv, CLIArgs{ConfigPath: "conf/a.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(dir, "a.json") {
		t.Fatalf("ConfigPath 不符合预期：%q", eff.ConfigPath)
	}
	if eff.Records != filepath.Join(dir, "r.csv") || eff.Videos != filepath.Clean("/abs/v") || eff.Out != filepath.Join(dir, "out") {
		t.Fatalf("配置文件路径应相对配置目录解析：%+v", eff)
	}
	if eff.MetricsTextfile != filepath.Join(dir, "m.prom") {
		t.Fatalf("metrics_textfile 不符合预期：%q", eff.MetricsTextfile)
	}
	if eff.MaxWorkers != 2 {
		t.Fatalf("期望 max_workers=2，实际 %d", eff.MaxWorkers)
	}
	if len(eff.PageLabels) != 1 || naming.New(eff.PageLabels).Label("/p") != "px" {
		t.Fatalf("页面标签表应整体替换默认值：%v", eff.PageLabels)
	}
	if eff.Location.String() != "UTC" {
		t.Fatalf("timezone 不符合预期：%v", eff.Location)
	}
}

func TestLoadEffective_MergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"records":"r","videos":"v","out":"o","max_workers":2,"use_hardware_decode":true,"density_threshold":5}`))

	// 仅配置文件。
	eff, err := LoadEffective(cwd, noEnv, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MaxWorkers != 2 || !eff.UseHardwareDecode || eff.DensityThreshold != 5 {
		t.Fatalf("应使用配置文件值：%+v", eff)
	}

	// 环境变量覆盖配置文件。
	environ := map[string]string{
		"FRAMEX_MAX_WORKERS":         "5",
		"FRAMEX_USE_HARDWARE_DECODE": "false",
		"FRAMEX_FFMPEG_BIN":          "/opt/ffmpeg",
		"FRAMEX_FFPROBE_BIN":         "/opt/ffprobe",
		"FRAMEX_LOG_LEVEL":           "debug",
	}
	eff, err = LoadEffective(cwd, environ, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MaxWorkers != 5 || eff.UseHardwareDecode || eff.FFmpegBin != "/opt/ffmpeg" || eff.FFprobeBin != "/opt/ffprobe" || eff.LogLevel != "debug" {
		t.Fatalf("环境变量应覆盖配置文件：%+v", eff)
	}

	// CLI 覆盖环境变量（--hwaccel=true --workers 7 --threshold 20）。
	eff, err = LoadEffective(cwd, environ, CLIArgs{
		Workers: 7, WorkersSet: true,
		HWAccel: true, HWAccelSet: true,
		Threshold: 20, ThresholdSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MaxWorkers != 7 || !eff.UseHardwareDecode || eff.DensityThreshold != 20 {
		t.Fatalf("CLI 应覆盖环境变量：%+v", eff)
	}
}

func TestLoadEffective_DefaultWorkersRecommended(t *testing.T) {
	cwd := t.TempDir()
	eff, err := LoadEffective(cwd, noEnv, CLIArgs{Records: "r", Videos: "v", Out: "o", HWAccel: true, HWAccelSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MaxWorkers != 2 {
		t.Fatalf("硬件解码时推荐并发度为 2，实际 %d", eff.MaxWorkers)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"json 损坏":       `{`,
		"max_workers=0": `{"records":"r","videos":"v","out":"o","max_workers":0}`,
		"threshold=0":   `{"records":"r","videos":"v","out":"o","density_threshold":0}`,
		"timezone 无效":   `{"records":"r","videos":"v","out":"o","timezone":"Mars/Base"}`,
		"label 为空":      `{"records":"r","videos":"v","out":"o","page_label_table":{"/p":" "}}`,
	}
	for name, body := range cases {
		cwd := t.TempDir()
		writeFile(t, filepath.Join(cwd, FileName), []byte(body))
		_, err := LoadEffective(cwd, noEnv, CLIArgs{})
		if Code(err) != ErrCodeInvalid {
			t.Fatalf("%s：期望 %q，实际 err=%v (code=%q)", name, ErrCodeInvalid, err, Code(err))
		}
	}
}

func TestLoadEffective_InvalidEnvAndCLI(t *testing.T) {
	cwd := t.TempDir()
	base := CLIArgs{Records: "r", Videos: "v", Out: "o"}

	_, err := LoadEffective(cwd, map[string]string{"FRAMEX_MAX_WORKERS": "many"}, base)
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("环境变量非法时期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}

	cli := base
	cli.Workers, cli.WorkersSet = 0, true
	_, err = LoadEffective(cwd, noEnv, cli)
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("--workers 0 时期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
