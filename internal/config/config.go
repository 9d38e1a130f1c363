package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/John-Robertt/framex/internal/app/planner"
	"github.com/John-Robertt/framex/internal/infra/logx"
	"github.com/John-Robertt/framex/internal/infra/sysx"
	"github.com/John-Robertt/framex/internal/naming"
)

const (
	// ErrCodeNotFound 表示配置文件不存在：--config 指向的文件不存在，或未给齐路径时 cwd 下没有 framex.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示 records/videos/out 之一在 CLI 与配置文件中都没有给出。
	ErrCodeMissingPath = "config_missing_path"
)

// FileName 是 cwd 下自动发现的配置文件名。
const FileName = "framex.json"

const envPrefix = "FRAMEX_"

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --hwaccel=false 必须能覆盖 use_hardware_decode=true。
type CLIArgs struct {
	ConfigPath string

	Records string
	Videos  string
	Out     string

	Workers    int
	WorkersSet bool

	HWAccel    bool
	HWAccelSet bool

	Threshold    int
	ThresholdSet bool
}

// FileConfig 对应 framex.json 的解析结构。指针字段用于区分“未设置”和零值。
type FileConfig struct {
	Records           string            `json:"records"`
	Videos            string            `json:"videos"`
	Out               string            `json:"out"`
	UseHardwareDecode *bool             `json:"use_hardware_decode"`
	MaxWorkers        *int              `json:"max_workers"`
	PageLabelTable    map[string]string `json:"page_label_table"`
	DensityThreshold  *int              `json:"density_threshold"`
	Timezone          string            `json:"timezone"`
	MetricsTextfile   string            `json:"metrics_textfile"`
}

// EnvConfig 是 FRAMEX_* 环境变量覆盖项。
type EnvConfig struct {
	FFmpegBin         string `env:"FFMPEG_BIN"          envDefault:"ffmpeg"`
	FFprobeBin        string `env:"FFPROBE_BIN"`
	LogLevel          string `env:"LOG_LEVEL"`
	MaxWorkers        *int   `env:"MAX_WORKERS"`
	UseHardwareDecode *bool  `env:"USE_HARDWARE_DECODE"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；未读取时为空。
	ConfigPath string

	Records string
	Videos  string
	Out     string

	UseHardwareDecode bool
	MaxWorkers        int
	PageLabels        map[string]string
	DensityThreshold  int
	Location          *time.Location
	MetricsTextfile   string

	FFmpegBin string
	// FFprobeBin 为空时由 FFmpegBin 推导（同目录的 ffprobe）。
	FFprobeBin string
	LogLevel   string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按约定发现并读取配置文件，叠加环境变量，再与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 给了 --config：必须存在
// 2) CLI 给齐 records/videos/out：<cwd>/framex.json 可选
// 3) 否则：必须读取 <cwd>/framex.json
//
// 路径解析：CLI 路径相对 cwd；配置文件中的路径相对配置文件所在目录。
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值。
// max_workers 全部未设置时按本机内存/CPU 推荐。
func LoadEffective(cwd string, environ map[string]string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	switch {
	case strings.TrimSpace(cli.ConfigPath) != "":
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	default:
		cfgPath = filepath.Join(cwdAbs, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists && !cli.hasAllPaths() {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	}
	if !exists {
		cfgPath = ""
	}

	var ec EnvConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: envPrefix, Environment: environ}); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: "env", Err: err}
	}

	return merge(cwdAbs, cfgPath, cli, ec, fc)
}

func (c CLIArgs) hasAllPaths() bool {
	return strings.TrimSpace(c.Records) != "" && strings.TrimSpace(c.Videos) != "" && strings.TrimSpace(c.Out) != ""
}

func merge(cwdAbs, cfgPath string, cli CLIArgs, ec EnvConfig, fc FileConfig) (EffectiveConfig, error) {
	invalid := func(err error) error {
		p := cfgPath
		if p == "" {
			p = "cli"
		}
		return &Error{Code: ErrCodeInvalid, Path: p, Err: err}
	}

	fileBase := cwdAbs
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}
	pick := func(name, cliVal, fileVal string) (string, error) {
		if strings.TrimSpace(cliVal) != "" {
			return absCleanFrom(cwdAbs, cliVal), nil
		}
		if strings.TrimSpace(fileVal) != "" {
			return absCleanFrom(fileBase, fileVal), nil
		}
		return "", &Error{Code: ErrCodeMissingPath, Path: cfgPath, Err: fmt.Errorf("缺少必填项 %s", name)}
	}

	records, err := pick("records", cli.Records, fc.Records)
	if err != nil {
		return EffectiveConfig{}, err
	}
	videos, err := pick("videos", cli.Videos, fc.Videos)
	if err != nil {
		return EffectiveConfig{}, err
	}
	out, err := pick("out", cli.Out, fc.Out)
	if err != nil {
		return EffectiveConfig{}, err
	}

	// use_hardware_decode：CLI > env > config > 默认 false
	hw := false
	switch {
	case cli.HWAccelSet:
		hw = cli.HWAccel
	case ec.UseHardwareDecode != nil:
		hw = *ec.UseHardwareDecode
	case fc.UseHardwareDecode != nil:
		hw = *fc.UseHardwareDecode
	}

	// max_workers：显式设置必须 >= 1；全部未设置时按本机推荐。
	workers := 0
	switch {
	case cli.WorkersSet:
		workers = cli.Workers
	case ec.MaxWorkers != nil:
		workers = *ec.MaxWorkers
	case fc.MaxWorkers != nil:
		workers = *fc.MaxWorkers
	default:
		workers = sysx.RecommendWorkers(hw)
	}
	if workers < 1 {
		return EffectiveConfig{}, invalid(fmt.Errorf("max_workers 必须 >= 1，实际 %d", workers))
	}

	threshold := planner.DefaultDensityThreshold
	switch {
	case cli.ThresholdSet:
		threshold = cli.Threshold
	case fc.DensityThreshold != nil:
		threshold = *fc.DensityThreshold
	}
	if threshold < 1 {
		return EffectiveConfig{}, invalid(fmt.Errorf("density_threshold 必须 >= 1，实际 %d", threshold))
	}

	labels := naming.DefaultLabels()
	if fc.PageLabelTable != nil {
		labels = make(map[string]string, len(fc.PageLabelTable))
		for page, label := range fc.PageLabelTable {
			if strings.TrimSpace(label) == "" {
				return EffectiveConfig{}, invalid(fmt.Errorf("page_label_table[%q] 不能为空", page))
			}
			labels[page] = label
		}
	}

	loc := time.Local
	if tz := strings.TrimSpace(fc.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("timezone 无效：%q", tz))
		}
		loc = l
	}

	metricsPath := ""
	if strings.TrimSpace(fc.MetricsTextfile) != "" {
		metricsPath = absCleanFrom(fileBase, fc.MetricsTextfile)
	}

	level := strings.TrimSpace(ec.LogLevel)
	if level == "" {
		level = logx.DefaultLevel
	}

	return EffectiveConfig{
		ConfigPath:        cfgPath,
		Records:           records,
		Videos:            videos,
		Out:               out,
		UseHardwareDecode: hw,
		MaxWorkers:        workers,
		PageLabels:        labels,
		DensityThreshold:  threshold,
		Location:          loc,
		MetricsTextfile:   metricsPath,
		FFmpegBin:         ec.FFmpegBin,
		FFprobeBin:        ec.FFprobeBin,
		LogLevel:          level,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
