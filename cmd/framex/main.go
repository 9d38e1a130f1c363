package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/framex/internal/app/run"
	"github.com/John-Robertt/framex/internal/config"
	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/infra/ffmpegx"
	"github.com/John-Robertt/framex/internal/infra/fsx"
	"github.com/John-Robertt/framex/internal/infra/logx"
	"github.com/John-Robertt/framex/internal/infra/metrics"
)

// ReportFileName 是写入输出目录的报告文件名。
const ReportFileName = "report.json"

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	cli, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, env.ToMap(os.Environ()), cli)
	if err != nil {
		emitReport(reportForConfigError(cli, config.Code(err), err))
		return 1
	}

	log, err := logx.New(eff.LogLevel)
	if err != nil {
		emitReport(reportForConfigError(cli, config.ErrCodeInvalid, err))
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()
	opts := ffmpegx.Options{Bin: eff.FFmpegBin, ProbeBin: eff.FFprobeBin, HWAccel: eff.UseHardwareDecode, Logger: log}
	deps := run.Deps{
		Open: func(ctx context.Context, path string) (run.Video, error) {
			d, err := ffmpegx.Open(ctx, path, opts)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
		Logger:  log,
		Metrics: rec,
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(ctx, eff, deps, obs)

	if err := rec.WriteTextfile(eff.MetricsTextfile); err != nil {
		log.Warn("写入 metrics textfile 失败", zap.String("path", eff.MetricsTextfile), zap.Error(err))
	}

	// 输出目录可用时，同时落盘一份 report.json。
	if len(rr.Errors) == 0 {
		if err := writeReportFile(eff.Out, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff, len(rr.Errors) == 0)
	}
	if rr.OK() {
		return 0
	}
	return 1
}

func parseRunArgs(args []string) (config.CLIArgs, error) {
	var cli config.CLIArgs

	// value 读取 "--flag v" 或 "--flag=v" 两种形式。
	value := func(i *int, name string) (string, bool, error) {
		a := args[*i]
		if a == name {
			if *i+1 >= len(args) {
				return "", true, fmt.Errorf("%s 需要一个值", name)
			}
			*i++
			return args[*i], true, nil
		}
		if strings.HasPrefix(a, name+"=") {
			return strings.TrimPrefix(a, name+"="), true, nil
		}
		return "", false, nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]

		switch {
		case a == "--hwaccel":
			cli.HWAccel = true
			cli.HWAccelSet = true
			continue
		case strings.HasPrefix(a, "--hwaccel="):
			v := strings.TrimPrefix(a, "--hwaccel=")
			switch v {
			case "true":
				cli.HWAccel = true
			case "false":
				cli.HWAccel = false
			default:
				return config.CLIArgs{}, fmt.Errorf("--hwaccel 只能是 true 或 false，实际是 %q", v)
			}
			cli.HWAccelSet = true
			continue
		}

		matched := false
		for _, f := range []struct {
			name string
			dst  *string
		}{
			{"--config", &cli.ConfigPath},
			{"--records", &cli.Records},
			{"--videos", &cli.Videos},
			{"--out", &cli.Out},
		} {
			v, ok, err := value(&i, f.name)
			if err != nil {
				return config.CLIArgs{}, err
			}
			if !ok {
				continue
			}
			if strings.TrimSpace(v) == "" {
				return config.CLIArgs{}, fmt.Errorf("%s 不能为空", f.name)
			}
			*f.dst = v
			matched = true
			break
		}
		if matched {
			continue
		}

		for _, f := range []struct {
			name string
			dst  *int
			set  *bool
		}{
			{"--workers", &cli.Workers, &cli.WorkersSet},
			{"--threshold", &cli.Threshold, &cli.ThresholdSet},
		} {
			v, ok, err := value(&i, f.name)
			if err != nil {
				return config.CLIArgs{}, err
			}
			if !ok {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 1 {
				return config.CLIArgs{}, fmt.Errorf("%s 必须是 >= 1 的整数，实际是 %q", f.name, v)
			}
			*f.dst = n
			*f.set = true
			matched = true
			break
		}
		if matched {
			continue
		}

		if strings.HasPrefix(a, "-") {
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		}
		return config.CLIArgs{}, fmt.Errorf("不接受位置参数 %q", a)
	}
	return cli, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  framex run [--config file] [--records csv] [--videos dir] [--out dir] [--workers N] [--hwaccel[=true|false]] [--threshold N]

命令：
  run    按活动记录从屏幕录像中抽帧

使用 "framex run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  framex run [--config file] [--records csv] [--videos dir] [--out dir] [--workers N] [--hwaccel[=true|false]] [--threshold N]

参数：
  --config     配置文件（默认读取 ./framex.json；给齐 --records/--videos/--out 时可省略）
  --records    活动记录 CSV（列：user_id,timestamp,page）
  --videos     录像目录（user{id}-{YYYY-MM-DD} {HH}-{MM}-{SS}.mp4|mkv）
  --out        输出目录（不存在则创建；同名图片覆盖）
  --workers    并发处理的录像数（默认按本机内存/CPU 推荐）
  --hwaccel    启用硬件解码；支持 --hwaccel=false 覆盖配置
  --threshold  单个录像记录数超过该值时改用缓冲窗口策略（默认 10）
  -h, --help   显示帮助

环境变量：
  FRAMEX_FFMPEG_BIN           ffmpeg 可执行文件（默认 ffmpeg）
  FRAMEX_FFPROBE_BIN          ffprobe 可执行文件（默认取 ffmpeg 同目录的 ffprobe）
  FRAMEX_LOG_LEVEL            日志级别 debug|info|warn|error（默认 warn）
  FRAMEX_MAX_WORKERS          同 --workers
  FRAMEX_USE_HARDWARE_DECODE  同 --hwaccel
`)
}

func summaryLine(rr domain.RunReport) string {
	return fmt.Sprintf("完成：total=%d success=%d failed=%d unresolved=%d",
		rr.Summary.TotalRecords, rr.Summary.Successes, rr.Summary.Failed, rr.Summary.Unresolved,
	)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summaryLine(rr))
		if kinds := formatKinds(rr.Summary.FailuresByKind); kinds != "" {
			fmt.Fprintf(os.Stdout, "失败分布：%s\n", kinds)
		}
		for _, e := range rr.Errors {
			fmt.Fprintf(os.Stderr, "%s: %s\n", e.ErrorCode, e.ErrorMsg)
		}
		for _, it := range rr.Items {
			if it.Status == domain.StatusSuccess {
				continue
			}
			fmt.Fprintf(os.Stderr, "#%d user%d %s %s: %s\n",
				it.RecordID, it.UserID, it.Timestamp.Format("2006-01-02 15:04:05"), it.ErrorCode, truncate(it.ErrorMsg, 160),
			)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(os.Stderr, summaryLine(rr))
}

func reportForConfigError(cli config.CLIArgs, code string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		Records:    cli.Records,
		Videos:     cli.Videos,
		Out:        cli.Out,
		StartedAt:  now,
		FinishedAt: now,
		Errors: []domain.RunError{{
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(out string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(out, ReportFileName, b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, wroteReport bool) {
	if w == nil {
		return
	}
	if wroteReport {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Out, ReportFileName))
	}
	fmt.Fprintf(w, "out: %s\n", eff.Out)
	if eff.MetricsTextfile != "" {
		fmt.Fprintf(w, "metrics: %s\n", eff.MetricsTextfile)
	}
}
