package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLevel 让进度条保持可读：只有告警及以上输出到 stderr。
const DefaultLevel = "warn"

// New 构造写入 stderr 的控制台日志。level 为空时使用 DefaultLevel。
func New(level string) (*zap.Logger, error) {
	return NewWriter(level, os.Stderr)
}

// NewWriter 与 New 相同，但输出到 w。
func NewWriter(level string, w io.Writer) (*zap.Logger, error) {
	if strings.TrimSpace(level) == "" {
		level = DefaultLevel
	}
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("日志级别无效：%q", level)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), lvl)
	return zap.New(core), nil
}
