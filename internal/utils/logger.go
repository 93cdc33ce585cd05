package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器,InitLogger 之前丢弃所有输出
var Logger = zerolog.Nop()

const (
	// MainLogFile 主日志文件名
	MainLogFile = "storecrawl.log"
	// ErrorLogFile 错误日志文件名,只记录 error 及以上
	ErrorLogFile = "storecrawl_error.log"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string // trace|debug|info|warn|error
	LogDir     string
	MaxSize    int // 单个日志文件最大大小(MB)
	MaxBackups int
	MaxAge     int // 天
	Compress   bool

	Console io.Writer   // 控制台输出,为空时为标准输出
	Extra   []io.Writer // 额外输出,如表单页面的日志缓冲
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// InitLogger 初始化日志系统
// 控制台、主日志和 Extra 记录所有级别,错误日志只记录 error 及以上
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	console := config.Console
	if console == nil {
		console = os.Stdout
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339},
		config.rotatingFile(MainLogFile),
		&FilteredWriter{Writer: config.rotatingFile(ErrorLogFile), MinLevel: zerolog.ErrorLevel},
	}
	writers = append(writers, config.Extra...)

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()
	log.Logger = Logger

	Logger.Debug().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")

	return nil
}

func (c LogConfig) rotatingFile(name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(c.LogDir, name),
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// FilteredWriter 仅写入指定级别及以上的日志
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 无级别信息的写入直接丢弃
func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// WriteLevel 带级别的写入
func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}

// LogRecord 以结构化字段记录单个URL的结果
// 成功记为debug,其余记为info,控制台默认只看到失败的URL
func LogRecord(rec *models.Record) {
	event := Logger.Info()
	if rec.Status == models.StatusSuccess {
		event = Logger.Debug()
	}
	event.
		Str("url", rec.URL).
		Str("status", string(rec.Status)).
		Int("attempts", rec.Attempts).
		Str("price", rec.Price).
		Msg(rec.Title)
}

func Info(msg string) { Logger.Info().Msg(msg) }

func Infof(format string, args ...interface{}) { Logger.Info().Msgf(format, args...) }

// Error 带错误字段的错误日志
func Error(err error, msg string) { Logger.Error().Err(err).Msg(msg) }

func Errorf(format string, args ...interface{}) { Logger.Error().Msgf(format, args...) }

func Warn(msg string) { Logger.Warn().Msg(msg) }

func Warnf(format string, args ...interface{}) { Logger.Warn().Msgf(format, args...) }

func Debug(msg string) { Logger.Debug().Msg(msg) }

func Debugf(format string, args ...interface{}) { Logger.Debug().Msgf(format, args...) }
