// Package logger 提供统一的日志工具
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level 日志级别
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel 解析日志级别字符串，无法识别时返回 INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Sink 诊断输出接口
//
// 匹配器只依赖这个接口，调用方可以注入自己的 Logger 来捕获告警。
type Sink interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	LogEvent(category string, ok bool, elapsedMs float64, detail string)
}

// Logger 日志记录器
type Logger struct {
	mu       sync.Mutex
	level    Level
	enabled  bool
	console  io.Writer
	fileOut  *os.File
	filePath string
	clock    func() time.Time
	logger   *log.Logger
}

// Option Logger 选项
type Option func(*Logger)

// WithOutput 设置控制台输出目标（默认 os.Stderr）
func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		l.console = w
	}
}

// WithLevel 设置最低输出级别
func WithLevel(level Level) Option {
	return func(l *Logger) {
		l.level = level
	}
}

// WithClock 替换时间来源，测试中用于得到稳定输出
func WithClock(clock func() time.Time) Option {
	return func(l *Logger) {
		l.clock = clock
	}
}

// 全局默认 logger
var defaultLogger = New()

// Discard 丢弃所有输出的 Sink
var Discard Sink = New(WithOutput(io.Discard))

// New 创建新的 Logger 实例
func New(opts ...Option) *Logger {
	l := &Logger{
		level:   INFO,
		enabled: true,
		console: os.Stderr,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = log.New(l.console, "", 0)
	return l
}

// Default 获取默认 logger
func Default() *Logger {
	return defaultLogger
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetEnabled 设置是否启用日志
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// SetFile 追加输出到文件，path 为空时关闭文件输出
func (l *Logger) SetFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileOut != nil {
		l.fileOut.Close()
		l.fileOut = nil
	}
	l.filePath = path

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			l.logger.SetOutput(l.console)
			return fmt.Errorf("无法打开日志文件: %w", err)
		}
		l.fileOut = f
	}

	l.updateOutput()
	return nil
}

func (l *Logger) updateOutput() {
	if l.fileOut == nil {
		l.logger.SetOutput(l.console)
		return
	}
	l.logger.SetOutput(io.MultiWriter(l.console, l.fileOut))
}

// log 内部日志方法
func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.level {
		return
	}

	timestamp := l.clock().Format("15:04:05")
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("%s | %-5s | %s", timestamp, level.String(), msg)
}

// Debug 输出 DEBUG 级别日志
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info 输出 INFO 级别日志
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn 输出 WARN 级别日志
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error 输出 ERROR 级别日志
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// LogEvent 记录带分类的事件日志
func (l *Logger) LogEvent(category string, ok bool, elapsedMs float64, detail string) {
	if ok {
		l.Info("%-4s | OK | %6.1fms | %s", category, elapsedMs, detail)
	} else {
		l.Error("%-4s | NG | %6.1fms | %s", category, elapsedMs, detail)
	}
}

// Close 关闭 logger，释放资源
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileOut != nil {
		err := l.fileOut.Close()
		l.fileOut = nil
		l.updateOutput()
		return err
	}
	return nil
}
