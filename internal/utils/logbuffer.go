package utils

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogBuffer 保存最近N条日志的环形缓冲,供表单页面展示
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
	size  int
	next  int
	full  bool

	console zerolog.ConsoleWriter
}

// NewLogBuffer 创建容量为size的日志缓冲
func NewLogBuffer(size int) *LogBuffer {
	if size < 1 {
		size = 1
	}
	b := &LogBuffer{
		lines: make([]string, size),
		size:  size,
	}
	b.console = zerolog.ConsoleWriter{
		Out:        lineSink{b},
		NoColor:    true,
		TimeFormat: time.TimeOnly,
	}
	return b
}

// Write 接收一条JSON日志并格式化为可读文本
func (b *LogBuffer) Write(p []byte) (int, error) {
	if _, err := b.console.Write(p); err != nil {
		b.push(string(p))
	}
	return len(p), nil
}

// Lines 按时间顺序返回缓冲内的日志
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]string, b.next)
		copy(out, b.lines[:b.next])
		return out
	}
	out := make([]string, 0, b.size)
	out = append(out, b.lines[b.next:]...)
	out = append(out, b.lines[:b.next]...)
	return out
}

func (b *LogBuffer) push(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.next] = line
	b.next = (b.next + 1) % b.size
	if b.next == 0 {
		b.full = true
	}
}

type lineSink struct{ b *LogBuffer }

func (s lineSink) Write(p []byte) (int, error) {
	line := string(p)
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	s.b.push(line)
	return len(p), nil
}
