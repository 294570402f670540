// Package safe 包裹后台 goroutine，panic 记录日志而不是带崩整个进程
package safe

import (
	"log/slog"
	"runtime/debug"
	"strings"
)

func Run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("stack", stackTrace()),
			)
		}
	}()

	fn()
}

// stackTrace 截取前 20 帧，足够定位 panic 现场
func stackTrace() string {
	lines := strings.Split(string(debug.Stack()), "\n")
	if len(lines) > 20 {
		lines = append(lines[:20], "... (truncated)")
	}
	return strings.Join(lines, "\n")
}
