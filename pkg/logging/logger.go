package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fabian4/Soft-Demo/pkg/utils"
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects every log line. Stdout is reserved for received
// payload bytes, so the default is stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Current time formatted as ISO 8601 with milliseconds
func Timestamp() string {
	return time.Now().Format("2006-01-02T15:04:05.000")
}

func write(color, tag, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%s[%s][%s]%s %s\n", color, Timestamp(), tag, utils.NC, fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...any) {
	write(utils.BLUE, "INFO", format, args...)
}

func LogSuccess(format string, args ...any) {
	write(utils.GREEN, "✓", format, args...)
}

func LogWarning(format string, args ...any) {
	write(utils.YELLOW, "⚠", format, args...)
}

func LogError(format string, args ...any) {
	write(utils.RED, "✗", format, args...)
}

func LogConfig(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%s[CONFIG]%s %s\n", utils.MAGENTA, utils.NC, fmt.Sprintf(format, args...))
}

func LogMetrics(format string, args ...any) {
	write(utils.CYAN, "METRICS", format, args...)
}
