package utils

import "os"

// ANSI escape codes used by the logging helpers. They are blanked when
// NO_COLOR is set (https://no-color.org).
var (
	RED     = "\033[0;31m"
	GREEN   = "\033[0;32m"
	YELLOW  = "\033[1;33m"
	BLUE    = "\033[0;34m"
	MAGENTA = "\033[0;35m"
	CYAN    = "\033[0;36m"
	BOLD    = "\033[1m"
	NC      = "\033[0m"
)

func init() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		DisableColors()
	}
}

func DisableColors() {
	RED, GREEN, YELLOW, BLUE, MAGENTA, CYAN, BOLD, NC = "", "", "", "", "", "", "", ""
}
