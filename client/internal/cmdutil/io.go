package cmdutil

import (
	"fmt"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"os"
	"time"
)

var (
	loadingSpinner = spinner.New(spinner.CharSets[0], time.Millisecond*100)
)

func PrintE(message string) {
	println()
	color.Red(message)
}

func Print(message string) {
	_, _ = fmt.Fprintln(os.Stdout, message)
}

func PrintS(message string) {
	println()
	color.Green(message)
}

func StartLoading(message string) {
	loadingSpinner.Prefix = message
	loadingSpinner.Start()
}

func StopLoading() {
	loadingSpinner.Stop()
}

// HumanSize formats a byte count with a binary unit suffix.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
