package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/klauver/snatch/internal/progress"
)

// ProgressBar renders a bar of the given width for current/total bytes.
func ProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return debugStyle.Render(fmt.Sprintf("%s %.1f%%", bar, percent*100))
}

// RenderSnapshot formats one progress snapshot as a single status line.
func RenderSnapshot(s progress.Snapshot) string {
	downloaded := humanize.IBytes(uint64(s.StartOffset + s.BytesDownloaded))
	speed := humanize.IBytes(uint64(s.BytesPerSecond)) + "/s"
	if s.TotalBytes > 0 {
		line := fmt.Sprintf("%s %s / %s %s %s",
			ProgressBar(s.StartOffset+s.BytesDownloaded, s.TotalBytes, barWidth()),
			downloaded, humanize.IBytes(uint64(s.TotalBytes)), StyleSymbols["bullet"], speed)
		if s.HasETA {
			line += fmt.Sprintf(" %s ETA %s", StyleSymbols["bullet"], FormatETA(s.ETA))
		}
		return line
	}
	return fmt.Sprintf("%s %s %s %s", StyleSymbols["arrow"], downloaded, StyleSymbols["bullet"], speed)
}

// FormatETA renders a duration in compact h/m/s form.
func FormatETA(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func barWidth() int {
	width := getTerminalWidth()
	// Leave room for the byte counts, speed, and ETA columns.
	w := width - 50
	if w < 10 {
		return 10
	}
	if w > 40 {
		return 40
	}
	return w
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // Default fallback width
	}
	return width
}
