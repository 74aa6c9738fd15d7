package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

const maxLabelWidth = 72

func colorize(s string, color string, enabled bool) string {
	if !enabled || color == "" {
		return s
	}
	return color + s + colorReset
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(interface{ Stat() (os.FileInfo, error) })
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// RenderLines prints a plain line for every row that moved since the last
// tick. It is meant for logs and pipes. The returned func stops rendering
// and prints the final state of any row not yet reported.
func RenderLines(ctx context.Context, w io.Writer, board *Board, interval time.Duration) func() {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	done := make(chan struct{})
	last := make(map[int]Row)
	var mu sync.Mutex

	renderOnce := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, row := range board.Snapshot().Rows {
			prev, seen := last[row.ID]
			if seen && prev.BytesDone == row.BytesDone && prev.Status == row.Status {
				continue
			}
			last[row.ID] = row
			fmt.Fprintln(w, formatRowLine(row))
		}
	}

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				renderOnce()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			renderOnce()
		})
	}
}

func formatRowLine(r Row) string {
	return fmt.Sprintf("%s status=%s %.1f%% (%s/%s) %s ETA %s",
		r.Label,
		r.Status,
		r.Percent,
		FormatBytes(r.BytesDone),
		FormatBytes(r.Total),
		formatRate(r.RateBps),
		formatETA(secondsToDuration(r.ETASeconds)),
	)
}

// renderBoard draws the board as a table for terminals.
func renderBoard(snap Snapshot, color bool) string {
	var b strings.Builder
	totalPct := 0.0
	if snap.Total > 0 {
		totalPct = float64(snap.BytesDone) / float64(snap.Total) * 100
	}
	header := fmt.Sprintf("%s %5.1f%%  %s/%s  %d active of %d",
		renderBar(totalPct, 20),
		totalPct,
		FormatBytes(snap.BytesDone),
		FormatBytes(snap.Total),
		snap.Active,
		len(snap.Rows),
	)
	fmt.Fprintln(&b, colorize(header, colorCyan, color))

	labelWidth := len("job")
	for _, r := range snap.Rows {
		if n := len(r.Label); n > labelWidth {
			labelWidth = n
		}
	}
	if labelWidth > maxLabelWidth {
		labelWidth = maxLabelWidth
	}

	headers := []string{"#", "job", "status", "%", "copied", "rate", "ETA"}
	widths := []int{3, labelWidth, 7, 5, 19, 10, 8}
	rows := make([][]string, 0, len(snap.Rows))
	colors := make([]string, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.ID),
			truncateLeft(r.Label, labelWidth),
			r.Status,
			fmt.Sprintf("%.1f", r.Percent),
			FormatBytes(r.BytesDone) + "/" + FormatBytes(r.Total),
			formatRate(r.RateBps),
			formatETA(secondsToDuration(r.ETASeconds)),
		})
		colors = append(colors, statusColor(r.Status))
	}
	renderTable(&b, headers, rows, widths, colors, color)
	return strings.TrimSuffix(b.String(), "\n")
}

func statusColor(status string) string {
	switch status {
	case StatusDone:
		return colorGreen
	case StatusStopped:
		return colorRed
	default:
		return ""
	}
}

func renderBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int((percent / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func renderTable(w io.Writer, headers []string, rows [][]string, widths []int, colors []string, color bool) {
	border := buildBorder(widths)
	fmt.Fprintln(w, border)
	fmt.Fprintln(w, buildRow(headers, widths))
	fmt.Fprintln(w, border)
	for i, row := range rows {
		c := ""
		if i < len(colors) {
			c = colors[i]
		}
		fmt.Fprintln(w, colorize(buildRow(row, widths), c, color))
	}
	fmt.Fprintln(w, border)
}

func buildBorder(widths []int) string {
	var b strings.Builder
	b.WriteString("+")
	for _, width := range widths {
		b.WriteString(strings.Repeat("-", width+2))
		b.WriteString("+")
	}
	return b.String()
}

func buildRow(values []string, widths []int) string {
	var b strings.Builder
	b.WriteString("|")
	for i, width := range widths {
		cell := ""
		if i < len(values) {
			cell = values[i]
		}
		b.WriteString(" ")
		b.WriteString(padRight(cell, width))
		b.WriteString(" |")
	}
	return b.String()
}

func padRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// truncateLeft keeps the tail of s, where the distinguishing path parts are.
func truncateLeft(s string, width int) string {
	if len(s) <= width || width <= 3 {
		return s
	}
	return "..." + s[len(s)-(width-3):]
}

func formatRate(bps float64) string {
	const (
		k = 1024
		m = 1024 * k
		g = 1024 * m
	)
	if bps >= g {
		return fmt.Sprintf("%.2f GB/s", bps/float64(g))
	}
	if bps >= m {
		return fmt.Sprintf("%.1f MB/s", bps/float64(m))
	}
	if bps >= k {
		return fmt.Sprintf("%.0f KB/s", bps/float64(k))
	}
	return fmt.Sprintf("%.0f B/s", bps)
}

// FormatBytes renders n with a binary unit, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		if n < 0 {
			n = 0
		}
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for q := n / unit; q >= unit; q /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatETA(d time.Duration) string {
	if d <= 0 {
		return "--:--:--"
	}
	secs := int(d.Seconds())
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
