package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	barWidth = 40

	// unknownTotalStep is how many bytes pass between redraws when the
	// artifact size is unknown (stdin uploads).
	unknownTotalStep = 64 << 10
)

// ProgressBar draws upload progress on a single terminal line. Redraws
// happen only when the whole percentage changes so large uploads do not
// flood stderr.
type ProgressBar struct {
	mu      sync.Mutex
	w       io.Writer
	title   string
	total   int64
	current int64
	drawn   int64 // percent, or byte mark for unknown totals, of the last redraw
	started time.Time
	now     func() time.Time
}

// NewProgressBar creates a progress bar writing to w.
func NewProgressBar(w io.Writer, title string) *ProgressBar {
	return &ProgressBar{w: w, title: title, drawn: -1, started: time.Now(), now: time.Now}
}

// SetTotal sets the expected number of bytes, 0 when unknown.
func (p *ProgressBar) SetTotal(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Reader wraps r so every read advances the bar.
func (p *ProgressBar) Reader(r io.Reader) io.Reader {
	return &progressReader{r: r, bar: p}
}

func (p *ProgressBar) add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += n

	mark := p.current / unknownTotalStep
	if p.total > 0 {
		mark = min(p.current*100/p.total, 100)
	}
	if mark != p.drawn {
		p.drawn = mark
		p.render()
	}
}

// Finish draws the final state with the average rate and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total > 0 {
		p.current = p.total
	}
	p.render()

	elapsed := p.now().Sub(p.started).Seconds()
	if elapsed > 0 {
		fmt.Fprintf(p.w, " %s/s", formatBytes(int64(float64(p.current)/elapsed)))
	}
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %s", p.title, formatBytes(p.current))
		return
	}

	ratio := min(float64(p.current)/float64(p.total), 1)
	filled := int(barWidth * ratio)
	fmt.Fprintf(p.w, "\r%s [%s%s] %3.0f%% (%s/%s)",
		p.title,
		strings.Repeat("#", filled), strings.Repeat("-", barWidth-filled),
		ratio*100,
		formatBytes(p.current), formatBytes(p.total))
}

type progressReader struct {
	r   io.Reader
	bar *ProgressBar
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.bar.add(int64(n))
	}
	return n, err
}

// formatBytes formats a byte count with binary units.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
