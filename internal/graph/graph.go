// Package graph renders entity history as fixed-width block charts for
// the terminal. Two variants share one resampling core: Render draws
// the full chart with per-row axis labels, time markers and caption
// lines, sized for the shell; RenderCompact draws only the body rows
// with max/min labels, sized for dashboard cards.
//
// Output depends only on the points and options passed in, so one
// input always renders the same bytes.
package graph

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/timeexpr"
)

// Placeholders returned instead of a chart when there is nothing to
// draw.
const (
	NoData        = "(no data)"
	NoNumericData = "(no numeric data)"
)

// Options control the size and annotation of a rendered chart.
type Options struct {
	Width     int
	Height    int
	Markers   int
	Attribute string
}

// normalize clamps sizes to the smallest renderable chart.
func (o Options) normalize() Options {
	if o.Width < 2 {
		o.Width = 2
	}
	if o.Height < 1 {
		o.Height = 1
	}
	if o.Markers < 2 {
		o.Markers = 2
	}
	return o
}

// series holds one resampled time series ready to draw. rows carries
// the scaled row index per output column; times carries the source
// timestamp of each column's left sample.
type series struct {
	flat   bool
	mn, mx float64
	span   float64
	rows   []int
	times  []time.Time
}

// filled reports whether the cell at column i, row y is drawn. A flat
// series draws a single mid-height line rather than a solid block.
func (s *series) filled(i, y int) bool {
	if s.flat {
		return s.rows[i] == y
	}
	return s.rows[i] >= y
}

// extract pulls numeric samples out of the history. Points that do not
// coerce to a number are skipped.
func extract(points []entity.HistoryPoint, attribute string) ([]float64, []time.Time) {
	values := make([]float64, 0, len(points))
	times := make([]time.Time, 0, len(points))
	for _, p := range points {
		v, ok := p.Numeric(attribute)
		if !ok {
			continue
		}
		values = append(values, v)
		times = append(times, p.Timestamp())
	}
	return values, times
}

// resample interpolates n samples onto width output columns. Column 0
// lands exactly on the first sample and column width-1 on the last.
func resample(values []float64, times []time.Time, width int) ([]float64, []time.Time) {
	n := len(values)
	out := make([]float64, width)
	outTimes := make([]time.Time, width)
	for i := 0; i < width; i++ {
		pos := float64(i) * float64(n-1) / float64(width-1)
		left := int(pos)
		right := left + 1
		if right > n-1 {
			right = n - 1
		}
		frac := pos - float64(left)
		out[i] = values[left]*(1-frac) + values[right]*frac
		outTimes[i] = times[left]
	}
	return out, outTimes
}

// build prepares the series, or returns the placeholder text when the
// points cannot be charted. A single numeric point is duplicated so
// interpolation has two samples.
func build(points []entity.HistoryPoint, attribute string, width, height int) (*series, string) {
	if len(points) == 0 {
		return nil, NoData
	}
	values, times := extract(points, attribute)
	if len(values) == 0 {
		return nil, NoNumericData
	}
	if len(values) == 1 {
		values = append(values, values[0])
		times = append(times, times[0])
	}
	resampled, colTimes := resample(values, times, width)

	mn, mx := resampled[0], resampled[0]
	for _, v := range resampled[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	span := mx - mn
	flat := span == 0
	if flat {
		span = 1
	}

	rows := make([]int, width)
	mid := (height - 1) / 2
	for i, v := range resampled {
		if flat {
			rows[i] = mid
		} else {
			rows[i] = int(math.Round((v - mn) / span * float64(height-1)))
		}
	}
	return &series{flat: flat, mn: mn, mx: mx, span: span, rows: rows, times: colTimes}, ""
}

// Render draws the detailed chart: per-row axis labels, a bottom axis,
// marker glyphs under evenly spaced columns and caption lines giving
// the begin time, end time and the rounded delta between markers.
func Render(points []entity.HistoryPoint, opts Options) string {
	opts = opts.normalize()
	s, placeholder := build(points, opts.Attribute, opts.Width, opts.Height)
	if s == nil {
		return placeholder
	}

	labelWidth := len(fmt.Sprintf("%.2f", s.mx))
	if w := len(fmt.Sprintf("%.2f", s.mn)); w > labelWidth {
		labelWidth = w
	}
	labelWidth += 2

	var b strings.Builder
	for y := opts.Height - 1; y >= 0; y-- {
		val := s.mn
		if opts.Height > 1 {
			val = s.mn + s.span*float64(y)/float64(opts.Height-1)
		}
		fmt.Fprintf(&b, "%*.2f │", labelWidth, val)
		writeCells(&b, s, y, opts.Width)
		b.WriteByte('\n')
	}

	b.WriteString(strings.Repeat(" ", labelWidth))
	b.WriteString(" └")
	b.WriteString(strings.Repeat("─", opts.Width))
	b.WriteByte('\n')

	stride := opts.Width / (opts.Markers - 1)
	if stride < 1 {
		stride = 1
	}
	positions := make([]int, 0, opts.Markers)
	for pos := 0; pos < opts.Width && len(positions) < opts.Markers; pos += stride {
		positions = append(positions, pos)
	}
	cells := make([]byte, opts.Width)
	for i := range cells {
		cells[i] = ' '
	}
	for _, pos := range positions {
		cells[pos] = '#'
	}
	b.WriteString(strings.Repeat(" ", labelWidth+2))
	b.Write(cells)
	b.WriteByte('\n')

	var stamps []time.Time
	for _, pos := range positions {
		if t := s.times[pos]; !t.IsZero() {
			stamps = append(stamps, t)
		}
	}
	var delta time.Duration
	if len(stamps) > 1 {
		delta = timeexpr.RoundNice(stamps[1].Sub(stamps[0]))
	}
	begin, end := "", ""
	if len(stamps) > 0 {
		begin = stamps[0].Format("2006-01-02 15:04")
		end = stamps[len(stamps)-1].Format("2006-01-02 15:04")
	}
	b.WriteString("begin time: " + begin + "\n")
	b.WriteString("end time:   " + end + "\n")
	b.WriteString("# delta:     " + timeexpr.FormatHuman(delta))
	return b.String()
}

// RenderCompact draws only the body rows, labeling the top row with the
// maximum and the bottom row with the minimum.
func RenderCompact(points []entity.HistoryPoint, opts Options) string {
	opts = opts.normalize()
	s, placeholder := build(points, opts.Attribute, opts.Width, opts.Height)
	if s == nil {
		return placeholder
	}

	var b strings.Builder
	for y := opts.Height - 1; y >= 0; y-- {
		switch {
		case y == opts.Height-1:
			fmt.Fprintf(&b, "%6.1f ┐", s.mx)
		case y == 0:
			fmt.Fprintf(&b, "%6.1f ┘", s.mn)
		default:
			b.WriteString("       │")
		}
		writeCells(&b, s, y, opts.Width)
		if y > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func writeCells(b *strings.Builder, s *series, y, width int) {
	for i := 0; i < width; i++ {
		if s.filled(i, y) {
			b.WriteRune('█')
		} else {
			b.WriteByte(' ')
		}
	}
}
