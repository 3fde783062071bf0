// Package chart renders the word frequency boxplot and the story structure flowchart.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/theimaginaryfoundation/gpt-stories/stories"
)

var (
	annotationColor = color.RGBA{R: 220, A: 255}
	boxFill         = color.RGBA{R: 173, G: 216, B: 230, A: 255}
)

type BoxplotOptions struct {
	// N is the number of words requested; it only feeds the title.
	N      int
	Title  string
	Width  vg.Length
	Height vg.Length
}

func DefaultBoxplotOptions(n int) BoxplotOptions {
	return BoxplotOptions{N: n, Width: 14 * vg.Inch, Height: 6 * vg.Inch}
}

// BoxplotTitle is the default chart title for n words.
func BoxplotTitle(n int) string {
	return fmt.Sprintf("Top %d Most Used Words - Frequency Distribution Across Countries", n)
}

// NewBoxplot draws one box per word, in the order given, and writes the country with the highest
// frequency above each box in red.
func NewBoxplot(words []stories.WordStat, opts BoxplotOptions) (*plot.Plot, error) {
	if len(words) == 0 {
		return nil, errors.New("boxplot: no words")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	if p.Title.Text == "" {
		p.Title.Text = BoxplotTitle(opts.N)
	}
	p.X.Label.Text = "Word"
	p.Y.Label.Text = "Frequency"
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter

	names := make([]string, len(words))
	labels := plotter.XYLabels{
		XYs:    make(plotter.XYs, len(words)),
		Labels: make([]string, len(words)),
	}
	ymax := 0.0
	for i, w := range words {
		names[i] = w.Word
		box, err := plotter.NewBoxPlot(vg.Points(24), float64(i), plotter.Values(w.Values))
		if err != nil {
			return nil, fmt.Errorf("boxplot %q: %w", w.Word, err)
		}
		box.FillColor = boxFill
		p.Add(box)

		labels.XYs[i] = plotter.XY{X: float64(i), Y: w.Max}
		labels.Labels[i] = w.MaxCountry
		ymax = math.Max(ymax, w.Max)
	}

	ann, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("boxplot labels: %w", err)
	}
	ann.Offset = vg.Point{Y: vg.Points(4)}
	for i := range ann.TextStyle {
		ann.TextStyle[i].Color = annotationColor
		ann.TextStyle[i].XAlign = text.XCenter
		ann.TextStyle[i].YAlign = text.YBottom
	}
	p.Add(ann)

	p.NominalX(names...)
	p.Y.Min = 0
	if ymax > 0 {
		// Head room for the country labels.
		p.Y.Max = ymax * 1.12
	}
	return p, nil
}

// SaveBoxplot renders the chart to path; the format follows the extension (.png, .svg, .pdf).
func SaveBoxplot(path string, words []stories.WordStat, opts BoxplotOptions) error {
	p, err := NewBoxplot(words, opts)
	if err != nil {
		return err
	}
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		d := DefaultBoxplotOptions(opts.N)
		w, h = d.Width, d.Height
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save boxplot %s: %w", path, err)
	}
	return nil
}
