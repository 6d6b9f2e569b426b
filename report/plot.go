package report

import (
	"fmt"
	"image/color"

	"github.com/YuminosukeSato/coelurus/features"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// histogramBins is the bin count of the sampled-position histogram.
const histogramBins = 50

// PlotProfile draws the sampled fraction positions of one profile as a
// normalised histogram with the selected mixture density on top, and saves
// it to path. The image format follows the file extension.
func PlotProfile(path, id string, fit *features.ProfileFit) error {
	if fit == nil || len(fit.Samples) == 0 {
		return errors.NewValueError("PlotProfile", "profile "+id+" has no samples")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (k=%d)", id, fit.K())
	p.X.Label.Text = "fraction"
	p.Y.Label.Text = "density"

	h, err := plotter.NewHist(plotter.Values(fit.Samples), histogramBins)
	if err != nil {
		return errors.Wrap(err, "histogram")
	}
	h.Normalize(1)
	h.FillColor = color.RGBA{R: 180, G: 180, B: 220, A: 255}
	p.Add(h)

	components := make([]distuv.Normal, fit.K())
	for i := range components {
		components[i] = distuv.Normal{Mu: fit.Means[i], Sigma: fit.SDs[i]}
	}
	density := plotter.NewFunction(func(x float64) float64 {
		sum := 0.0
		for i, c := range components {
			sum += fit.Weights[i] * c.Prob(x)
		}
		return sum
	})
	density.Color = color.RGBA{R: 200, A: 255}
	density.Width = vg.Points(2)
	density.Samples = 200
	p.Add(density)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
