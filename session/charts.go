package session

import (
	"cmp"
	"slices"

	"github.com/ahmedtd/curvefit/chart"
	"github.com/ahmedtd/curvefit/points"
)

// DataChart shows the samples as a scatter and the predictions as a line
// through them.  dataX and dataY carry optional axis limits.
func (s *Session) DataChart(dataX, dataY chart.Axis) *chart.Chart {
	// Predictions are kept in sample order; the line needs them ordered by x.
	line := slices.Clone(s.PredictionPoints)
	slices.SortFunc(line, func(a, b points.Point) int {
		return cmp.Compare(a.X, b.X)
	})

	if dataX.Label == "" {
		dataX.Label = "x"
	}
	if dataY.Label == "" {
		dataY.Label = "y"
	}

	return &chart.Chart{
		Title: "Training data",
		XAxis: dataX,
		YAxis: dataY,
		Series: []chart.Series{
			{Name: "data", Kind: chart.Scatter, Points: s.DataPoints, Color: chart.DataColor},
			{Name: "prediction", Kind: chart.Line, Points: line, Color: chart.PredictionColor},
		},
	}
}

func (s *Session) LossChart() *chart.Chart {
	return &chart.Chart{
		Title: "Loss",
		XAxis: chart.Axis{Label: "epoch"},
		YAxis: chart.Axis{Label: "MSE"},
		Series: []chart.Series{
			{Name: "loss", Kind: chart.Line, Points: s.LossPoints, Color: chart.CurveColor},
		},
	}
}

func (s *Session) CostChart() *chart.Chart {
	return &chart.Chart{
		Title: "Cost per training run",
		XAxis: chart.Axis{Label: "iteration"},
		YAxis: chart.Axis{Label: "mean loss"},
		Series: []chart.Series{
			{Name: "cost", Kind: chart.Line, Points: s.CostPoints, Color: chart.CurveColor},
		},
	}
}
