package chart

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ahmedtd/curvefit/points"
)

func sampleChart() *Chart {
	return &Chart{
		Title: "Training data",
		XAxis: Limits("x", -150, 150),
		YAxis: Axis{Label: "y"},
		Series: []Series{
			{Name: "data", Kind: Scatter, Points: []points.Point{{X: -1, Y: -1.1}, {X: 0.5, Y: 0.4}, {X: 2, Y: 2.2}}, Color: DataColor},
			{Name: "prediction", Kind: Line, Points: []points.Point{{X: -1, Y: -1}, {X: 2, Y: 2}}, Color: PredictionColor},
			{Name: "empty", Kind: Line},
		},
	}
}

func TestPlotAppliesAxisLimits(t *testing.T) {
	p, err := sampleChart().Plot()
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	if p.X.Min != -150 || p.X.Max != 150 {
		t.Errorf("x range = [%v, %v], want [-150, 150]", p.X.Min, p.X.Max)
	}
	if p.Y.Min > -1.1 || p.Y.Max < 2.2 {
		t.Errorf("y range = [%v, %v] does not cover the data", p.Y.Min, p.Y.Max)
	}
}

func TestPlotRejectsUnknownKind(t *testing.T) {
	c := &Chart{Series: []Series{{Name: "bars", Kind: "bar", Points: []points.Point{{X: 1, Y: 1}}}}}
	if _, err := c.Plot(); err == nil {
		t.Fatalf("Plot accepted an unknown series kind")
	}
}

func TestRender(t *testing.T) {
	testCases := []struct {
		format string
		marker []byte
	}{
		{"png", []byte("\x89PNG")},
		{"svg", []byte("<svg")},
	}
	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if err := Render(buf, sampleChart(), tc.format, 4, 3); err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !bytes.Contains(buf.Bytes(), tc.marker) {
				t.Errorf("%s output does not contain %q", tc.format, tc.marker)
			}
		})
	}
}

func TestRenderChartWithoutPoints(t *testing.T) {
	c := &Chart{Title: "Cost", Series: []Series{{Name: "cost", Kind: Line}}}
	if err := Render(&bytes.Buffer{}, c, "png", 4, 3); err != nil {
		t.Fatalf("Render of an empty chart: %v", err)
	}
}

func TestSaveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := Save(path, sampleChart()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := &Chart{}
	if err := json.Unmarshal(raw, got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := sampleChart()
	for i := range want.Series {
		want.Series[i].Color = got.Series[i].Color
	}
	if diff := cmp.Diff(got.Series[:2], want.Series[:2]); diff != "" {
		t.Errorf("Wrong series; diff (-got +want)\n%s", diff)
	}
	if !strings.Contains(string(raw), `"min": -150`) {
		t.Errorf("axis limits missing from JSON:\n%s", raw)
	}
}

func TestSaveLeavesNoFileOnFailure(t *testing.T) {
	dir := t.TempDir()

	bad := sampleChart()
	bad.Series = append(bad.Series, Series{Name: "bars", Kind: "bar", Points: []points.Point{{X: 1, Y: 1}}})

	tests := []struct {
		name  string
		path  string
		chart *Chart
	}{
		{"unknown series kind", filepath.Join(dir, "bad.png"), bad},
		{"unknown format", filepath.Join(dir, "data.gif"), sampleChart()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := Save(tc.path, tc.chart); err == nil {
				t.Fatalf("Save(%s) succeeded, want error", tc.path)
			}
			if _, err := os.Stat(tc.path); !os.IsNotExist(err) {
				t.Errorf("Save left %s behind (stat err %v)", tc.path, err)
			}
		})
	}
}
