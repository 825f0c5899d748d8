package report

import (
	"io"
	"strconv"

	"pyimports/internal/core/ports"
	"pyimports/internal/engine/graph"
)

var graphHeader = []string{"kind", "node", "layer", "coreness", "in_layer", "out_layer", "katz"}

// WriteGraph writes the full report as JSON, or one row per node in the
// directed onion order for tabular formats.
func WriteGraph(w io.Writer, report ports.GraphReport, format string) error {
	if format == FormatJSON {
		return WriteJSON(w, report)
	}
	cw, err := tableWriter(w, format)
	if err != nil {
		return err
	}

	inward := layerIndex(report.Inward)
	outward := layerIndex(report.Outward)
	katz := make(map[graph.Node]float64, len(report.Katz))
	for _, c := range report.Katz {
		katz[c.Node] = c.Score
	}

	if err := cw.Write(graphHeader); err != nil {
		return err
	}
	for _, l := range report.Onion {
		score := ""
		if s, ok := katz[l.Node]; ok {
			score = strconv.FormatFloat(s, 'g', 6, 64)
		}
		row := []string{
			string(l.Node.Kind),
			l.Node.Name,
			strconv.Itoa(l.Layer),
			strconv.Itoa(l.Coreness),
			strconv.Itoa(inward[l.Node]),
			strconv.Itoa(outward[l.Node]),
			score,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func layerIndex(layers []graph.Layer) map[graph.Node]int {
	out := make(map[graph.Node]int, len(layers))
	for _, l := range layers {
		out[l.Node] = l.Layer
	}
	return out
}
