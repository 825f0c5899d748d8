package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"pyimports/internal/data/history"
)

func RenderTrendTSV(report history.TrendReport) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("RunID\tStartedAt\tEvents\tPackages\tUnknown\tDeltaEvents\tDeltaPackages\tDeltaUnknown\n")
	for _, point := range report.Points {
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			point.RunID,
			point.StartedAt.UTC().Format(time.RFC3339),
			point.EventCount,
			point.PackageCount,
			point.UnknownCount,
			point.DeltaEvents,
			point.DeltaPackages,
			point.DeltaUnknown,
		))
	}

	return []byte(buf.String()), nil
}

// WriteTrend writes report as JSON, or as TSV for either tabular format.
func WriteTrend(w io.Writer, report history.TrendReport, format string) error {
	if format == FormatJSON {
		return WriteJSON(w, report)
	}
	out, err := RenderTrendTSV(report)
	if err != nil {
		return err
	}
	if format == FormatCSV {
		out = []byte(strings.ReplaceAll(string(out), "\t", ","))
	}
	_, err = w.Write(out)
	return err
}
