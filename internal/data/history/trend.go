package history

import "sort"

// BuildTrendReport orders runs oldest first and records how each run's
// counts moved relative to the previous one.
func BuildTrendReport(projectKey string, runs []RunSummary) TrendReport {
	ordered := make([]RunSummary, len(runs))
	copy(ordered, runs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})

	report := TrendReport{ProjectKey: projectKey, RunCount: len(ordered), Points: make([]TrendPoint, 0, len(ordered))}
	for i, r := range ordered {
		p := TrendPoint{
			RunID:        r.ID,
			StartedAt:    r.StartedAt,
			EventCount:   r.EventCount,
			PackageCount: r.PackageCount,
			UnknownCount: r.UnknownCount,
		}
		if i > 0 {
			prev := ordered[i-1]
			p.DeltaEvents = r.EventCount - prev.EventCount
			p.DeltaPackages = r.PackageCount - prev.PackageCount
			p.DeltaUnknown = r.UnknownCount - prev.UnknownCount
		}
		report.Points = append(report.Points, p)
	}
	return report
}
