package notify

import (
	"sort"

	"rivalwatch/internal/monitoring"
)

func sortedCompetitors(result *monitoring.MonitoringResult) []string {
	names := make([]string, 0, len(result.ChangesDetected))
	for name := range result.ChangesDetected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
