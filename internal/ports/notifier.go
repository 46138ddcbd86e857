package ports

import "github.com/dmarzal/predictlab/internal/domain"

// Notifier presents run results to the user. The console
// implementation prints formatted tables.
type Notifier interface {
	PrintRun(result domain.RunResult)
	PrintRuns(runs []domain.RunSummary)
}
