package app

import "log"

// PruneHistory applies the retention limits to repo. Returns number pruned.
// Errors are logged, never returned: retention is best effort.
func PruneHistory(repo HistoryRepository, maxCount, maxAgeDays int, logger *log.Logger) int {
	if repo == nil || (maxCount <= 0 && maxAgeDays <= 0) {
		return 0
	}
	n, err := repo.PruneAnalyses(maxCount, maxAgeDays)
	if err != nil {
		if logger != nil {
			logger.Printf("History: prune failed: %v", err)
		}
		return 0
	}
	if n > 0 && logger != nil {
		logger.Printf("History: pruned %d analyses (keep %d, max age %d days)", n, maxCount, maxAgeDays)
	}
	return n
}
