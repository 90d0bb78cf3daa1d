package dto

import "resource-jobs/internal/domain/job"

type ScrapeStatusResponse struct {
	ActiveBySource map[string]int  `json:"active_by_source"`
	TotalActive    int             `json:"total_active"`
	RecentRuns     []job.ScrapeRun `json:"recent_runs"`
	RetentionDays  int             `json:"retention_days"`
}
