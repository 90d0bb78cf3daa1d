package dto

import "github.com/google/uuid"

type JobListResponse struct {
	JobID        uuid.UUID `json:"job_id"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location"`
	City         string    `json:"city,omitempty"`
	Province     string    `json:"province"`
	Sector       string    `json:"sector"`
	JobType      string    `json:"job_type"`
	SalaryMin    int       `json:"salary_min,omitempty"`
	SalaryMax    int       `json:"salary_max,omitempty"`
	Description  string    `json:"description,omitempty"`
	Requirements []string  `json:"requirements,omitempty"`
	URL          string    `json:"url"`
	Remote       bool      `json:"remote"`
	Rotational   bool      `json:"rotational"`
	PostedDate   string    `json:"posted_date,omitempty"`
	ScrapedDate  string    `json:"scraped_date"`
}
