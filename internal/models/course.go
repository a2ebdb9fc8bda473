package models

import "time"

type Course struct {
	ID            int       `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	LogoObjectKey string    `json:"-"`
	TotalSections int       `json:"totalSections"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CoursePreview is a catalog entry as served to the browser.
type CoursePreview struct {
	ID            int    `json:"id"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	LogoURL       string `json:"logoUrl,omitempty"`
	TotalSections int    `json:"totalSections"`
}
