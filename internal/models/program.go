package models

import "time"

type Program struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organizationId"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Category       string     `json:"category,omitempty"`
	Status         string     `json:"status,omitempty"`
	Image          string     `json:"image,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type News struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organizationId"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Date           time.Time `json:"date"`
}

type OrgHead struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organizationId"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Photo          string `json:"photo,omitempty"`
	Rank           int    `json:"rank"`
}
