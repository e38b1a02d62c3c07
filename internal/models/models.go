package models

import (
	"encoding/json"
	"time"
)

type Technician struct {
	ID               string    `json:"id"`
	Name             string    `json:"name" validate:"required"`
	Address          string    `json:"address"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	Coordinator      string    `json:"coordinator"`
	CoordinatorEmail string    `json:"coordinator_email" validate:"omitempty,email"`
	Lat              *float64  `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon              *float64  `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TechnicianFilter narrows the directory before a search or batch run.
// Empty fields match everything.
type TechnicianFilter struct {
	State       string `json:"state" form:"state"`
	City        string `json:"city" form:"city"`
	Coordinator string `json:"coordinator" form:"coordinator"`
}

type FilterOptions struct {
	States       []string `json:"states"`
	Cities       []string `json:"cities"`
	Coordinators []string `json:"coordinators"`
}

type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TechnicianStats summarizes the directory. Blank states and coordinators
// are left out of the distinct counts and breakdowns.
type TechnicianStats struct {
	Total         int     `json:"total"`
	Coordinators  int     `json:"coordinators"`
	States        int     `json:"states"`
	ByState       []Count `json:"by_state"`
	ByCoordinator []Count `json:"by_coordinator"`
}

// ServiceRequest is one service call of a batch. Fields are passed through
// to the allocation result untouched.
type ServiceRequest struct {
	Address string         `json:"address"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at"`
	Status     string          `json:"status"`
	Params     json.RawMessage `json:"params,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	Results    json.RawMessage `json:"results,omitempty"`
	Workload   json.RawMessage `json:"workload,omitempty"`
}
