package api

import (
	"encoding/json"
	"fmt"

	"github.com/outpost-sim/depot/internal/registry"
	"github.com/outpost-sim/depot/internal/table"
)

// Request bodies carry the user and token, matching the original wire
// contract of the service this replaces.

type listPathsRequest struct {
	User    string `json:"user"`
	Token   string `json:"token"`
	Pattern string `json:"pattern"`
}

type infoRequest struct {
	User    string          `json:"user"`
	Token   string          `json:"token"`
	Paths   json.RawMessage `json:"paths"`
	Pattern string          `json:"pattern"`
}

// pathList accepts a single string or a list of strings for the paths field.
func (r *infoRequest) pathList() ([]string, error) {
	if len(r.Paths) == 0 || string(r.Paths) == "null" {
		return nil, nil
	}
	var one string
	if err := json.Unmarshal(r.Paths, &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(r.Paths, &many); err == nil {
		return many, nil
	}
	return nil, fmt.Errorf("paths must be a string or a list of strings")
}

type fetchRequest struct {
	User  string `json:"user"`
	Token string `json:"token"`
	Path  string `json:"path"`
	URL   bool   `json:"url"`
}

type deleteRequest struct {
	User  string `json:"user"`
	Token string `json:"token"`
	Path  string `json:"path"`
}

type registerRequest struct {
	User    string            `json:"user"`
	Token   string            `json:"token"`
	Path    string            `json:"path"`
	File    string            `json:"file"`
	Holding *registry.Holding `json:"holding"`
	JobID   string            `json:"jobid"`
}

type gcRequest struct {
	User  string `json:"user"`
	Token string `json:"token"`
}

type tableRequest struct {
	User       string            `json:"user"`
	Token      string            `json:"token"`
	Table      string            `json:"table"`
	Path       string            `json:"path"`
	Conditions []table.Condition `json:"conditions"`
	Orient     string            `json:"orient"`
}

// Response envelopes: the payload key, a boolean status, and a human
// message. Expected failures are HTTP 200 with status=false.

type listPathsResponse struct {
	Paths   []string `json:"paths"`
	Status  bool     `json:"status"`
	Message string   `json:"message"`
}

type infoResponse struct {
	Infos   []registry.Entry `json:"infos"`
	Status  bool             `json:"status"`
	Message string           `json:"message"`
}

type fetchResponse struct {
	File    string `json:"file"`
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type registerResponse struct {
	Pending string `json:"pending"`
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type tableResponse struct {
	Table   any    `json:"table"`
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ErrorResponse is returned for transport-level failures (bad JSON, auth).
type ErrorResponse struct {
	Error string `json:"error"`
}
