package watch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/outpost-sim/depot/internal/registry"
)

// --- Message types ---

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type infosMsg []registry.Entry

type tickMsg time.Time

type errMsg error

// --- Commands ---

// fetchHealth queries the /healthz endpoint.
func fetchHealth(apiURL string) tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiURL + "/healthz")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}

// fetchInfos queries the /info endpoint for the watched user's entries.
func fetchInfos(apiURL, user, token string) tea.Msg {
	body, err := json.Marshal(map[string]string{"user": user, "token": token})
	if err != nil {
		return errMsg(err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(apiURL+"/info", "application/json", bytes.NewReader(body))
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Infos   []registry.Entry `json:"infos"`
		Status  bool             `json:"status"`
		Message string           `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errMsg(err)
	}
	if !envelope.Status {
		return errMsg(errString(envelope.Message))
	}
	return infosMsg(envelope.Infos)
}

type errString string

func (e errString) Error() string { return string(e) }
