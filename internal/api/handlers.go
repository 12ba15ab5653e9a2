package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/nerrad567/shadow-agent/internal/journal"
)

// healthCheckTimeout bounds each component check run by /health.
const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Thing      string            `json:"thing"`
	Connected  bool              `json:"connected"`
	Synced     bool              `json:"synced"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth answers 200 when every component check passes, 503 otherwise.
// An unsynced shadow is reported but does not fail the check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Snapshot()
	resp := healthResponse{
		Status:    "ok",
		Version:   s.version,
		Thing:     s.thing,
		Connected: snap.Connected,
		Synced:    snap.State.Synced(),
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		resp.Components = make(map[string]string, len(names))
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

type sensorResponse struct {
	Raw     int    `json:"raw"`
	Percent int    `json:"percent"`
	Range   string `json:"range"`
}

type shadowResponse struct {
	Thing             string         `json:"thing"`
	Version           uint64         `json:"version"`
	Synced            bool           `json:"synced"`
	Connected         bool           `json:"connected"`
	Sensor            sensorResponse `json:"sensor"`
	Angle             int            `json:"angle"`
	Emotion           string         `json:"emotion"`
	LastReportedRange string         `json:"last_reported_range"`
	LastTelemetryAt   *time.Time     `json:"last_telemetry_at,omitempty"`
	LastGetRequestAt  *time.Time     `json:"last_get_request_at,omitempty"`
	ReportPending     bool           `json:"report_pending"`
	Queued            int            `json:"queued"`
	Dropped           uint64         `json:"dropped"`
	UpdatedAt         *time.Time     `json:"updated_at,omitempty"`
}

func (s *Server) handleShadow(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Snapshot()
	st := snap.State

	writeJSON(w, http.StatusOK, shadowResponse{
		Thing:     s.thing,
		Version:   uint64(st.KnownVersion),
		Synced:    st.Synced(),
		Connected: snap.Connected,
		Sensor: sensorResponse{
			Raw:     snap.Sensor.Raw,
			Percent: snap.Sensor.Percent,
			Range:   snap.Sensor.Range.String(),
		},
		Angle:             st.Angle,
		Emotion:           snap.Emotion.String(),
		LastReportedRange: st.LastReportedRange.String(),
		LastTelemetryAt:   timeOrNil(st.LastTelemetryAt),
		LastGetRequestAt:  timeOrNil(st.LastGetRequestAt),
		ReportPending:     st.ReportPendingFromCallback,
		Queued:            snap.Queued,
		Dropped:           snap.Dropped,
		UpdatedAt:         timeOrNil(snap.UpdatedAt),
	})
}

type journalResponse struct {
	Entries []journal.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// handleJournal lists recent journal rows.
// Query: limit (1..200), direction (inbound|outbound), kind.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal is not enabled")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Direction: q.Get("direction"),
		Kind:      q.Get("kind"),
	}
	if filter.Direction != "" &&
		filter.Direction != journal.DirectionInbound &&
		filter.Direction != journal.DirectionOutbound {
		writeBadRequest(w, "direction must be inbound or outbound")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing journal failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeInternalError(w, "failed to list journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, journalResponse{Entries: entries, Count: len(entries)})
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
