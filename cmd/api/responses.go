package main

import (
	"encoding/json"
	"net/http"
	"time"

	"collabflow/auth"
	"collabflow/ledger"
	"collabflow/overdue"
	"collabflow/record"
	"collabflow/stats"
)

type createRecordRequest struct {
	CreatorHandle string `json:"creator_handle"`
	Campaign      string `json:"campaign"`
	Brand         string `json:"brand"`
}

type transitionRequest struct {
	ToStage  string `json:"to_stage"`
	Reason   string `json:"reason"`
	Remarks  string `json:"remarks"`
	Override bool   `json:"override"`
	// At is an optional RFC3339 timestamp; the server clock is used when
	// omitted.
	At string `json:"at"`
}

type completeRequest struct {
	Remarks string `json:"remarks"`
	At      string `json:"at"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type operatorResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	CreatedAt   string `json:"created_at"`
}

type loginResponse struct {
	Token    string           `json:"token"`
	Operator operatorResponse `json:"operator"`
}

type recordResponse struct {
	ID            int64  `json:"id"`
	CreatorHandle string `json:"creator_handle"`
	Campaign      string `json:"campaign"`
	Brand         string `json:"brand"`
	CreatedAt     string `json:"created_at"`
}

type entryResponse struct {
	ID           int64    `json:"id"`
	RecordID     int64    `json:"record_id"`
	Seq          int      `json:"seq"`
	FromStage    *string  `json:"from_stage"`
	ToStage      string   `json:"to_stage"`
	StageStart   string   `json:"stage_start"`
	StageEnd     *string  `json:"stage_end"`
	Deadline     string   `json:"deadline"`
	PlannedHours float64  `json:"planned_hours"`
	ActualHours  *float64 `json:"actual_hours"`
	ChangeReason string   `json:"change_reason"`
	Remarks      *string  `json:"remarks"`
	OperatorID   *string  `json:"operator_id"`
}

type overdueResponse struct {
	RecordID         int64    `json:"record_id"`
	CurrentStage     string   `json:"current_stage"`
	OverdueHours     float64  `json:"overdue_hours"`
	Level            string   `json:"level"`
	SuggestedActions []string `json:"suggested_actions"`
}

type statsResponse struct {
	TotalRecords       int     `json:"total_records"`
	OnTimeRecords      int     `json:"on_time_records"`
	OverdueRecords     int     `json:"overdue_records"`
	AvgCompletionHours float64 `json:"avg_completion_hours"`
}

type reportResponse struct {
	GeneratedAt    string            `json:"generated_at"`
	OnTimeRate     float64           `json:"on_time_rate"`
	OverdueRate    float64           `json:"overdue_rate"`
	Stats          statsResponse     `json:"stats"`
	CurrentOverdue []overdueResponse `json:"current_overdue"`
	TopIssues      []overdueResponse `json:"top_issues"`
}

func toOperatorResponse(op auth.Operator) operatorResponse {
	return operatorResponse{
		ID:          op.ID,
		Email:       op.Email,
		DisplayName: op.DisplayName,
		Role:        string(op.Role),
		CreatedAt:   op.CreatedAt.Format(time.RFC3339),
	}
}

func toRecordResponse(rec record.Record) recordResponse {
	return recordResponse{
		ID:            rec.ID,
		CreatorHandle: rec.CreatorHandle,
		Campaign:      rec.Campaign,
		Brand:         rec.Brand,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryResponse(e ledger.Entry) entryResponse {
	resp := entryResponse{
		ID:           e.ID,
		RecordID:     e.RecordID,
		Seq:          e.Seq,
		FromStage:    e.FromStage,
		ToStage:      e.ToStage,
		StageStart:   e.StageStart.Format(time.RFC3339),
		Deadline:     e.Deadline.Format(time.RFC3339),
		PlannedHours: e.PlannedDurationHours,
		ActualHours:  e.ActualDurationHours,
		ChangeReason: e.ChangeReason,
		Remarks:      e.Remarks,
		OperatorID:   e.OperatorID,
	}
	if e.StageEnd != nil {
		end := e.StageEnd.Format(time.RFC3339)
		resp.StageEnd = &end
	}
	return resp
}

func toOverdueResponse(rec overdue.Record) overdueResponse {
	return overdueResponse{
		RecordID:         rec.RecordID,
		CurrentStage:     rec.CurrentStage,
		OverdueHours:     rec.OverdueHours,
		Level:            string(rec.Level),
		SuggestedActions: rec.SuggestedActions,
	}
}

func toStatsResponse(s stats.TimelinessStats) statsResponse {
	return statsResponse{
		TotalRecords:       s.TotalRecords,
		OnTimeRecords:      s.OnTimeRecords,
		OverdueRecords:     s.OverdueRecords,
		AvgCompletionHours: s.AvgCompletionHours,
	}
}

func toReportResponse(r stats.Report, generatedAt time.Time) reportResponse {
	currentOverdue := make([]overdueResponse, 0, len(r.CurrentOverdue))
	for _, rec := range r.CurrentOverdue {
		currentOverdue = append(currentOverdue, toOverdueResponse(rec))
	}
	topIssues := make([]overdueResponse, 0, len(r.TopIssues))
	for _, rec := range r.TopIssues {
		topIssues = append(topIssues, toOverdueResponse(rec))
	}
	return reportResponse{
		GeneratedAt:    generatedAt.Format(time.RFC3339),
		OnTimeRate:     r.Summary.OnTimeRate,
		OverdueRate:    r.Summary.OverdueRate,
		Stats:          toStatsResponse(r.Stats),
		CurrentOverdue: currentOverdue,
		TopIssues:      topIssues,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
