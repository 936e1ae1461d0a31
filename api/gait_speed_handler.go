package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raushankrgupta/gait-speed-service/models"
	"github.com/raushankrgupta/gait-speed-service/store"
	"github.com/raushankrgupta/gait-speed-service/utils"
)

// GaitSpeedRequest represents one measurement sent by the app. Speed may be
// a JSON number or a numeric string.
type GaitSpeedRequest struct {
	Username string      `json:"username"`
	Date     string      `json:"date"`
	Speed    json.Number `json:"speed"`
}

// PaginatedRecords is returned by user-data when page or limit is given
type PaginatedRecords struct {
	Records     []models.GaitSpeedRecord `json:"records"`
	Total       int64                    `json:"total"`
	CurrentPage int                      `json:"currentPage"`
	TotalPages  int                      `json:"totalPages"`
}

var measurementDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseMeasurementDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range measurementDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// AddGaitSpeedHandler appends a speed measurement for an existing user
func (s *Server) AddGaitSpeedHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Add Gait Speed API]")

	var req GaitSpeedRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Date == "" || req.Speed == "" {
		utils.RespondError(w, &logMessageBuilder, "Username, date and speed are required", http.StatusBadRequest)
		return
	}

	speed, err := req.Speed.Float64()
	if err != nil || math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		utils.RespondError(w, &logMessageBuilder, "Speed must be a positive number", http.StatusBadRequest)
		return
	}

	date, err := parseMeasurementDate(req.Date)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, err.Error())
		utils.RespondError(w, &logMessageBuilder, "Invalid date", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, err := s.users.FindByUsername(ctx, req.Username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "User not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to save gait speed", http.StatusInternalServerError)
		return
	}

	record := &models.GaitSpeedRecord{
		Username: req.Username,
		Date:     date,
		Speed:    speed,
	}
	if err := s.speeds.Add(ctx, record); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to save record: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to save gait speed", http.StatusInternalServerError)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Saved %.2f m/s for %s", speed, req.Username))
	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"status": utils.StatusSuccess,
		"data":   record,
	})
}

// GetUserDataHandler lists a user's measurements oldest first. Without page
// and limit every record is returned.
func (s *Server) GetUserDataHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Get User Data API]")

	username := r.PathValue("username")
	pageStr := r.URL.Query().Get("page")
	limitStr := r.URL.Query().Get("limit")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if pageStr == "" && limitStr == "" {
		records, err := s.speeds.ListByUsername(ctx, username, 0, 0)
		if err != nil {
			utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
			utils.RespondError(w, &logMessageBuilder, "Failed to fetch gait speed data", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []models.GaitSpeedRecord{}
		}
		utils.RespondSuccess(w, map[string]interface{}{"data": records})
		return
	}

	page := 1
	limit := 10
	if pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	total, err := s.speeds.CountByUsername(ctx, username)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Error counting records: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to fetch gait speed data", http.StatusInternalServerError)
		return
	}

	totalPages := int(total / int64(limit))
	if total%int64(limit) != 0 {
		totalPages++
	}

	// past the last page there is nothing to fetch; this also keeps the skip
	// below total so it cannot overflow
	records := []models.GaitSpeedRecord{}
	if page <= totalPages {
		skip := int64(page-1) * int64(limit)
		records, err = s.speeds.ListByUsername(ctx, username, skip, int64(limit))
		if err != nil {
			utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
			utils.RespondError(w, &logMessageBuilder, "Failed to fetch gait speed data", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []models.GaitSpeedRecord{}
		}
	}

	utils.RespondSuccess(w, map[string]interface{}{
		"data": PaginatedRecords{
			Records:     records,
			Total:       total,
			CurrentPage: page,
			TotalPages:  totalPages,
		},
	})
}

// SpeedStatsHandler reports mean and population standard deviation over all
// measurements, or one user's when ?username= is given
func (s *Server) SpeedStatsHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Speed Stats API]")

	username := strings.TrimSpace(r.URL.Query().Get("username"))

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	speeds, err := s.speeds.Speeds(ctx, username)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to compute statistics", http.StatusInternalServerError)
		return
	}

	result, err := utils.ComputeSpeedStats(speeds)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Stats error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to compute statistics", http.StatusInternalServerError)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Stats over %d records", result.TotalRecords))
	utils.RespondSuccess(w, map[string]interface{}{"data": result})
}
