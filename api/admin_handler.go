package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/raushankrgupta/gait-speed-service/models"
	"github.com/raushankrgupta/gait-speed-service/store"
	"github.com/raushankrgupta/gait-speed-service/utils"
)

// UpdateAdminRequest represents a super-admin edit of another admin
type UpdateAdminRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Status       string `json:"status"`
}

// ListAdminsHandler returns every admin, from the cache when it is fresh
func (s *Server) ListAdminsHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[List Admins API]")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if admins, ok := s.adminCache.Get(ctx); ok {
		utils.AddToLogMessage(&logMessageBuilder, "Served from cache")
		utils.RespondSuccess(w, map[string]interface{}{"data": admins, "fromCache": true})
		return
	}

	admins, err := s.admins.List(ctx)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to fetch admins", http.StatusInternalServerError)
		return
	}
	if admins == nil {
		admins = []models.Admin{}
	}
	s.adminCache.Set(ctx, admins)

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Loaded %d admins", len(admins)))
	utils.RespondSuccess(w, map[string]interface{}{"data": admins, "fromCache": false})
}

// UpdateAdminHandler edits the contact details or status of an admin
func (s *Server) UpdateAdminHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Update Admin API]")

	var req UpdateAdminRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Organization = strings.TrimSpace(req.Organization)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.ID == "" {
		utils.RespondError(w, &logMessageBuilder, "Admin id is required", http.StatusBadRequest)
		return
	}
	if req.Phone != "" && !utils.IsValidPhone(req.Phone) {
		utils.RespondError(w, &logMessageBuilder, "Phone number must be in the format 09xxxxxxxx", http.StatusBadRequest)
		return
	}
	if req.Email != "" && !utils.IsValidEmail(req.Email) {
		utils.RespondError(w, &logMessageBuilder, "Invalid email format", http.StatusBadRequest)
		return
	}
	if req.Status != "" && !models.IsValidAdminStatus(req.Status) {
		utils.RespondError(w, &logMessageBuilder, "Invalid status", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	target, err := s.admins.FindByID(ctx, req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "Admin not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to update admin", http.StatusInternalServerError)
		return
	}
	if target.Role == models.RoleSuperAdmin {
		utils.RespondError(w, &logMessageBuilder, "The super admin account cannot be modified", http.StatusForbidden)
		return
	}

	// empty fields keep their current value
	update := models.AdminUpdate{
		Name:         orDefault(req.Name, target.Name),
		Organization: orDefault(req.Organization, target.Organization),
		Phone:        orDefault(req.Phone, target.Phone),
		Email:        orDefault(req.Email, target.Email),
		Status:       orDefault(req.Status, target.Status),
	}

	updated, err := s.admins.Update(ctx, req.ID, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "Admin not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to update admin", http.StatusInternalServerError)
		return
	}
	s.adminCache.Invalidate(ctx)

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Admin %s updated (status %s)", updated.Username, updated.Status))
	utils.RespondSuccess(w, map[string]interface{}{
		"message": "Admin updated",
		"data":    updated,
	})
}

// DeleteAdminHandler removes an admin account
func (s *Server) DeleteAdminHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Delete Admin API]")

	id := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	target, err := s.admins.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "Admin not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to delete admin", http.StatusInternalServerError)
		return
	}
	if target.Role == models.RoleSuperAdmin {
		utils.RespondError(w, &logMessageBuilder, "The super admin account cannot be deleted", http.StatusForbidden)
		return
	}

	if err := s.admins.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "Admin not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to delete admin", http.StatusInternalServerError)
		return
	}
	s.adminCache.Invalidate(ctx)

	actorID, _ := GetUserIDFromContext(r.Context())
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Admin %s deleted by account %s", target.Username, actorID))
	utils.RespondSuccess(w, map[string]interface{}{"message": "Admin deleted"})
}

// ClearCacheHandler drops the cached admin list
func (s *Server) ClearCacheHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Clear Admin Cache API]")

	s.adminCache.Invalidate(r.Context())
	if actorID, err := GetUserIDFromContext(r.Context()); err == nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Cleared by account %s", actorID))
	}
	utils.RespondSuccess(w, map[string]interface{}{"message": "Cache cleared"})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// InitializeSuperAdmin creates or refreshes the super-admin account. It is
// always active and never goes through the first-login gate.
func InitializeSuperAdmin(ctx context.Context, admins store.AdminStore, username, password, email string, cost int) (*models.Admin, error) {
	hashed, err := hashWithCost(password, cost)
	if err != nil {
		return nil, err
	}
	return admins.UpsertSuperAdmin(ctx, &models.Admin{
		Username:     username,
		Name:         "Super Admin",
		Organization: "System",
		Phone:        "0900000000",
		Email:        email,
		Password:     hashed,
		Role:         models.RoleSuperAdmin,
		Status:       models.AdminStatusActive,
		FirstLogin:   false,
		IsVerified:   true,
	})
}
