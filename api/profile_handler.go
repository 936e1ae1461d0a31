package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/raushankrgupta/gait-speed-service/models"
	"github.com/raushankrgupta/gait-speed-service/store"
	"github.com/raushankrgupta/gait-speed-service/utils"
)

// UpdateProfileRequest carries the profile fields to change. Absent fields are kept.
type UpdateProfileRequest struct {
	Username     string  `json:"username"`
	Name         *string `json:"name"`
	Birthdate    *string `json:"birthdate"`
	Gender       *string `json:"gender"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	Organization *string `json:"organization"`
	Avatar       *string `json:"avatar"`
}

func (req *UpdateProfileRequest) validate() []string {
	var errs []string
	if req.Name != nil {
		*req.Name = strings.TrimSpace(*req.Name)
		if n := utils.RuneLen(*req.Name); n < 2 || n > 50 {
			errs = append(errs, "Name must be between 2 and 50 characters")
		}
	}
	if req.Email != nil {
		*req.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		if !utils.IsValidEmail(*req.Email) {
			errs = append(errs, "Invalid email format")
		}
	}
	if req.Phone != nil {
		*req.Phone = strings.TrimSpace(*req.Phone)
		if !utils.IsValidPhone(*req.Phone) {
			errs = append(errs, "Phone number must be in the format 09xxxxxxxx")
		}
	}
	if req.Gender != nil && *req.Gender != "" && !utils.IsValidGender(*req.Gender) {
		errs = append(errs, "Gender must be male, female or other")
	}
	if req.Organization != nil {
		*req.Organization = strings.TrimSpace(*req.Organization)
		if utils.RuneLen(*req.Organization) > 100 {
			errs = append(errs, "Organization must be at most 100 characters")
		}
	}
	return errs
}

// ListUsersHandler returns the public profile of every user
func (s *Server) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[List Users API]")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	profiles, err := s.users.List(ctx)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to fetch users", http.StatusInternalServerError)
		return
	}
	if profiles == nil {
		profiles = []models.UserProfile{}
	}
	for i := range profiles {
		profiles[i].Avatar = s.resolveAvatar(ctx, &logMessageBuilder, profiles[i].Avatar)
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Returning %d users", len(profiles)))
	utils.RespondSuccess(w, map[string]interface{}{"data": profiles})
}

// DeleteUserHandler removes a user account. Admin session required.
func (s *Server) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Delete User API]")

	username := r.PathValue("username")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := s.users.Delete(ctx, username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "User not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to delete user", http.StatusInternalServerError)
		return
	}

	if claims, err := GetClaimsFromContext(r.Context()); err == nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("User %s deleted by %s", username, claims.Username))
	}
	utils.RespondSuccess(w, map[string]interface{}{"message": "User deleted"})
}

// GetUserProfileHandler returns one user's public profile
func (s *Server) GetUserProfileHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Get User Profile API]")

	username := r.PathValue("username")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "User not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to fetch profile", http.StatusInternalServerError)
		return
	}

	profile := user.Profile()
	profile.Avatar = s.resolveAvatar(ctx, &logMessageBuilder, profile.Avatar)
	utils.RespondSuccess(w, map[string]interface{}{"data": profile})
}

// UpdateProfileHandler changes the supplied profile fields of a user
func (s *Server) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Update Profile API]")

	var req UpdateProfileRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		utils.RespondError(w, &logMessageBuilder, "Username is required", http.StatusBadRequest)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		utils.RespondErrorWith(w, &logMessageBuilder, "Invalid input", http.StatusBadRequest,
			map[string]interface{}{"errors": errs})
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
		utils.RespondError(w, &logMessageBuilder, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	if req.Avatar != nil && strings.HasPrefix(*req.Avatar, "data:") && s.avatars != nil {
		key, err := s.uploadAvatar(ctx, req.Username, *req.Avatar)
		if err != nil {
			utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Avatar upload failed: %v", err))
			utils.RespondError(w, &logMessageBuilder, "Failed to upload avatar", http.StatusBadRequest)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Avatar stored at %s", key))
		req.Avatar = &key
	}

	updated, err := s.users.UpdateProfile(ctx, req.Username, models.ProfileUpdate{
		Name:         req.Name,
		Birthdate:    req.Birthdate,
		Gender:       req.Gender,
		Phone:        req.Phone,
		Email:        req.Email,
		Organization: req.Organization,
		Avatar:       req.Avatar,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "User not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	profile := updated.Profile()
	profile.Avatar = s.resolveAvatar(ctx, &logMessageBuilder, profile.Avatar)
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Profile of %s updated", req.Username))
	utils.RespondSuccess(w, map[string]interface{}{
		"message": "Profile updated",
		"data":    profile,
	})
}

func (s *Server) uploadAvatar(ctx context.Context, username, dataURL string) (string, error) {
	contentType, body, err := utils.DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	objectKey := fmt.Sprintf("avatars/%s/%s%s", username, uuid.New().String(), utils.ExtensionForContentType(contentType))
	return s.avatars.Upload(ctx, body, objectKey, contentType)
}

// resolveAvatar turns a stored object key into a presigned URL. Inline data
// URLs and external links are returned unchanged.
func (s *Server) resolveAvatar(ctx context.Context, logMessageBuilder *strings.Builder, avatar string) string {
	if s.avatars == nil || !utils.IsStoredObjectKey(avatar) {
		return avatar
	}
	url, err := s.avatars.PresignedURL(ctx, avatar)
	if err != nil {
		utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Failed to presign avatar %s: %v", avatar, err))
		return ""
	}
	return url
}
