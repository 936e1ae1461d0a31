package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/raushankrgupta/gait-speed-service/emails"
	"github.com/raushankrgupta/gait-speed-service/models"
	"github.com/raushankrgupta/gait-speed-service/store"
	"github.com/raushankrgupta/gait-speed-service/utils"
	"golang.org/x/crypto/bcrypt"
)

// AdminRegisterRequest represents an application for an admin account
type AdminRegisterRequest struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

// VerifyAdminTokenRequest represents the payload for approving an admin with its code
type VerifyAdminTokenRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (req *AdminRegisterRequest) validate() string {
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	req.Organization = strings.TrimSpace(req.Organization)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	switch {
	case req.Username == "" || req.Name == "" || req.Organization == "" ||
		req.Phone == "" || req.Email == "" || req.Password == "":
		return "Please fill in all required fields"
	case !utils.IsValidEmail(req.Email):
		return "Invalid email format"
	case !utils.IsValidPhone(req.Phone):
		return "Phone number must be in the format 09xxxxxxxx"
	case utils.RuneLen(req.Username) < 3:
		return "Username must be at least 3 characters"
	}
	return utils.PasswordProblem(req.Password)
}

// RegisterAdminHandler records a pending admin application and notifies the super-admin
func (s *Server) RegisterAdminHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Register Admin API]")

	var req AdminRegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		utils.RespondError(w, &logMessageBuilder, msg, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, err := s.admins.FindByUsername(ctx, req.Username); err == nil {
		utils.RespondError(w, &logMessageBuilder, "Username is already taken", http.StatusBadRequest)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Registration failed", http.StatusInternalServerError)
		return
	}

	hashedPassword, err := s.hashPassword(req.Password)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to hash password: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Registration failed", http.StatusInternalServerError)
		return
	}

	token, err := utils.GenerateSecureToken()
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, err.Error())
		utils.RespondError(w, &logMessageBuilder, "Registration failed", http.StatusInternalServerError)
		return
	}

	now := s.now()
	expires := adminTokenExpiry(now)
	admin := &models.Admin{
		Username:          req.Username,
		Name:              req.Name,
		Organization:      req.Organization,
		Phone:             req.Phone,
		Email:             req.Email,
		Password:          hashedPassword,
		Role:              models.RoleAdmin,
		Status:            models.AdminStatusPending,
		FirstLogin:        true,
		VerificationToken: token,
		TokenExpires:      &expires,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.RespondError(w, &logMessageBuilder, "Username is already taken", http.StatusBadRequest)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to create admin: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Registration failed", http.StatusInternalServerError)
		return
	}
	s.adminCache.Invalidate(ctx)

	err = s.mailer.SendAdminRegistrationEmails(ctx, emails.AdminApplication{
		Name:         admin.Name,
		Username:     admin.Username,
		Organization: admin.Organization,
		Phone:        admin.Phone,
		Email:        admin.Email,
		Token:        token,
	})
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to send registration emails: %v", err))
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Admin application from %s recorded", admin.Username))
	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  utils.StatusSuccess,
		"message": "Registration submitted, please wait for approval",
	})
}

// VerifyAdminTokenHandler activates an admin using the approval code
func (s *Server) VerifyAdminTokenHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Verify Admin Token API]")

	var req VerifyAdminTokenRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Token = strings.TrimSpace(req.Token)
	if req.Username == "" || req.Token == "" {
		utils.RespondError(w, &logMessageBuilder, "Username and verification code are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	admin, err := s.admins.FindByVerificationToken(ctx, req.Username, req.Token, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "Verification code is invalid or has expired", http.StatusBadRequest)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Verification failed", http.StatusInternalServerError)
		return
	}

	if err := s.admins.Activate(ctx, admin.ID.Hex()); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to activate admin: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Verification failed", http.StatusInternalServerError)
		return
	}
	s.adminCache.Invalidate(ctx)

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Admin %s activated", admin.Username))
	utils.RespondSuccess(w, map[string]interface{}{"message": "Account verified, you can now log in"})
}

// AdminLoginHandler authenticates an admin. A newly approved admin must also
// present the approval code on the first login.
func (s *Server) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Admin Login API]")

	var req LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Token = strings.TrimSpace(req.Token)
	if req.Username == "" || req.Password == "" {
		utils.RespondError(w, &logMessageBuilder, "Username and password are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	admin, err := s.admins.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Admin not found: %s", req.Username))
			utils.RespondError(w, &logMessageBuilder, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Login failed", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Wrong password for %s", req.Username))
		utils.RespondError(w, &logMessageBuilder, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if admin.Status == models.AdminStatusBlocked {
		utils.RespondError(w, &logMessageBuilder, "This account has been blocked", http.StatusForbidden)
		return
	}

	if admin.Role == models.RoleAdmin && admin.FirstLogin {
		if req.Token == "" {
			utils.RespondErrorWith(w, &logMessageBuilder, "Verification code is required for the first login",
				http.StatusUnauthorized, map[string]interface{}{"requireToken": true})
			return
		}
		if !tokensEqual(req.Token, admin.VerificationToken) {
			utils.RespondError(w, &logMessageBuilder, "Invalid verification code", http.StatusUnauthorized)
			return
		}
		if admin.TokenExpires == nil || !admin.TokenExpires.After(s.now()) {
			utils.RespondError(w, &logMessageBuilder, "Verification code has expired", http.StatusUnauthorized)
			return
		}
		if err := s.admins.Activate(ctx, admin.ID.Hex()); err != nil {
			utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to complete first login: %v", err))
			utils.RespondError(w, &logMessageBuilder, "Login failed", http.StatusInternalServerError)
			return
		}
		admin.FirstLogin = false
		admin.Status = models.AdminStatusActive
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("First login completed for %s", admin.Username))
	} else if admin.Status == models.AdminStatusPending {
		utils.RespondError(w, &logMessageBuilder, "This account is awaiting approval", http.StatusForbidden)
		return
	}

	token, err := utils.GenerateToken(s.jwtSecret, admin.ID.Hex(), admin.Username, admin.Role, s.jwtExpiresIn)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to generate token: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Login failed", http.StatusInternalServerError)
		return
	}

	if err := s.admins.RecordLogin(ctx, admin.ID.Hex(), s.now()); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to record login time: %v", err))
	}
	s.adminCache.Invalidate(ctx)

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Admin %s logged in", admin.Username))
	utils.RespondSuccess(w, map[string]interface{}{
		"message": "Login successful",
		"token":   token,
		"user": map[string]string{
			"id":       admin.ID.Hex(),
			"username": admin.Username,
			"name":     admin.Name,
			"role":     admin.Role,
		},
	})
}

// RequestAdminPasswordResetHandler mails a short-lived reset link to an admin
func (s *Server) RequestAdminPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Request Admin Password Reset API]")

	var req ResetRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		utils.RespondError(w, &logMessageBuilder, "Username is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	admin, err := s.admins.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "Admin not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to process reset request", http.StatusInternalServerError)
		return
	}

	token, err := utils.GenerateSecureToken()
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, err.Error())
		utils.RespondError(w, &logMessageBuilder, "Failed to process reset request", http.StatusInternalServerError)
		return
	}

	if err := s.admins.SetResetToken(ctx, admin.ID.Hex(), token, s.now().Add(adminResetTTL)); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to store reset token: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to process reset request", http.StatusInternalServerError)
		return
	}
	s.adminCache.Invalidate(ctx)

	if err := s.mailer.SendAdminResetPasswordEmail(ctx, admin.Email, admin.Name, token); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to send reset email: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to send reset email", http.StatusInternalServerError)
		return
	}

	utils.RespondSuccess(w, map[string]interface{}{"message": "Password reset email sent"})
}

// ResetAdminPasswordHandler sets a new admin password using a reset token
func (s *Server) ResetAdminPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Reset Admin Password API]")

	var req ResetPasswordRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		utils.RespondError(w, &logMessageBuilder, "Token and new password are required", http.StatusBadRequest)
		return
	}
	if msg := utils.PasswordProblem(req.NewPassword); msg != "" {
		utils.RespondError(w, &logMessageBuilder, msg, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	admin, err := s.admins.FindByResetToken(ctx, req.Token, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "Reset link is invalid or has expired", http.StatusBadRequest)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to reset password", http.StatusInternalServerError)
		return
	}

	hashedPassword, err := s.hashPassword(req.NewPassword)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to hash password: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to reset password", http.StatusInternalServerError)
		return
	}

	if err := s.admins.ResetPassword(ctx, admin.ID.Hex(), hashedPassword); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to store password: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	s.adminCache.Invalidate(ctx)

	if err := s.mailer.SendPasswordChangedEmail(ctx, admin.Email, admin.Name); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to send password changed email: %v", err))
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Password reset for admin %s", admin.Username))
	utils.RespondSuccess(w, map[string]interface{}{"message": "Password has been reset"})
}
