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
	"golang.org/x/crypto/bcrypt"
)

// RegisterRequest represents the payload for user registration
type RegisterRequest struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Birthdate    string `json:"birthdate"`
	Gender       string `json:"gender"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
	Password     string `json:"password"`
}

// LoginRequest represents the payload for user and admin login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Token is the approval code an admin must supply on first login
	Token string `json:"token,omitempty"`
}

// ResetRequest represents the payload for requesting a reset link
type ResetRequest struct {
	Username string `json:"username"`
}

// ResetPasswordRequest represents the payload for setting a new password
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (req *RegisterRequest) normalize() {
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Organization = strings.TrimSpace(req.Organization)
}

// validate collects every problem with the request instead of stopping at the first.
func (req *RegisterRequest) validate() []string {
	var errs []string
	if n := utils.RuneLen(req.Username); n < 3 || n > 20 {
		errs = append(errs, "Username must be between 3 and 20 characters")
	}
	if n := utils.RuneLen(req.Name); n < 2 || n > 50 {
		errs = append(errs, "Name must be between 2 and 50 characters")
	}
	if req.Email == "" {
		errs = append(errs, "Email is required")
	} else if !utils.IsValidEmail(req.Email) {
		errs = append(errs, "Invalid email format")
	}
	if strings.TrimSpace(req.Birthdate) == "" {
		errs = append(errs, "Birthdate is required")
	}
	if req.Gender != "" && !utils.IsValidGender(req.Gender) {
		errs = append(errs, "Gender must be male, female or other")
	}
	if !utils.IsValidPhone(req.Phone) {
		errs = append(errs, "Phone number must be in the format 09xxxxxxxx")
	}
	if utils.RuneLen(req.Organization) > 100 {
		errs = append(errs, "Organization must be at most 100 characters")
	}
	if msg := utils.PasswordProblem(req.Password); msg != "" {
		errs = append(errs, msg)
	}
	return errs
}

// RegisterUserHandler creates an unverified account and mails a verification link
func (s *Server) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Register User API]")

	var req RegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.normalize()

	if errs := req.validate(); len(errs) > 0 {
		utils.RespondErrorWith(w, &logMessageBuilder, "Invalid input", http.StatusBadRequest,
			map[string]interface{}{"errors": errs})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, err := s.users.FindByUsername(ctx, req.Username); err == nil {
		utils.RespondError(w, &logMessageBuilder, "Username already exists", http.StatusBadRequest)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error checking user: %v", err))
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
	expires := now.Add(userVerificationTTL)
	user := &models.User{
		Username:                 req.Username,
		Name:                     req.Name,
		Email:                    req.Email,
		Phone:                    req.Phone,
		Birthdate:                req.Birthdate,
		Gender:                   req.Gender,
		Organization:             req.Organization,
		Password:                 hashedPassword,
		EmailVerificationToken:   token,
		EmailVerificationExpires: &expires,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.RespondError(w, &logMessageBuilder, "Username already exists", http.StatusBadRequest)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to create user: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Registration failed", http.StatusInternalServerError)
		return
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.Name, token); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to send verification email: %v", err))
	} else {
		utils.AddToLogMessage(&logMessageBuilder, "Verification email sent")
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("User %s registered", user.Username))
	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  utils.StatusSuccess,
		"message": "Registration successful, please check your email to verify your account",
	})
}

// VerifyEmailHandler confirms an email address from the link in the verification email
func (s *Server) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Verify Email API]")

	token := r.PathValue("token")
	if token == "" {
		utils.RespondError(w, &logMessageBuilder, "Verification link is invalid or has expired", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := s.users.FindByVerificationToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "Verification link is invalid or has expired", http.StatusBadRequest)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Verification failed", http.StatusInternalServerError)
		return
	}

	if err := s.users.MarkEmailVerified(ctx, user.Username); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to mark verified: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Verification failed", http.StatusInternalServerError)
		return
	}

	if err := s.mailer.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to send welcome email: %v", err))
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("User %s verified", user.Username))
	utils.RespondSuccess(w, map[string]interface{}{"message": "Email verified successfully"})
}

// LoginUserHandler authenticates a verified user
func (s *Server) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Login User API]")

	var req LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		utils.RespondError(w, &logMessageBuilder, "Username and password are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("User not found: %s", req.Username))
			utils.RespondError(w, &logMessageBuilder, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Login failed", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Wrong password for %s", req.Username))
		utils.RespondError(w, &logMessageBuilder, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if !user.IsEmailVerified {
		utils.RespondError(w, &logMessageBuilder, "Please verify your email before logging in", http.StatusForbidden)
		return
	}

	token, err := utils.GenerateToken(s.jwtSecret, user.ID.Hex(), user.Username, models.RoleUser, s.jwtExpiresIn)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to generate token: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Login failed", http.StatusInternalServerError)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("User %s logged in", user.Username))
	utils.RespondSuccess(w, map[string]interface{}{
		"message": "Login successful",
		"token":   token,
		"data": map[string]string{
			"username": user.Username,
			"name":     user.Name,
		},
	})
}

// RequestPasswordResetHandler mails a reset link to a verified user
func (s *Server) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Request Password Reset API]")

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

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, &logMessageBuilder, "User not found", http.StatusNotFound)
			return
		}
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Database error: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to process reset request", http.StatusInternalServerError)
		return
	}

	if !user.IsEmailVerified {
		utils.RespondError(w, &logMessageBuilder, "Email address has not been verified", http.StatusBadRequest)
		return
	}

	token, err := utils.GenerateSecureToken()
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, err.Error())
		utils.RespondError(w, &logMessageBuilder, "Failed to process reset request", http.StatusInternalServerError)
		return
	}

	if err := s.users.SetResetToken(ctx, user.Username, token, s.now().Add(userResetTTL)); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to store reset token: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to process reset request", http.StatusInternalServerError)
		return
	}

	if err := s.mailer.SendResetPasswordEmail(ctx, user.Email, user.Name, token); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to send reset email: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to send reset email", http.StatusInternalServerError)
		return
	}

	utils.RespondSuccess(w, map[string]interface{}{"message": "Password reset email sent"})
}

// ResetPasswordHandler sets a new password using a reset token
func (s *Server) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLog(&logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Reset Password API]")

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

	user, err := s.users.FindByResetToken(ctx, req.Token, s.now())
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

	if err := s.users.ResetPassword(ctx, user.Username, hashedPassword); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to store password: %v", err))
		utils.RespondError(w, &logMessageBuilder, "Failed to reset password", http.StatusInternalServerError)
		return
	}

	if err := s.mailer.SendPasswordChangedEmail(ctx, user.Email, user.Name); err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to send password changed email: %v", err))
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Password reset for %s", user.Username))
	utils.RespondSuccess(w, map[string]interface{}{"message": "Password has been reset"})
}
