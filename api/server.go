package api

import (
	"context"
	"net/http"
	"time"

	"github.com/raushankrgupta/gait-speed-service/cache"
	"github.com/raushankrgupta/gait-speed-service/emails"
	"github.com/raushankrgupta/gait-speed-service/store"
	"github.com/raushankrgupta/gait-speed-service/utils"
	"golang.org/x/crypto/bcrypt"
)

const requestTimeout = 30 * time.Second

// Token lifetimes
const (
	userVerificationTTL = 24 * time.Hour
	userResetTTL        = 24 * time.Hour
	adminResetTTL       = 30 * time.Minute
	// admin approval tokens are valid for one calendar month, see adminTokenExpiry
)

// Mailer sends the transactional emails triggered by account flows
type Mailer interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, token string) error
	SendWelcomeEmail(ctx context.Context, toEmail, name string) error
	SendResetPasswordEmail(ctx context.Context, toEmail, name, token string) error
	SendAdminResetPasswordEmail(ctx context.Context, toEmail, name, token string) error
	SendPasswordChangedEmail(ctx context.Context, toEmail, name string) error
	SendAdminRegistrationEmails(ctx context.Context, app emails.AdminApplication) error
}

// Options configures a Server. Avatars may be nil, in which case avatars are
// stored inline on the user document.
type Options struct {
	Users      store.UserStore
	Admins     store.AdminStore
	Speeds     store.GaitSpeedStore
	Mailer     Mailer
	AdminCache cache.AdminListCache
	Avatars    utils.ObjectStorage

	JWTSecret         string
	JWTExpiresIn      time.Duration
	BcryptCost        int
	CORSAllowedOrigin string
	Now               func() time.Time
}

// Server holds the dependencies shared by all handlers
type Server struct {
	users      store.UserStore
	admins     store.AdminStore
	speeds     store.GaitSpeedStore
	mailer     Mailer
	adminCache cache.AdminListCache
	avatars    utils.ObjectStorage

	jwtSecret    string
	jwtExpiresIn time.Duration
	bcryptCost   int
	corsOrigin   string
	now          func() time.Time
}

func NewServer(opts Options) *Server {
	s := &Server{
		users:        opts.Users,
		admins:       opts.Admins,
		speeds:       opts.Speeds,
		mailer:       opts.Mailer,
		adminCache:   opts.AdminCache,
		avatars:      opts.Avatars,
		jwtSecret:    opts.JWTSecret,
		jwtExpiresIn: opts.JWTExpiresIn,
		bcryptCost:   opts.BcryptCost,
		corsOrigin:   opts.CORSAllowedOrigin,
		now:          opts.Now,
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.jwtExpiresIn == 0 {
		s.jwtExpiresIn = 24 * time.Hour
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.adminCache == nil {
		s.adminCache = cache.NewMemoryAdminListCache(5 * time.Minute)
	}
	return s
}

// Handler returns the routed API wrapped in CORS and latency logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondSuccess(w, nil)
	})

	// User account routes
	mux.HandleFunc("POST /api/register", s.RegisterUserHandler)
	mux.HandleFunc("POST /api/login", s.LoginUserHandler)
	mux.HandleFunc("GET /api/verify-email/{token}", s.VerifyEmailHandler)
	mux.HandleFunc("POST /api/request-reset-password", s.RequestPasswordResetHandler)
	mux.HandleFunc("POST /api/reset-password", s.ResetPasswordHandler)

	// Profiles
	mux.HandleFunc("GET /api/users", s.ListUsersHandler)
	mux.Handle("DELETE /api/users/{username}", s.RequireRole(http.HandlerFunc(s.DeleteUserHandler), RoleAnyAdmin...))
	mux.HandleFunc("GET /api/user-profile/{username}", s.GetUserProfileHandler)
	mux.HandleFunc("POST /api/update-profile", s.UpdateProfileHandler)

	// Gait speed data
	mux.HandleFunc("POST /api/gait-speed", s.AddGaitSpeedHandler)
	mux.HandleFunc("GET /api/user-data/{username}", s.GetUserDataHandler)
	mux.HandleFunc("GET /api/speed-stats", s.SpeedStatsHandler)

	// Admin routes
	mux.HandleFunc("POST /api/admin/register", s.RegisterAdminHandler)
	mux.HandleFunc("POST /api/admin/verify-token", s.VerifyAdminTokenHandler)
	mux.HandleFunc("POST /api/admin/login", s.AdminLoginHandler)
	mux.HandleFunc("POST /api/admin/request-reset-password", s.RequestAdminPasswordResetHandler)
	mux.HandleFunc("POST /api/admin/reset-password", s.ResetAdminPasswordHandler)

	superAdminOnly := func(h http.HandlerFunc) http.Handler {
		return s.RequireRole(h, RoleSuperAdminOnly...)
	}
	mux.Handle("GET /api/admin/list", superAdminOnly(s.ListAdminsHandler))
	mux.Handle("PUT /api/admin/update", superAdminOnly(s.UpdateAdminHandler))
	mux.Handle("DELETE /api/admin/{id}", superAdminOnly(s.DeleteAdminHandler))
	mux.Handle("POST /api/admin/clear-cache", superAdminOnly(s.ClearCacheHandler))

	return utils.CORSMiddleware(s.corsOrigin, utils.LatencyMiddleware(mux))
}

func (s *Server) hashPassword(password string) (string, error) {
	return hashWithCost(password, s.bcryptCost)
}

func hashWithCost(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// adminTokenExpiry is one calendar month after now.
func adminTokenExpiry(now time.Time) time.Time {
	return now.AddDate(0, 1, 0)
}
