package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/raushankrgupta/gait-speed-service/models"
	"github.com/raushankrgupta/gait-speed-service/store"
	"github.com/raushankrgupta/gait-speed-service/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func validAdminRegistration() AdminRegisterRequest {
	return AdminRegisterRequest{
		Username:     "nurse_lin",
		Name:         "Lin",
		Organization: "Taipei Rehab",
		Phone:        "0922333444",
		Email:        "lin@rehab.example.com",
		Password:     "nursepw",
	}
}

// pendingAdmin registers an admin through the API and returns it with its approval code.
func (env *testEnv) pendingAdmin(t *testing.T) (*models.Admin, string) {
	t.Helper()
	rec, _ := env.do(t, http.MethodPost, "/api/admin/register", validAdminRegistration(), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	admin, err := env.admins.FindByUsername(t.Context(), "nurse_lin")
	require.NoError(t, err)
	return admin, admin.VerificationToken
}

func TestRegisterAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.cache.Set(t.Context(), []models.Admin{})

	admin, token := env.pendingAdmin(t)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, models.AdminStatusPending, admin.Status)
	assert.True(t, admin.FirstLogin)
	assert.False(t, admin.IsVerified)
	assert.Len(t, token, 64)
	require.NotNil(t, admin.TokenExpires)
	assert.Equal(t, testNow.AddDate(0, 1, 0), *admin.TokenExpires)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("nursepw")))

	require.Len(t, env.mailer.applications, 1)
	assert.Equal(t, token, env.mailer.applications[0].Token)

	_, cached := env.cache.Get(t.Context())
	assert.False(t, cached, "registration must invalidate the admin list cache")
}

func TestRegisterAdmin_Validation(t *testing.T) {
	env := newTestEnv(t)

	missing := validAdminRegistration()
	missing.Organization = ""
	rec, resp := env.do(t, http.MethodPost, "/api/admin/register", missing, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please fill in all required fields", resp["message"])

	badPhone := validAdminRegistration()
	badPhone.Phone = "0812345678"
	rec, _ = env.do(t, http.MethodPost, "/api/admin/register", badPhone, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	shortPassword := validAdminRegistration()
	shortPassword.Password = "abc"
	rec, _ = env.do(t, http.MethodPost, "/api/admin/register", shortPassword, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	longPassword := validAdminRegistration()
	longPassword.Password = strings.Repeat("密", 25)
	rec, resp = env.do(t, http.MethodPost, "/api/admin/register", longPassword, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password must be at most 72 bytes", resp["message"])
	_, err := env.admins.FindByUsername(t.Context(), "nurse_lin")
	assert.ErrorIs(t, err, store.ErrNotFound)

	env.pendingAdmin(t)
	rec, resp = env.do(t, http.MethodPost, "/api/admin/register", validAdminRegistration(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username is already taken", resp["message"])
}

func TestAdminLogin_FirstLoginGate(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.pendingAdmin(t)

	login := LoginRequest{Username: "nurse_lin", Password: "nursepw"}
	rec, resp := env.do(t, http.MethodPost, "/api/admin/login", login, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, true, resp["requireToken"])

	login.Token = "not-the-code"
	rec, resp = env.do(t, http.MethodPost, "/api/admin/login", login, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, resp["requireToken"])

	login.Token = token
	rec, resp = env.do(t, http.MethodPost, "/api/admin/login", login, "")
	require.Equal(t, http.StatusOK, rec.Code)

	claims, err := utils.ValidateToken(testSecret, resp["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	admin, err := env.admins.FindByUsername(t.Context(), "nurse_lin")
	require.NoError(t, err)
	assert.False(t, admin.FirstLogin)
	assert.Equal(t, models.AdminStatusActive, admin.Status)
	assert.Empty(t, admin.VerificationToken)
	require.NotNil(t, admin.LastLogin)
	assert.Equal(t, testNow, *admin.LastLogin)

	// later logins need no code
	rec, _ = env.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: "nurse_lin", Password: "nursepw"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminLogin_ExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	admin, token := env.pendingAdmin(t)
	expired := testNow.Add(-time.Hour)
	require.NoError(t, env.admins.mutate(admin.ID.Hex(), func(a *models.Admin) { a.TokenExpires = &expired }))

	rec, resp := env.do(t, http.MethodPost, "/api/admin/login",
		LoginRequest{Username: "nurse_lin", Password: "nursepw", Token: token}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Verification code has expired", resp["message"])
}

func TestAdminLogin_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "blocked", "password", models.RoleAdmin, models.AdminStatusBlocked)

	rec, _ := env.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: "ghost", Password: "password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: "blocked", Password: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: "blocked", Password: "password"}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminLogin_SuperAdminSkipsGate(t *testing.T) {
	env := newTestEnv(t)
	sa, err := InitializeSuperAdmin(t.Context(), env.admins, "admin", "rootpass", "root@example.com", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "rootpass", sa.Password)

	rec, resp := env.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: "admin", Password: "rootpass"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, models.RoleSuperAdmin, user["role"])

	// running the bootstrap again refreshes the same account
	again, err := InitializeSuperAdmin(t.Context(), env.admins, "admin", "newroot", "root@example.com", bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, sa.ID, again.ID)
}

func TestVerifyAdminToken(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.pendingAdmin(t)

	rec, _ := env.do(t, http.MethodPost, "/api/admin/verify-token", VerifyAdminTokenRequest{Username: "nurse_lin", Token: "wrong"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/admin/verify-token", VerifyAdminTokenRequest{Username: "nurse_lin", Token: token}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	admin, err := env.admins.FindByUsername(t.Context(), "nurse_lin")
	require.NoError(t, err)
	assert.True(t, admin.IsVerified)
	assert.False(t, admin.FirstLogin)
	assert.Equal(t, models.AdminStatusActive, admin.Status)
	assert.Empty(t, admin.VerificationToken)
}

func TestAdminPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "nurse_lin", "oldpass", models.RoleAdmin, models.AdminStatusActive)

	rec, _ := env.do(t, http.MethodPost, "/api/admin/request-reset-password", ResetRequest{Username: "ghost"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/admin/request-reset-password", ResetRequest{Username: "nurse_lin"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.admins.FindByID(t.Context(), admin.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, stored.ResetPasswordExpires)
	assert.Equal(t, testNow.Add(30*time.Minute), *stored.ResetPasswordExpires)
	assert.Equal(t, stored.ResetPasswordToken, env.mailer.tokens["admin-reset:"+admin.Email])

	token := stored.ResetPasswordToken
	rec, _ = env.do(t, http.MethodPost, "/api/admin/reset-password",
		ResetPasswordRequest{Token: token, NewPassword: "freshpass"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err = env.admins.FindByID(t.Context(), admin.ID.Hex())
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("freshpass")))
	assert.Empty(t, stored.ResetPasswordToken)

	// the reset token is single use
	rec, _ = env.do(t, http.MethodPost, "/api/admin/reset-password",
		ResetPasswordRequest{Token: token, NewPassword: "thirdpass"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	stored, err = env.admins.FindByID(t.Context(), admin.ID.Hex())
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("freshpass")))
}

func TestAdminPasswordReset_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "nurse_lin", "oldpass", models.RoleAdmin, models.AdminStatusActive)
	require.NoError(t, env.admins.SetResetToken(t.Context(), admin.ID.Hex(), "admintoken", testNow.Add(-time.Second)))

	rec, resp := env.do(t, http.MethodPost, "/api/admin/reset-password",
		ResetPasswordRequest{Token: "admintoken", NewPassword: "freshpass"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Reset link is invalid or has expired", resp["message"])

	stored, err := env.admins.FindByID(t.Context(), admin.ID.Hex())
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("oldpass")))
}

func TestAdminPasswordReset_PasswordTooLong(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "nurse_lin", "oldpass", models.RoleAdmin, models.AdminStatusActive)
	require.NoError(t, env.admins.SetResetToken(t.Context(), admin.ID.Hex(), "admintoken", testNow.Add(time.Minute)))

	rec, resp := env.do(t, http.MethodPost, "/api/admin/reset-password",
		ResetPasswordRequest{Token: "admintoken", NewPassword: strings.Repeat("p", utils.MaxPasswordBytes+1)}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password must be at most 72 bytes", resp["message"])

	stored, err := env.admins.FindByID(t.Context(), admin.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "admintoken", stored.ResetPasswordToken)
}

func TestSuperAdminRoutes_RequireSuperAdmin(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "nurse_lin", "password", models.RoleAdmin, models.AdminStatusActive)
	adminToken := sessionToken(t, admin.ID.Hex(), admin.Username, models.RoleAdmin)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/admin/list"},
		{http.MethodPut, "/api/admin/update"},
		{http.MethodDelete, "/api/admin/" + admin.ID.Hex()},
		{http.MethodPost, "/api/admin/clear-cache"},
	}
	for _, route := range routes {
		rec, _ := env.do(t, route.method, route.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)

		rec, _ = env.do(t, route.method, route.path, nil, "garbage")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)

		rec, _ = env.do(t, route.method, route.path, nil, adminToken)
		assert.Equal(t, http.StatusForbidden, rec.Code, route.path)
	}
}

func TestListAdmins_Cache(t *testing.T) {
	env := newTestEnv(t)
	token := env.superAdminToken(t)
	target := env.seedAdmin(t, "nurse_lin", "password", models.RoleAdmin, models.AdminStatusActive)

	rec, resp := env.do(t, http.MethodGet, "/api/admin/list", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp["fromCache"])
	assert.Len(t, resp["data"], 2)

	rec, resp = env.do(t, http.MethodGet, "/api/admin/list", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["fromCache"])
	assert.Equal(t, 1, env.admins.listCalls)

	rec, _ = env.do(t, http.MethodPut, "/api/admin/update",
		UpdateAdminRequest{ID: target.ID.Hex(), Status: models.AdminStatusBlocked}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/admin/list", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp["fromCache"])

	rec, _ = env.do(t, http.MethodPost, "/api/admin/clear-cache", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	_, cached := env.cache.Get(t.Context())
	assert.False(t, cached)
}

func TestListAdmins_HidesSecrets(t *testing.T) {
	env := newTestEnv(t)
	token := env.superAdminToken(t)
	env.pendingAdmin(t)

	rec, _ := env.do(t, http.MethodGet, "/api/admin/list", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "verificationToken")
}

func TestUpdateAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.superAdminToken(t)
	target := env.seedAdmin(t, "nurse_lin", "password", models.RoleAdmin, models.AdminStatusPending)

	rec, _ := env.do(t, http.MethodPut, "/api/admin/update", UpdateAdminRequest{ID: target.ID.Hex(), Status: "retired"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/admin/update", UpdateAdminRequest{ID: target.ID.Hex(), Phone: "12"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/admin/update", UpdateAdminRequest{ID: "64b7f0c2e4b0a1a2b3c4d5e6"}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp := env.do(t, http.MethodPut, "/api/admin/update",
		UpdateAdminRequest{ID: target.ID.Hex(), Organization: "New Clinic", Status: models.AdminStatusActive}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "New Clinic", data["organization"])
	assert.Equal(t, models.AdminStatusActive, data["status"])
	assert.Equal(t, target.Name, data["name"])
	assert.Equal(t, target.Phone, data["phone"])
}

func TestUpdateAndDeleteAdmin_ProtectSuperAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.superAdminToken(t)
	sa, err := env.admins.FindByUsername(t.Context(), "root0")
	require.NoError(t, err)

	rec, _ := env.do(t, http.MethodPut, "/api/admin/update", UpdateAdminRequest{ID: sa.ID.Hex(), Status: models.AdminStatusBlocked}, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/admin/"+sa.ID.Hex(), nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	stored, err := env.admins.FindByID(t.Context(), sa.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.AdminStatusActive, stored.Status)
}

func TestDeleteAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.superAdminToken(t)
	target := env.seedAdmin(t, "nurse_lin", "password", models.RoleAdmin, models.AdminStatusActive)
	env.cache.Set(t.Context(), []models.Admin{*target})

	rec, _ := env.do(t, http.MethodDelete, "/api/admin/"+target.ID.Hex(), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.admins.FindByID(t.Context(), target.ID.Hex())
	assert.Error(t, err)
	_, cached := env.cache.Get(t.Context())
	assert.False(t, cached)

	rec, _ = env.do(t, http.MethodDelete, "/api/admin/"+target.ID.Hex(), nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
