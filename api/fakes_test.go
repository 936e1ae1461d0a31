package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/raushankrgupta/gait-speed-service/cache"
	"github.com/raushankrgupta/gait-speed-service/emails"
	"github.com/raushankrgupta/gait-speed-service/models"
	"github.com/raushankrgupta/gait-speed-service/store"
	"github.com/raushankrgupta/gait-speed-service/utils"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*models.User{}}
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Username]; ok {
		return store.ErrDuplicate
	}
	user.ID = primitive.NewObjectID()
	stored := *user
	f.users[user.Username] = &stored
	return nil
}

func (f *fakeUserStore) get(username string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil
	}
	c := *u
	return &c
}

func (f *fakeUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u := f.get(username); u != nil {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) find(match func(u *models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return f.find(func(u *models.User) bool {
		return u.EmailVerificationToken == token && u.EmailVerificationExpires != nil && u.EmailVerificationExpires.After(now)
	})
}

func (f *fakeUserStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return f.find(func(u *models.User) bool {
		return u.ResetPasswordToken == token && u.ResetPasswordExpires != nil && u.ResetPasswordExpires.After(now)
	})
}

func (f *fakeUserStore) mutate(username string, fn func(u *models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return store.ErrNotFound
	}
	fn(u)
	return nil
}

func (f *fakeUserStore) MarkEmailVerified(ctx context.Context, username string) error {
	return f.mutate(username, func(u *models.User) {
		u.IsEmailVerified = true
		u.EmailVerificationToken = ""
		u.EmailVerificationExpires = nil
	})
}

func (f *fakeUserStore) SetResetToken(ctx context.Context, username, token string, expires time.Time) error {
	return f.mutate(username, func(u *models.User) {
		u.ResetPasswordToken = token
		u.ResetPasswordExpires = &expires
	})
}

func (f *fakeUserStore) ResetPassword(ctx context.Context, username, passwordHash string) error {
	return f.mutate(username, func(u *models.User) {
		u.Password = passwordHash
		u.ResetPasswordToken = ""
		u.ResetPasswordExpires = nil
	})
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, username string, update models.ProfileUpdate) (*models.User, error) {
	err := f.mutate(username, func(u *models.User) {
		apply := func(dst *string, src *string) {
			if src != nil {
				*dst = *src
			}
		}
		apply(&u.Name, update.Name)
		apply(&u.Birthdate, update.Birthdate)
		apply(&u.Gender, update.Gender)
		apply(&u.Phone, update.Phone)
		apply(&u.Email, update.Email)
		apply(&u.Organization, update.Organization)
		apply(&u.Avatar, update.Avatar)
	})
	if err != nil {
		return nil, err
	}
	return f.get(username), nil
}

func (f *fakeUserStore) List(ctx context.Context) ([]models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profiles := []models.UserProfile{}
	for _, u := range f.users {
		profiles = append(profiles, u.Profile())
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

func (f *fakeUserStore) Delete(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, username)
	return nil
}

type fakeAdminStore struct {
	mu        sync.Mutex
	admins    map[string]*models.Admin
	listCalls int
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{admins: map[string]*models.Admin{}}
}

func (f *fakeAdminStore) Create(ctx context.Context, admin *models.Admin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.admins {
		if a.Username == admin.Username {
			return store.ErrDuplicate
		}
	}
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	stored := *admin
	f.admins[admin.ID.Hex()] = &stored
	return nil
}

func (f *fakeAdminStore) find(match func(a *models.Admin) bool) (*models.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.admins {
		if match(a) {
			c := *a
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeAdminStore) FindByUsername(ctx context.Context, username string) (*models.Admin, error) {
	return f.find(func(a *models.Admin) bool { return a.Username == username })
}

func (f *fakeAdminStore) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	return f.find(func(a *models.Admin) bool { return a.ID.Hex() == id })
}

func (f *fakeAdminStore) FindByVerificationToken(ctx context.Context, username, token string, now time.Time) (*models.Admin, error) {
	return f.find(func(a *models.Admin) bool {
		return a.Username == username && a.VerificationToken == token && a.TokenExpires != nil && a.TokenExpires.After(now)
	})
}

func (f *fakeAdminStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*models.Admin, error) {
	return f.find(func(a *models.Admin) bool {
		return a.ResetPasswordToken == token && a.ResetPasswordExpires != nil && a.ResetPasswordExpires.After(now)
	})
}

func (f *fakeAdminStore) mutate(id string, fn func(a *models.Admin)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.admins[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(a)
	return nil
}

func (f *fakeAdminStore) Activate(ctx context.Context, id string) error {
	return f.mutate(id, func(a *models.Admin) {
		a.IsVerified = true
		a.Status = models.AdminStatusActive
		a.FirstLogin = false
		a.VerificationToken = ""
		a.TokenExpires = nil
	})
}

func (f *fakeAdminStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return f.mutate(id, func(a *models.Admin) { a.LastLogin = &at })
}

func (f *fakeAdminStore) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	return f.mutate(id, func(a *models.Admin) {
		a.ResetPasswordToken = token
		a.ResetPasswordExpires = &expires
	})
}

func (f *fakeAdminStore) ResetPassword(ctx context.Context, id, passwordHash string) error {
	return f.mutate(id, func(a *models.Admin) {
		a.Password = passwordHash
		a.ResetPasswordToken = ""
		a.ResetPasswordExpires = nil
	})
}

func (f *fakeAdminStore) Update(ctx context.Context, id string, update models.AdminUpdate) (*models.Admin, error) {
	err := f.mutate(id, func(a *models.Admin) {
		a.Name = update.Name
		a.Organization = update.Organization
		a.Phone = update.Phone
		a.Email = update.Email
		a.Status = update.Status
	})
	if err != nil {
		return nil, err
	}
	return f.FindByID(ctx, id)
}

func (f *fakeAdminStore) List(ctx context.Context) ([]models.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	admins := []models.Admin{}
	for _, a := range f.admins {
		admins = append(admins, *a)
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].CreatedAt.After(admins[j].CreatedAt) })
	return admins, nil
}

func (f *fakeAdminStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.admins[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.admins, id)
	return nil
}

func (f *fakeAdminStore) UpsertSuperAdmin(ctx context.Context, admin *models.Admin) (*models.Admin, error) {
	existing, err := f.find(func(a *models.Admin) bool { return a.Role == models.RoleSuperAdmin })
	if err == nil {
		admin.ID = existing.ID
		f.mu.Lock()
		stored := *admin
		f.admins[admin.ID.Hex()] = &stored
		f.mu.Unlock()
		return &stored, nil
	}
	if err := f.Create(ctx, admin); err != nil {
		return nil, err
	}
	return f.FindByID(ctx, admin.ID.Hex())
}

type fakeGaitSpeedStore struct {
	mu      sync.Mutex
	records []models.GaitSpeedRecord
}

func (f *fakeGaitSpeedStore) Add(ctx context.Context, record *models.GaitSpeedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record.ID = primitive.NewObjectID()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeGaitSpeedStore) byUser(username string) []models.GaitSpeedRecord {
	var out []models.GaitSpeedRecord
	for _, r := range f.records {
		if r.Username == username {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (f *fakeGaitSpeedStore) ListByUsername(ctx context.Context, username string, skip, limit int64) ([]models.GaitSpeedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.byUser(username)
	if skip >= int64(len(out)) {
		return []models.GaitSpeedRecord{}, nil
	}
	out = out[skip:]
	if limit > 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeGaitSpeedStore) CountByUsername(ctx context.Context, username string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byUser(username))), nil
}

func (f *fakeGaitSpeedStore) Speeds(ctx context.Context, username string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var speeds []float64
	for _, r := range f.records {
		if username == "" || r.Username == username {
			speeds = append(speeds, r.Speed)
		}
	}
	return speeds, nil
}

// fakeMailer records sends. err, when set, fails every send.
type fakeMailer struct {
	mu           sync.Mutex
	err          error
	sent         []string
	tokens       map[string]string
	applications []emails.AdminApplication
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{tokens: map[string]string{}}
}

func (m *fakeMailer) record(kind, toEmail, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, kind+":"+toEmail)
	if token != "" {
		m.tokens[kind+":"+toEmail] = token
	}
	return m.err
}

func (m *fakeMailer) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	return m.record("verification", toEmail, token)
}

func (m *fakeMailer) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	return m.record("welcome", toEmail, "")
}

func (m *fakeMailer) SendResetPasswordEmail(ctx context.Context, toEmail, name, token string) error {
	return m.record("reset", toEmail, token)
}

func (m *fakeMailer) SendAdminResetPasswordEmail(ctx context.Context, toEmail, name, token string) error {
	return m.record("admin-reset", toEmail, token)
}

func (m *fakeMailer) SendPasswordChangedEmail(ctx context.Context, toEmail, name string) error {
	return m.record("password-changed", toEmail, "")
}

func (m *fakeMailer) SendAdminRegistrationEmails(ctx context.Context, app emails.AdminApplication) error {
	m.mu.Lock()
	m.applications = append(m.applications, app)
	m.mu.Unlock()
	return m.record("admin-registration", app.Email, app.Token)
}

func (m *fakeMailer) sentKinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjectStorage) Upload(ctx context.Context, file io.Reader, objectKey string, contentType string) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[objectKey] = data
	return objectKey, nil
}

func (f *fakeObjectStorage) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	return "https://bucket.example.com/" + objectKey + "?signed=1", nil
}

type testEnv struct {
	server  *Server
	handler http.Handler
	users   *fakeUserStore
	admins  *fakeAdminStore
	speeds  *fakeGaitSpeedStore
	mailer  *fakeMailer
	cache   *cache.MemoryAdminListCache
	storage *fakeObjectStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:   newFakeUserStore(),
		admins:  newFakeAdminStore(),
		speeds:  &fakeGaitSpeedStore{},
		mailer:  newFakeMailer(),
		cache:   cache.NewMemoryAdminListCache(time.Minute),
		storage: &fakeObjectStorage{},
	}
	env.server = NewServer(Options{
		Users:        env.users,
		Admins:       env.admins,
		Speeds:       env.speeds,
		Mailer:       env.mailer,
		AdminCache:   env.cache,
		Avatars:      env.storage,
		JWTSecret:    testSecret,
		JWTExpiresIn: time.Hour,
		BcryptCost:   bcrypt.MinCost,
		Now:          func() time.Time { return testNow },
	})
	env.handler = env.server.Handler()
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var resp map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func hashForTest(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

// seedUser stores a verified user with the given password.
func (env *testEnv) seedUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	user := &models.User{
		Username:        username,
		Name:            "Patient " + username,
		Email:           username + "@example.com",
		Phone:           "0912345678",
		Birthdate:       "1950-01-01",
		Password:        hashForTest(t, password),
		IsEmailVerified: true,
	}
	require.NoError(t, env.users.Create(context.Background(), user))
	return user
}

func (env *testEnv) seedAdmin(t *testing.T, username, password, role, status string) *models.Admin {
	t.Helper()
	admin := &models.Admin{
		Username:     username,
		Name:         "Admin " + username,
		Organization: "Clinic",
		Phone:        "0911111111",
		Email:        username + "@clinic.example.com",
		Password:     hashForTest(t, password),
		Role:         role,
		Status:       status,
		IsVerified:   status == models.AdminStatusActive,
		CreatedAt:    testNow,
	}
	require.NoError(t, env.admins.Create(context.Background(), admin))
	return admin
}

func sessionToken(t *testing.T, id, username, role string) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, id, username, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (env *testEnv) superAdminToken(t *testing.T) string {
	t.Helper()
	sa := env.seedAdmin(t, fmt.Sprintf("root%d", len(env.admins.admins)), "rootpass", models.RoleSuperAdmin, models.AdminStatusActive)
	return sessionToken(t, sa.ID.Hex(), sa.Username, models.RoleSuperAdmin)
}
