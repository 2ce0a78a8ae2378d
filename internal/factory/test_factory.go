package factory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mcoot/allfence/internal/config"
	"github.com/mcoot/allfence/internal/dependencies/mocks"
	"github.com/mcoot/allfence/internal/services/export"
	"github.com/mcoot/allfence/internal/storage/memory"
	"github.com/mcoot/allfence/internal/testutil"
)

const (
	TestAdminUsername = "admin"
	TestAdminPassword = "test-password"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock    *mocks.MockClock
	MockRandom   *mocks.MockRandom
	MockUploader *MemoryUploader
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Rate limiting is off unless an option turns it back on.
func NewTestApp(opts ...func(*config.Config)) *TestApp {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AdminUsername = TestAdminUsername
	cfg.Auth.AdminPassword = TestAdminPassword
	cfg.RateLimit.Enabled = false
	cfg.Ranking.AllowReset = true
	cfg.Ranking.VerifyWorkers = 2
	for _, opt := range opts {
		opt(cfg)
	}

	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	uploader := NewMemoryUploader()

	app, err := newWithDependencies(store, mockClock, mockRandom, uploader, cfg, testutil.NopLogger())
	if err != nil {
		panic(fmt.Sprintf("failed to build test app: %v", err))
	}

	return &TestApp{
		App:          app,
		MockClock:    mockClock,
		MockRandom:   mockRandom,
		MockUploader: uploader,
	}
}

// AdminToken bootstraps the test admin and returns a session token for it
func (t *TestApp) AdminToken(ctx context.Context) (string, error) {
	if err := t.Bootstrap(ctx); err != nil {
		return "", err
	}
	session, err := t.AuthService.Login(ctx, TestAdminUsername, TestAdminPassword)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

// MemoryUploader keeps uploaded snapshots in memory
type MemoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryUploader creates an empty MemoryUploader
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{objects: make(map[string][]byte)}
}

// Upload stores body under key
func (u *MemoryUploader) Upload(ctx context.Context, key string, contentType string, body io.Reader) (*export.UploadResult, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = data
	return &export.UploadResult{Key: key, Location: "memory://" + key}, nil
}

// Object returns the stored bytes for key
func (u *MemoryUploader) Object(key string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.objects[key]
	return bytes.Clone(data), ok
}

// Len returns the number of stored snapshots
func (u *MemoryUploader) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}
