package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"imagetag/internal/config"
	"imagetag/internal/dto"
	"imagetag/internal/logger"
	"imagetag/internal/middleware"
	"imagetag/internal/repository/sqlite"
	"imagetag/internal/service/auth"
	"imagetag/internal/service/gallery"
	"imagetag/internal/service/storage"
)

// ========================================
// Test Setup Helpers
// ========================================

type stubEngine struct {
	detections []dto.RawDetection
}

func (e *stubEngine) Detect(img []byte) (*dto.Inference, error) {
	return &dto.Inference{Width: 100, Height: 100, Detections: e.detections}, nil
}

func (e *stubEngine) Annotate(img []byte, detections []dto.DetectionResult, thickness int) ([]byte, error) {
	return img, nil
}

type testEnv struct {
	cfg     *config.Config
	logger  *logger.Logger
	db      *sqlite.DB
	files   *storage.FileStore
	engine  *stubEngine
	gallery *gallery.Service
	auth    *auth.Service
	userID  int64
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		SecretKey:       "test-secret",
		SessionTTLHours: 1,
		ImageDirectory:  filepath.Join(dir, "images"),
		LogDirectory:    filepath.Join(dir, "logs"),
		MaxUploadSizeMB: 1,
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := storage.NewFileStore(cfg)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	authService := auth.NewService(cfg, log, db.Users())
	user, err := authService.Register(context.Background(), "alice", "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	engine := &stubEngine{}
	return &testEnv{
		cfg:     cfg,
		logger:  log,
		db:      db,
		files:   files,
		engine:  engine,
		gallery: gallery.NewService(cfg, log, db, files, engine, gallery.DefaultLabels(), nil),
		auth:    authService,
		userID:  user.ID,
	}
}

func (e *testEnv) asUser(req *http.Request) *http.Request {
	p := &auth.Principal{UserID: e.userID, Username: "alice"}
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

func (e *testEnv) uploadDirect(t *testing.T) int64 {
	t.Helper()

	img, err := e.gallery.Upload(context.Background(), e.userID, "a.png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	return img.ID
}

// noticesOf returns the notices a redirect response queued.
func noticesOf(t *testing.T, rr *httptest.ResponseRecorder) []string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, GalleryPath, nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	return readNotices(req)
}

func expectRedirectNotice(t *testing.T, rr *httptest.ResponseRecorder, notice string) {
	t.Helper()

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != GalleryPath {
		t.Errorf("Expected redirect to %s, got %s", GalleryPath, loc)
	}
	if got := noticesOf(t, rr); !reflect.DeepEqual(got, []string{notice}) {
		t.Errorf("Expected notice %q, got %v", notice, got)
	}
}

// ========================================
// Notice Tests
// ========================================

func TestNotices_AccumulateAndDrain(t *testing.T) {
	first := httptest.NewRecorder()
	redirectWithNotice(first, httptest.NewRequest(http.MethodPost, "/x", nil), "one")

	req := httptest.NewRequest(http.MethodPost, "/y", nil)
	for _, c := range first.Result().Cookies() {
		req.AddCookie(c)
	}
	second := httptest.NewRecorder()
	redirectWithNotice(second, req, "two")

	if got := noticesOf(t, second); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Fatalf("Expected [one two], got %v", got)
	}

	listing := httptest.NewRequest(http.MethodGet, GalleryPath, nil)
	for _, c := range second.Result().Cookies() {
		listing.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	drained := drainNotices(rr, listing)

	if !reflect.DeepEqual(drained, []string{"one", "two"}) {
		t.Errorf("Expected drained [one two], got %v", drained)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("Expected the notice cookie to be cleared, got %+v", cookies)
	}
}

func TestNotices_IgnoresGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, GalleryPath, nil)
	req.AddCookie(&http.Cookie{Name: noticeCookie, Value: "%%%"})

	if got := drainNotices(httptest.NewRecorder(), req); len(got) != 0 {
		t.Errorf("Expected no notices, got %v", got)
	}
}

// ========================================
// Gallery Handler Tests
// ========================================

func TestGetImagesHandler(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	i := env.uploadDirect(t)
	j := env.uploadDirect(t)
	env.db.Tags().InsertBatch(ctx, i, []string{"cat", "dog"})
	env.db.Tags().InsertBatch(ctx, j, []string{"car"})

	tests := []struct {
		search   string
		expected []int64
	}{
		{"", []int64{i, j}},
		{"ca", []int64{i, j}},
		{"dog", []int64{i}},
		{"zebra", []int64{}},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/images?search="+tt.search, nil)
		rr := httptest.NewRecorder()

		GetImagesHandler(env.gallery)(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rr.Code)
		}

		var data struct {
			Images []struct {
				ID       int64    `json:"id"`
				Username string   `json:"username"`
				URL      string   `json:"url"`
				Tags     []string `json:"tags"`
			} `json:"images"`
			Search  string   `json:"search"`
			Notices []string `json:"notices"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&data); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}

		got := []int64{}
		for _, img := range data.Images {
			got = append(got, img.ID)
			if img.Username != "alice" || !strings.HasPrefix(img.URL, "/images/") || img.Tags == nil {
				t.Errorf("Unexpected image entry %+v", img)
			}
		}
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("search=%q: expected %v, got %v", tt.search, tt.expected, got)
		}
		if data.Search != tt.search || data.Notices == nil {
			t.Errorf("Unexpected envelope: search=%q notices=%v", data.Search, data.Notices)
		}
	}
}

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(content)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadImageHandler(t *testing.T) {
	env := setupEnv(t)
	handler := UploadImageHandler(env.cfg, env.logger, env.gallery)

	rr := httptest.NewRecorder()
	handler(rr, env.asUser(multipartUpload(t, "photo.png", []byte("png-bytes"))))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303, got %d", rr.Code)
	}
	if count, _ := env.db.Images().Count(context.Background()); count != 1 {
		t.Errorf("Expected 1 image, got %d", count)
	}

	rr = httptest.NewRecorder()
	handler(rr, env.asUser(multipartUpload(t, "anim.gif", []byte("gif"))))
	expectRedirectNotice(t, rr, "Only PNG and JPEG images are supported.")

	rr = httptest.NewRecorder()
	handler(rr, env.asUser(httptest.NewRequest(http.MethodPost, "/api/images", nil)))
	expectRedirectNotice(t, rr, "Please choose an image to upload.")

	if count, _ := env.db.Images().Count(context.Background()); count != 1 {
		t.Errorf("Rejected uploads should not be stored, have %d images", count)
	}
}

func TestDetectImageHandler(t *testing.T) {
	env := setupEnv(t)
	id := env.uploadDirect(t)
	env.engine.detections = []dto.RawDetection{
		{ClassID: 17, Confidence: 0.9},
		{ClassID: 18, Confidence: 0.8},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/images/x/detect", nil)
	req.SetPathValue("id", strconv.FormatInt(id, 10))
	rr := httptest.NewRecorder()

	DetectImageHandler(env.logger, env.gallery)(rr, env.asUser(req))

	expectRedirectNotice(t, rr, "Detected: cat, dog")
	img, _ := env.db.Images().GetByID(context.Background(), id)
	if !img.IsDetected {
		t.Error("Image should be detected")
	}
}

func TestDetectImageHandler_NotFound(t *testing.T) {
	env := setupEnv(t)
	id := env.uploadDirect(t)

	for _, pathID := range []string{"999", "abc", "-1"} {
		req := httptest.NewRequest(http.MethodPost, "/api/images/x/detect", nil)
		req.SetPathValue("id", pathID)
		rr := httptest.NewRecorder()

		DetectImageHandler(env.logger, env.gallery)(rr, env.asUser(req))

		expectRedirectNotice(t, rr, "Target image not found.")
	}

	img, _ := env.db.Images().GetByID(context.Background(), id)
	if img.IsDetected {
		t.Error("No image should change")
	}
}

func TestDeleteImageHandler(t *testing.T) {
	env := setupEnv(t)
	id := env.uploadDirect(t)
	handler := DeleteImageHandler(env.logger, env.gallery)

	req := httptest.NewRequest(http.MethodPost, "/api/images/x/delete", nil)
	req.SetPathValue("id", strconv.FormatInt(id, 10))
	rr := httptest.NewRecorder()
	handler(rr, env.asUser(req))
	expectRedirectNotice(t, rr, "Image deleted.")

	if img, _ := env.db.Images().GetByID(context.Background(), id); img != nil {
		t.Error("Image should be deleted")
	}

	rr = httptest.NewRecorder()
	handler(rr, env.asUser(req))
	expectRedirectNotice(t, rr, "Target image not found.")
}

func TestViewImageHandler(t *testing.T) {
	env := setupEnv(t)
	name, _ := env.files.Save([]byte("jpeg-bytes"), ".jpg")

	tests := []struct {
		filename string
		expected int
	}{
		{name, http.StatusOK},
		{"missing.jpg", http.StatusNotFound},
		{"..", http.StatusNotFound},
		{`..\secret`, http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/images/x", nil)
		req.SetPathValue("filename", tt.filename)
		rr := httptest.NewRecorder()

		ViewImageHandler(env.files)(rr, req)

		if rr.Code != tt.expected {
			t.Errorf("%q: expected %d, got %d", tt.filename, tt.expected, rr.Code)
		}
	}
}

// ========================================
// Auth Handler Tests
// ========================================

func TestSignupHandler(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"new account", `{"username":"bob","email":"bob@example.com","password":"pw"}`, http.StatusCreated},
		{"taken email", `{"username":"al","email":"alice@example.com","password":"pw"}`, http.StatusConflict},
		{"invalid email", `{"username":"eve","email":"nope","password":"pw"}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			SignupHandler(env.logger, env.auth)(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected %d, got %d: %s", tt.expected, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSignupHandler_FormFields(t *testing.T) {
	env := setupEnv(t)

	form := strings.NewReader("username=carol&email=carol%40example.com&password=pw")
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	SignupHandler(env.logger, env.auth)(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	user, err := env.db.Users().GetByEmail(context.Background(), "carol@example.com")
	if err != nil || user == nil {
		t.Fatalf("Expected carol to be registered: %v", err)
	}
	if user.Username != "carol" {
		t.Errorf("Expected username carol, got %q", user.Username)
	}
}

func TestLoginHandler(t *testing.T) {
	env := setupEnv(t)

	form := strings.NewReader("email=alice%40example.com&password=pw")
	req := httptest.NewRequest(http.MethodPost, "/auth/login", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	LoginHandler(env.logger, env.auth)(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303, got %d: %s", rr.Code, rr.Body.String())
	}

	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			session = c
		}
	}
	if session == nil || !session.HttpOnly {
		t.Fatalf("Expected an HttpOnly session cookie, got %+v", session)
	}
	if p, err := env.auth.ParseToken(session.Value); err != nil || p.UserID != env.userID {
		t.Errorf("Session token does not identify the user: %+v, %v", p, err)
	}
}

func TestLoginHandler_WrongPassword(t *testing.T) {
	env := setupEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	LoginHandler(env.logger, env.auth)(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rr.Code)
	}
}

func TestLogoutHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	LogoutHandler(rr, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middleware.SessionCookie || cookies[0].MaxAge >= 0 {
		t.Errorf("Expected session cookie to be cleared, got %+v", cookies)
	}
}

// ========================================
// Log Handler Tests
// ========================================

func TestLogsHandlers(t *testing.T) {
	env := setupEnv(t)
	env.logger.Info("marker line")

	req := httptest.NewRequest(http.MethodGet, "/logs/info", nil)
	req.SetPathValue("level", "info")
	rr := httptest.NewRecorder()
	ShowLogsHandler(env.logger)(rr, req)

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "marker line") {
		t.Fatalf("Expected info log with marker, got %d %q", rr.Code, rr.Body.String())
	}

	clear := httptest.NewRequest(http.MethodPost, "/logs/info/clear", nil)
	clear.SetPathValue("level", "info")
	rr = httptest.NewRecorder()
	ClearLogsHandler(env.logger)(rr, clear)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rr.Code)
	}

	bad := httptest.NewRequest(http.MethodGet, "/logs/debug", nil)
	bad.SetPathValue("level", "debug")
	rr = httptest.NewRecorder()
	ShowLogsHandler(env.logger)(rr, bad)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown level, got %d", rr.Code)
	}
}
