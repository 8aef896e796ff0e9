package app

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"imagetag/internal/config"
)

type listing struct {
	Images []struct {
		ID   int64    `json:"id"`
		Tags []string `json:"tags"`
	} `json:"images"`
	Notices []string `json:"notices"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Port:            8080,
		SecretKey:       "test-secret",
		DatabasePath:    filepath.Join(dir, "data", "test.db"),
		ImageDirectory:  filepath.Join(dir, "images"),
		ModelPath:       filepath.Join(dir, "missing.pb"),
		ConfigPath:      filepath.Join(dir, "missing.pbtxt"),
		LogDirectory:    filepath.Join(dir, "logs"),
		MaxUploadSizeMB: 1,
		SessionTTLHours: 1,
	}

	application, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	t.Cleanup(func() { application.Close() })

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New failed: %v", err)
	}
	return &http.Client{Jar: jar}
}

func decodeListing(t *testing.T, resp *http.Response) listing {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected listing with 200, got %d", resp.StatusCode)
	}
	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	return l
}

func post(t *testing.T, client *http.Client, url string) listing {
	t.Helper()

	resp, err := client.Post(url, "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return decodeListing(t, resp)
}

func TestApp_GalleryFlow(t *testing.T) {
	server := newTestServer(t)
	client := newClient(t)

	resp, err := client.Post(server.URL+"/auth/signup", "application/json",
		strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"pw"}`))
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 from signup, got %d", resp.StatusCode)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("image", "photo.png")
	part.Write([]byte("not really a png"))
	writer.Close()

	resp, err = client.Post(server.URL+"/api/images", writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	l := decodeListing(t, resp)
	if len(l.Images) != 1 || !reflect.DeepEqual(l.Notices, []string{"Uploaded image 1."}) {
		t.Fatalf("Unexpected listing after upload: %+v", l)
	}

	l = post(t, client, server.URL+"/api/images/1/detect")
	if !reflect.DeepEqual(l.Notices, []string{"Object detection failed."}) {
		t.Errorf("Expected detection failure notice, got %v", l.Notices)
	}
	if len(l.Images[0].Tags) != 0 {
		t.Errorf("Failed detection must not add tags, got %v", l.Images[0].Tags)
	}

	l = post(t, client, server.URL+"/api/images/99/detect")
	if !reflect.DeepEqual(l.Notices, []string{"Target image not found."}) {
		t.Errorf("Expected not-found notice, got %v", l.Notices)
	}

	l = post(t, client, server.URL+"/api/images/1/delete")
	if len(l.Images) != 0 || !reflect.DeepEqual(l.Notices, []string{"Image deleted."}) {
		t.Errorf("Unexpected listing after delete: %+v", l)
	}

	resp, err = client.Get(server.URL + "/api/images")
	if err != nil {
		t.Fatalf("Listing failed: %v", err)
	}
	if l := decodeListing(t, resp); len(l.Notices) != 0 {
		t.Errorf("Notices should be shown once, got %v", l.Notices)
	}
}

func TestApp_AnonymousWritesRejected(t *testing.T) {
	server := newTestServer(t)
	client := newClient(t)

	for _, path := range []string{"/api/images", "/api/images/1/detect", "/api/images/1/delete", "/logs/info/clear"} {
		resp, err := client.Post(server.URL+path, "application/x-www-form-urlencoded", nil)
		if err != nil {
			t.Fatalf("POST %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("POST %s: expected 401, got %d", path, resp.StatusCode)
		}
	}

	resp, err := client.Get(server.URL + "/api/images")
	if err != nil {
		t.Fatalf("Listing failed: %v", err)
	}
	if l := decodeListing(t, resp); len(l.Images) != 0 {
		t.Errorf("Expected empty gallery, got %+v", l)
	}
}
