package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const (
	noticeCookie = "notices"
	// GalleryPath is where state-changing endpoints send the browser afterwards.
	GalleryPath = "/api/images"
)

// readNotices decodes the pending notices carried by the request.
func readNotices(r *http.Request) []string {
	cookie, err := r.Cookie(noticeCookie)
	if err != nil {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var notices []string
	if err := json.Unmarshal(raw, &notices); err != nil {
		return nil
	}
	return notices
}

// redirectWithNotice queues message for the next gallery listing and redirects there.
func redirectWithNotice(w http.ResponseWriter, r *http.Request, message string) {
	notices := append(readNotices(r), message)
	raw, _ := json.Marshal(notices)

	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, GalleryPath, http.StatusSeeOther)
}

// drainNotices returns the pending notices and clears them.
func drainNotices(w http.ResponseWriter, r *http.Request) []string {
	notices := readNotices(r)
	if _, err := r.Cookie(noticeCookie); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:   noticeCookie,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
	}
	if notices == nil {
		notices = []string{}
	}
	return notices
}
