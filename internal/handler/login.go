package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"imagetag/internal/dto"
	"imagetag/internal/logger"
	"imagetag/internal/middleware"
	"imagetag/internal/model"
	"imagetag/internal/service/auth"
)

// AuthService registers accounts and issues session tokens.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	IssueToken(user *model.User) (string, error)
	TTLSeconds() int
}

// SignupHandler handles POST /auth/signup and logs the new user in.
func SignupHandler(logger *logger.Logger, svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.SignupRequest
		err := decodeForm(w, r, &req, func() {
			req.Username = r.PostFormValue("username")
			req.Email = r.PostFormValue("email")
			req.Password = r.PostFormValue("password")
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}

		user, err := svc.Register(r.Context(), req.Username, req.Email, req.Password)
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			logger.Error("Signup failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		token, err := svc.IssueToken(user)
		if err != nil {
			logger.Error("Failed to issue session for user %d: %v", user.ID, err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		setSession(w, token, svc.TTLSeconds())
		writeJSON(w, http.StatusCreated, user)
	}
}

// LoginHandler handles POST /auth/login by validating credentials and issuing a session cookie.
func LoginHandler(logger *logger.Logger, svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		err := decodeForm(w, r, &req, func() {
			req.Email = r.PostFormValue("email")
			req.Password = r.PostFormValue("password")
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}

		token, user, err := svc.Login(r.Context(), req.Email, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Warning("Failed login for %q from %s", req.Email, middleware.ClientIP(r))
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if err != nil {
			logger.Error("Login failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("User %d logged in", user.ID)
		setSession(w, token, svc.TTLSeconds())
		http.Redirect(w, r, GalleryPath, http.StatusSeeOther)
	}
}

// LogoutHandler clears the session cookie and redirects to the gallery.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   middleware.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, GalleryPath, http.StatusSeeOther)
}

func setSession(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// decodeForm decodes a JSON body into dst, or parses the form and lets fromForm copy its fields.
func decodeForm(w http.ResponseWriter, r *http.Request, dst interface{}, fromForm func()) error {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return json.NewDecoder(r.Body).Decode(dst)
	}

	if err := r.ParseForm(); err != nil {
		return err
	}
	fromForm()
	return nil
}
