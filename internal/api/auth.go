package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	sessionCookie = "workschedule-session"
	sessionTTL    = 24 * time.Hour
)

// Paths reachable without a session.
var publicPaths = map[string]bool{
	"/api/login":        true,
	"/api/logout":       true,
	"/api/openapi.yaml": true,
}

// Auth guards the API with an HMAC-signed session cookie obtained from
// POST /api/login. A nil Auth, or one without both credentials, disables it.
type Auth struct {
	User     string
	Password string

	// Now defaults to time.Now.
	Now func() time.Time
}

// AuthFromEnv reads WORKSCHEDULE_AUTH_USER and WORKSCHEDULE_AUTH_PASSWORD.
func AuthFromEnv() *Auth {
	return &Auth{
		User:     os.Getenv("WORKSCHEDULE_AUTH_USER"),
		Password: os.Getenv("WORKSCHEDULE_AUTH_PASSWORD"),
	}
}

// Enabled reports whether requests must carry a session.
func (a *Auth) Enabled() bool {
	return a != nil && a.User != "" && a.Password != ""
}

func (a *Auth) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// Middleware rejects API requests without a valid session cookie.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() || publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(sessionCookie)
		if err != nil || !a.validSession(cookie.Value) {
			writeJSONStatus(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleLogin processes POST /api/login requests.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !a.Enabled() {
		writeJSON(w, map[string]string{"status": "ok"})
		return
	}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !a.checkCredentials(creds.Username, creds.Password) {
		writeJSONStatus(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    a.newSession(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleLogout clears the session cookie.
func (a *Auth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, map[string]string{"status": "ok"})
}

// checkCredentials compares both fields in constant time.
func (a *Auth) checkCredentials(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.User))
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.Password))
	return userOK&passwordOK == 1
}

func (a *Auth) sign(ts string) string {
	mac := hmac.New(sha256.New, []byte(a.Password+"-workschedule-hmac-key"))
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}

// newSession returns "<unix seconds>.<hex hmac>".
func (a *Auth) newSession() string {
	ts := strconv.FormatInt(a.now().Unix(), 10)
	return ts + "." + a.sign(ts)
}

func (a *Auth) validSession(token string) bool {
	ts, sig, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}

	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if a.now().Sub(time.Unix(issued, 0)) > sessionTTL {
		return false
	}

	return hmac.Equal([]byte(sig), []byte(a.sign(ts)))
}
