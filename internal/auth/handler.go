package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Credentials is the single configured API account. Password is stored
// as a bcrypt hash.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Handler serves the login endpoint.
type Handler struct {
	tokens *TokenService
	creds  Credentials
	logger *zap.Logger
}

// NewHandler creates the auth handler.
func NewHandler(tokens *TokenService, creds Credentials, logger *zap.Logger) *Handler {
	return &Handler{tokens: tokens, creds: creds, logger: logger}
}

// RegisterRoutes mounts the auth routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login exchanges username/password for a signed access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.checkCredentials(req.Username, req.Password) {
		h.logger.Warn("login failed", zap.String("username", req.Username))
		writeAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.IssueAccessToken(req.Username)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		writeAuthError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokens.AccessTokenTTL() / time.Second),
	})
}

func (h *Handler) checkCredentials(username, password string) bool {
	// Constant-time username compare; bcrypt compare is constant-time
	// by construction.
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.creds.Username)) == 1
	passOK := CheckPassword(h.creds.PasswordHash, password)
	return userOK && passOK
}

// HashPassword creates a bcrypt hash of the given password.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAuthError writes an RFC 7807 problem response.
func writeAuthError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://opsight.dev/problems/auth-error",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
