package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Praetorius/core/auth"
	"Praetorius/model"
	"Praetorius/server"
)

type stubUserRepo struct {
	user *model.User
}

func (r *stubUserRepo) CreateUser(user *model.User) (int64, error) { return 0, nil }
func (r *stubUserRepo) GetUserByID(id int64) (*model.User, error)  { return nil, nil }
func (r *stubUserRepo) UpdatePassword(userID int64, passwordHash string) error {
	return nil
}

func (r *stubUserRepo) GetUserByUsername(username string) (*model.User, error) {
	if r.user != nil && r.user.Username == username {
		return r.user, nil
	}
	return nil, nil
}

func loginRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
}

func TestLoginWithoutDatabaseReportsUnavailable(t *testing.T) {
	h := server.NewAPIHandler(nil, nil, nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	h.LoginHandler(rec, loginRequest(`{"username":"admin","password":"secret"}`))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("login with nil user repo returned %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestLoginValidatesCredentials(t *testing.T) {
	auth.SetJWTSecret("test-secret")
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	repo := &stubUserRepo{user: &model.User{ID: 1, Username: "admin", PasswordHash: hash}}
	h := server.NewAPIHandler(nil, nil, nil, nil, repo, nil)

	rec := httptest.NewRecorder()
	h.LoginHandler(rec, loginRequest(`{"username":"admin","password":"correct horse"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("valid login returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	claims, err := auth.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Username != "admin" || resp.User.Username != "admin" {
		t.Fatalf("token/user mismatch: claims=%+v user=%+v", claims, resp.User)
	}

	rec = httptest.NewRecorder()
	h.LoginHandler(rec, loginRequest(`{"username":"admin","password":"wrong"}`))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password returned %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = httptest.NewRecorder()
	h.LoginHandler(rec, loginRequest(`{"username":"nobody","password":"x"}`))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user returned %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	repo := &stubUserRepo{}
	h := server.NewAPIHandler(nil, nil, nil, nil, repo, nil)

	rec := httptest.NewRecorder()
	h.LoginHandler(rec, loginRequest(`{broken`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body returned %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = httptest.NewRecorder()
	h.LoginHandler(rec, loginRequest(`{"username":"admin"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password returned %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
