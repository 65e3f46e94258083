package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledgersync/internal/domain/user"
	"ledgersync/internal/shared/auth"
	"ledgersync/internal/shared/middleware"
)

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

func TestHandleRegister(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		registerErr    error
		expectedStatus int
	}{
		{"Success", `{"username":"alice","password":"correct horse"}`, nil, http.StatusCreated},
		{"Taken", `{"username":"alice","password":"correct horse"}`, user.ErrUsernameTaken, http.StatusConflict},
		{"Invalid", `{"username":"","password":"x"}`, user.ErrInvalidInput, http.StatusBadRequest},
		{"Malformed", `{`, nil, http.StatusBadRequest},
	}

	jwt := auth.NewJWT("test-secret")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &MockUserService{
				RegisterFunc: func(ctx context.Context, p user.RegisterParams) (*user.User, error) {
					if tt.registerErr != nil {
						return nil, tt.registerErr
					}
					return &user.User{ID: "user-1", Username: p.Username}, nil
				},
			}
			handler := NewAuthHandler(users, jwt)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			handler.HandleRegister(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}

			cookie := sessionCookie(rr)
			if tt.expectedStatus == http.StatusCreated {
				if cookie == nil {
					t.Fatal("expected session cookie")
				}
				claims, err := jwt.Validate(cookie.Value)
				if err != nil || claims.UserID != "user-1" {
					t.Errorf("cookie token invalid: %v %+v", err, claims)
				}
			} else if cookie != nil {
				t.Error("no session cookie expected on failure")
			}
		})
	}
}

func TestHandleLogin(t *testing.T) {
	users := &MockUserService{
		AuthenticateFunc: func(ctx context.Context, username, password string) (*user.User, error) {
			if username == "alice" && password == "correct horse" {
				return &user.User{ID: "user-1", Username: "alice"}, nil
			}
			return nil, user.ErrInvalidCredentials
		},
	}
	handler := NewAuthHandler(users, auth.NewJWT("test-secret"))

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"Success", `{"username":"alice","password":"correct horse"}`, http.StatusOK},
		{"Wrong Password", `{"username":"alice","password":"nope"}`, http.StatusUnauthorized},
		{"Missing Fields", `{"username":"alice"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			handler.HandleLogin(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandleLogout(t *testing.T) {
	handler := NewAuthHandler(&MockUserService{}, auth.NewJWT("test-secret"))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rr := httptest.NewRecorder()
	handler.HandleLogout(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	cookie := sessionCookie(rr)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Errorf("expected expired session cookie, got %+v", cookie)
	}
}
