package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmeshcher/storefront/internal/model"
)

func issueCookie(t *testing.T, m *AuthMiddleware, userID int64, role model.Role) *http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	if err := m.SetAuthCookie(w, userID, role); err != nil {
		t.Fatalf("set auth cookie: %v", err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}
	return cookies[0]
}

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != 42 {
			t.Fatalf("user id from context = %d, want 42", id)
		}
		role, _ := GetRoleFromContext(r.Context())
		if role != model.RoleUser {
			t.Fatalf("role from context = %q, want %q", role, model.RoleUser)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(issueCookie(t, m, 42, model.RoleUser))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	token, err := m.issueToken(7, model.RoleAdmin)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var got int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetUserIDFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if got != 7 {
		t.Fatalf("user id from context = %d, want 7", got)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	expired := NewAuthMiddleware("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie"},
		{name: "garbage", cookie: &http.Cookie{Name: authCookieName, Value: "42.deadbeef"}},
		{name: "foreign signature", cookie: issueCookie(t, other, 42, model.RoleAdmin)},
		{name: "expired", cookie: issueCookie(t, expired, 42, model.RoleUser)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := m.Middleware(RequireAdmin(ok))

	tests := []struct {
		role model.Role
		want int
	}{
		{role: model.RoleUser, want: http.StatusForbidden},
		{role: model.RoleAdmin, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		r.AddCookie(issueCookie(t, m, 1, tt.role))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != tt.want {
			t.Fatalf("role %s: status = %d, want %d", tt.role, w.Code, tt.want)
		}
	}
}

func TestRequireCurrentAdmin(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		stored model.Role
		err    error
		want   int
	}{
		{name: "still admin", stored: model.RoleAdmin, want: http.StatusNoContent},
		{name: "demoted", stored: model.RoleUser, want: http.StatusForbidden},
		{name: "deleted", stored: "", want: http.StatusForbidden},
		{name: "lookup failed", err: errors.New("db down"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lookedUp int64
			lookup := func(_ context.Context, userID int64) (model.Role, error) {
				lookedUp = userID
				return tt.stored, tt.err
			}
			h := m.Middleware(RequireAdmin(RequireCurrentAdmin(lookup)(ok)))

			r := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
			r.AddCookie(issueCookie(t, m, 9, model.RoleAdmin))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if lookedUp != 9 {
				t.Fatalf("looked up user %d, want 9", lookedUp)
			}
		})
	}
}

func TestRequireCurrentAdmin_WithoutUser(t *testing.T) {
	lookup := func(context.Context, int64) (model.Role, error) {
		t.Fatalf("lookup should not be called")
		return "", nil
	}
	h := RequireCurrentAdmin(lookup)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("next handler should not be called")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestClearAuthCookie(t *testing.T) {
	w := httptest.NewRecorder()
	NewAuthMiddleware("").ClearAuthCookie(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != authCookieName || cookies[0].MaxAge >= 0 {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
}
