package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareIssuesCookieAndSession(t *testing.T) {
	t.Parallel()

	var gotUser, gotSession, gotKey string
	h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotSession = SessionIDFromContext(r.Context())
		gotKey = SessionKey(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/advisor/session", nil)
	req.Header.Set(SessionHeaderName, "tab-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !IsValidAnonID(gotUser) {
		t.Fatalf("expected generated anon id, got %q", gotUser)
	}
	if gotSession != "tab-1" {
		t.Fatalf("expected session tab-1, got %q", gotSession)
	}
	if gotKey != gotUser+":tab-1" {
		t.Fatalf("unexpected session key %q", gotKey)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != gotUser {
		t.Fatalf("expected anon cookie for %q, got %+v", gotUser, cookies)
	}
	if cookies[0].Secure {
		t.Fatal("expected insecure cookie in development")
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	t.Parallel()

	const id = "anon_0123456789abcdef0123456789abcdef"
	var gotUser string
	h := Middleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/?session_id=from-query", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if gotUser != id {
		t.Fatalf("expected cookie id to be reused, got %q", gotUser)
	}
	if c := rec.Result().Cookies(); len(c) != 1 || !c[0].Secure {
		t.Fatalf("expected refreshed secure cookie, got %+v", c)
	}
}

func TestMiddlewareRejectsForgedCookie(t *testing.T) {
	t.Parallel()

	var gotUser string
	h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "someone-else"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotUser == "someone-else" || !IsValidAnonID(gotUser) {
		t.Fatalf("expected a fresh anon id, got %q", gotUser)
	}
}

func TestSessionIDFromRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"header wins", "h1", "q1", "h1"},
		{"query fallback", "", "q1", "q1"},
		{"missing", "", "", DefaultSessionIDValue},
		{"separator rejected", "a:b", "", DefaultSessionIDValue},
		{"spaces rejected", "a b", "", DefaultSessionIDValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := "/"
			if tt.query != "" {
				target += "?session_id=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set(SessionHeaderName, tt.header)
			}
			if got := sessionIDFromRequest(req); got != tt.want {
				t.Fatalf("sessionIDFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionKeyWithoutUser(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := SessionKey(req.Context()); got != "" {
		t.Fatalf("expected empty key without identity, got %q", got)
	}
	ctx := WithIdentity(req.Context(), "u", "bad id")
	if got := SessionKey(ctx); got != "u:"+DefaultSessionIDValue {
		t.Fatalf("unexpected key %q", got)
	}
}
