package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/booklib/internal/model"
)

// --- モック定義 ---

type mockVerifier struct {
	verifyFn func(raw string) (int64, error)
}

func (m *mockVerifier) Verify(raw string) (int64, error) {
	if m.verifyFn != nil {
		return m.verifyFn(raw)
	}
	return 0, errors.New("invalid token")
}

type mockUserFinder struct {
	findByIDFn func(ctx context.Context, id int64) (*model.User, error)
	calls      int
}

func (m *mockUserFinder) FindByID(ctx context.Context, id int64) (*model.User, error) {
	m.calls++
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockRecorder struct {
	outcomes []string
}

func (m *mockRecorder) RecordAuthOutcome(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

// validVerifier は"valid-token"のみをユーザーID 7として受け付ける。
func validVerifier() *mockVerifier {
	return &mockVerifier{verifyFn: func(raw string) (int64, error) {
		if raw == "valid-token" {
			return 7, nil
		}
		return 0, errors.New("signature mismatch")
	}}
}

// storedUser はaccess_tokenがtokenのユーザーID 7を返すFinderを生成する。
func storedUser(token *string) *mockUserFinder {
	return &mockUserFinder{findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
		if id != 7 {
			return nil, nil
		}
		return &model.User{ID: 7, ExternalID: "123", FirstName: "Ada", LastName: "Lovelace", AccessToken: token}, nil
	}}
}

func strPtr(s string) *string { return &s }

// assertUnauthorized は401と本文"Unauthorized"であることを検証する。
func assertUnauthorized(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Unauthorized" {
		t.Errorf("body = %q, want %q", string(body), "Unauthorized")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/plain; charset=utf-8", ct)
	}
}

// --- ExtractCredential ---

func TestExtractCredential(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		cookie     string
		wantOK     bool
		wantToken  string
		wantSource CredentialSource
	}{
		{name: "Bearerヘッダー", header: "Bearer abc", wantOK: true, wantToken: "abc", wantSource: CredentialSourceHeader},
		{name: "小文字のbearer", header: "bearer abc", wantOK: true, wantToken: "abc", wantSource: CredentialSourceHeader},
		{name: "Cookieのみ", cookie: "xyz", wantOK: true, wantToken: "xyz", wantSource: CredentialSourceCookie},
		{name: "ヘッダーを優先", header: "Bearer abc", cookie: "xyz", wantOK: true, wantToken: "abc", wantSource: CredentialSourceHeader},
		{name: "Basicスキームは無視してCookie", header: "Basic dXNlcjpwYXNz", cookie: "xyz", wantOK: true, wantToken: "xyz", wantSource: CredentialSourceCookie},
		{name: "空のBearerは無視", header: "Bearer ", wantOK: false},
		{name: "スキームのみ", header: "Bearer", wantOK: false},
		{name: "空のCookie", cookie: "", wantOK: false},
		{name: "何もない", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: tt.cookie})
			}

			cred, ok := ExtractCredential(req)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if cred.Token != tt.wantToken || cred.Source != tt.wantSource {
				t.Errorf("credential = %+v, want {%s %s}", cred, tt.wantToken, tt.wantSource)
			}
		})
	}
}

// --- Middleware ---

func TestAuthGateway_AuthenticatedRequestReachesHandler(t *testing.T) {
	recorder := &mockRecorder{}
	gw := NewAuthGateway(validVerifier(), storedUser(strPtr("valid-token")), recorder)

	var gotUser *model.User
	var gotSource CredentialSource
	handler := gw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
		gotSource = CredentialSourceFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	for _, source := range []CredentialSource{CredentialSourceHeader, CredentialSourceCookie} {
		t.Run(string(source), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if source == CredentialSourceHeader {
				req.Header.Set("Authorization", "Bearer valid-token")
			} else {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: "valid-token"})
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if gotUser == nil || gotUser.ID != 7 {
				t.Errorf("user = %+v, want ID 7", gotUser)
			}
			if gotSource != source {
				t.Errorf("source = %q, want %q", gotSource, source)
			}
		})
	}

	for _, o := range recorder.outcomes {
		if o != AuthOutcomeAuthenticated {
			t.Errorf("outcome = %q, want %q", o, AuthOutcomeAuthenticated)
		}
	}
}

func TestAuthGateway_RejectsWithIdenticalUnauthorized(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		finder      *mockUserFinder
		wantOutcome string
		wantLookups int
	}{
		{
			name:        "認証情報なし",
			finder:      storedUser(strPtr("valid-token")),
			wantOutcome: AuthOutcomeMissingCredential,
		},
		{
			name:        "不正なトークン",
			header:      "Bearer tampered-token",
			finder:      storedUser(strPtr("valid-token")),
			wantOutcome: AuthOutcomeInvalidToken,
		},
		{
			name:        "存在しないユーザー",
			header:      "Bearer valid-token",
			finder:      &mockUserFinder{},
			wantOutcome: AuthOutcomeUnknownUser,
			wantLookups: 1,
		},
		{
			name:        "ログアウト済み",
			header:      "Bearer valid-token",
			finder:      storedUser(nil),
			wantOutcome: AuthOutcomeUnknownUser,
			wantLookups: 1,
		},
		{
			name:        "再ログインで上書き済み",
			header:      "Bearer valid-token",
			finder:      storedUser(strPtr("newer-token")),
			wantOutcome: AuthOutcomeUnknownUser,
			wantLookups: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockRecorder{}
			gw := NewAuthGateway(validVerifier(), tt.finder, recorder)

			handlerCalled := false
			handler := gw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assertUnauthorized(t, w)
			if handlerCalled {
				t.Error("handler must not run for rejected requests")
			}
			if tt.finder.calls != tt.wantLookups {
				t.Errorf("FindByID calls = %d, want %d", tt.finder.calls, tt.wantLookups)
			}
			if len(recorder.outcomes) != 1 || recorder.outcomes[0] != tt.wantOutcome {
				t.Errorf("outcomes = %v, want [%s]", recorder.outcomes, tt.wantOutcome)
			}
		})
	}
}

// ヘッダーのトークンが不正な場合、有効なCookieがあってもフォールバックしない
func TestAuthGateway_InvalidHeaderDoesNotFallBackToCookie(t *testing.T) {
	gw := NewAuthGateway(validVerifier(), storedUser(strPtr("valid-token")), nil)
	handler := gw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	req.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: "valid-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assertUnauthorized(t, w)
}

func TestAuthGateway_StoreFailureReturns503(t *testing.T) {
	recorder := &mockRecorder{}
	finder := &mockUserFinder{findByIDFn: func(context.Context, int64) (*model.User, error) {
		return nil, model.ErrStoreUnavailable
	}}
	gw := NewAuthGateway(validVerifier(), finder, recorder)

	handler := gw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if len(recorder.outcomes) != 1 || recorder.outcomes[0] != AuthOutcomeStoreError {
		t.Errorf("outcomes = %v, want [%s]", recorder.outcomes, AuthOutcomeStoreError)
	}
}

func TestAuthGateway_Authenticate_ErrorsWrapUnauthorized(t *testing.T) {
	gw := NewAuthGateway(validVerifier(), &mockUserFinder{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, _, err := gw.Authenticate(req)
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

// --- コンテキストヘルパー ---

func TestUserIDFromContext(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}

	ctx := ContextWithUser(context.Background(), &model.User{ID: 99})
	id, err := UserIDFromContext(ctx)
	if err != nil || id != 99 {
		t.Errorf("UserIDFromContext = (%d, %v), want (99, nil)", id, err)
	}
	if src := CredentialSourceFromContext(ctx); src != "" {
		t.Errorf("source = %q, want empty", src)
	}
}
