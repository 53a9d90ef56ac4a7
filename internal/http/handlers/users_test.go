package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/expensehub/internal/domain/user"
	"github.com/geocoder89/expensehub/internal/http/handlers"
)

func TestGetProfileHandler(t *testing.T) {
	me := newUUID()
	other := newUUID()

	tests := []struct {
		name           string
		caller         string
		target         string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantRepoCalls  int
	}{
		{
			name:   "success",
			caller: me,
			target: me,
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
					return user.User{ID: id, Username: "alice", PasswordHash: "hash:secret"}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantRepoCalls:  1,
		},
		{
			name:           "other_user_forbidden",
			caller:         me,
			target:         other,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "no_identity",
			target:         me,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "not_found",
			caller:         me,
			target:         me,
			wantStatusCode: http.StatusNotFound,
			wantRepoCalls:  1,
		},
		{
			name:   "repo_error",
			caller: me,
			target: me,
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
					return user.User{}, errDB
				}
			},
			wantStatusCode: http.StatusInternalServerError,
			wantRepoCalls:  1,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewUsersHandler(repo, fakeHasher{}, discardLogger(), nil)
			r := setupAuthedRouter(http.MethodGet, "/api/users/:id", tt.caller, h.GetProfile)

			req := httptest.NewRequest(http.MethodGet, "/api/users/"+tt.target, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if repo.calls != tt.wantRepoCalls {
				t.Fatalf("got %d repo calls, want %d", repo.calls, tt.wantRepoCalls)
			}

			if w.Code == http.StatusOK {
				var got map[string]any
				if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if len(got) != 2 || got["id"] != me || got["username"] != "alice" {
					t.Fatalf("profile must be exactly {id, username}, got %v", got)
				}
			}
		})
	}
}

func TestVerifyPasswordHandler(t *testing.T) {
	me := newUUID()
	other := newUUID()

	stored := func(f *fakeUsersRepo) {
		f.getByIDFn = func(ctx context.Context, id string) (user.User, error) {
			return user.User{ID: id, Username: "alice", PasswordHash: "hash:pw1"}, nil
		}
	}

	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantValid      bool
		wantRepoCalls  int
	}{
		{
			name:           "valid",
			body:           `{"userId":"` + me + `","password":"pw1"}`,
			repoSetUp:      stored,
			wantStatusCode: http.StatusOK,
			wantValid:      true,
			wantRepoCalls:  1,
		},
		{
			name:           "invalid",
			body:           `{"userId":"` + me + `","password":"nope"}`,
			repoSetUp:      stored,
			wantStatusCode: http.StatusOK,
			wantValid:      false,
			wantRepoCalls:  1,
		},
		{
			name:           "other_user_forbidden",
			body:           `{"userId":"` + other + `","password":"pw1"}`,
			repoSetUp:      stored,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "missing_user_id",
			body:           `{"password":"pw1"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "not_found",
			body:           `{"userId":"` + me + `","password":"pw1"}`,
			wantStatusCode: http.StatusNotFound,
			wantRepoCalls:  1,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewUsersHandler(repo, fakeHasher{}, discardLogger(), nil)
			r := setupAuthedRouter(http.MethodPost, "/api/users/verify-password", me, h.VerifyPassword)

			req := httptest.NewRequest(http.MethodPost, "/api/users/verify-password", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if repo.calls != tt.wantRepoCalls {
				t.Fatalf("got %d repo calls, want %d", repo.calls, tt.wantRepoCalls)
			}

			if w.Code == http.StatusOK {
				var resp struct {
					Valid bool `json:"valid"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Valid != tt.wantValid {
					t.Fatalf("got valid=%v, want %v", resp.Valid, tt.wantValid)
				}
			}
		})
	}
}

func TestUpdatePasswordHandler(t *testing.T) {
	me := newUUID()
	other := newUUID()

	tests := []struct {
		name           string
		target         string
		body           string
		hasher         fakeHasher
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantRepoCalls  int
	}{
		{
			name:   "success",
			target: me,
			body:   `{"newPassword":"pw2"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.updatePasswordFn = func(ctx context.Context, id, hash string) error {
					if hash != "hash:pw2" {
						t.Errorf("password stored unhashed: %q", hash)
					}
					return nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantRepoCalls:  1,
		},
		{
			name:           "other_user_forbidden",
			target:         other,
			body:           `{"newPassword":"pw2"}`,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "missing_new_password",
			target:         me,
			body:           `{}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:   "not_found",
			target: me,
			body:   `{"newPassword":"pw2"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.updatePasswordFn = func(ctx context.Context, id, hash string) error {
					return user.ErrUserNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
			wantRepoCalls:  1,
		},
		{
			name:           "hash_failure",
			target:         me,
			body:           `{"newPassword":"pw2"}`,
			hasher:         fakeHasher{hashErr: errDB},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewUsersHandler(repo, tt.hasher, discardLogger(), nil)
			r := setupAuthedRouter(http.MethodPut, "/api/users/:id/update-password", me, h.UpdatePassword)

			req := httptest.NewRequest(http.MethodPut, "/api/users/"+tt.target+"/update-password", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if repo.calls != tt.wantRepoCalls {
				t.Fatalf("got %d repo calls, want %d", repo.calls, tt.wantRepoCalls)
			}
		})
	}
}
