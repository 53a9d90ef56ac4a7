package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/geocoder89/expensehub/internal/domain/expense"
	"github.com/geocoder89/expensehub/internal/domain/user"
	"github.com/geocoder89/expensehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errDB = errors.New("db error")

// Fake repository implementations of the handler store interfaces

type fakeUsersRepo struct {
	createFn         func(ctx context.Context, username, hash string) (user.User, error)
	getByUsernameFn  func(ctx context.Context, username string) (user.User, error)
	getByIDFn        func(ctx context.Context, id string) (user.User, error)
	updatePasswordFn func(ctx context.Context, id, hash string) error

	calls int
}

func (f *fakeUsersRepo) Create(ctx context.Context, username, hash string) (user.User, error) {
	f.calls++
	if f.createFn != nil {
		return f.createFn(ctx, username, hash)
	}
	return user.User{ID: newUUID(), Username: username, PasswordHash: hash}, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	f.calls++
	if f.getByUsernameFn != nil {
		return f.getByUsernameFn(ctx, username)
	}
	return user.User{}, user.ErrUserNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	f.calls++
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{}, user.ErrUserNotFound
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	f.calls++
	if f.updatePasswordFn != nil {
		return f.updatePasswordFn(ctx, id, hash)
	}
	return nil
}

type fakeExpensesRepo struct {
	createFn func(ctx context.Context, userID string, f expense.Fields) (expense.Expense, error)
	listFn   func(ctx context.Context, userID string, filter expense.ListFilter) ([]expense.Expense, error)
	getFn    func(ctx context.Context, id, userID string) (expense.Expense, error)
	updateFn func(ctx context.Context, id, userID string, f expense.Fields) (expense.Expense, error)
	deleteFn func(ctx context.Context, id, userID string) error
	totalsFn func(ctx context.Context, userID string) ([]expense.CategoryTotal, error)

	calls int
}

func (f *fakeExpensesRepo) Create(ctx context.Context, userID string, fields expense.Fields) (expense.Expense, error) {
	f.calls++
	if f.createFn != nil {
		return f.createFn(ctx, userID, fields)
	}
	return expense.New(userID, fields), nil
}

func (f *fakeExpensesRepo) ListByOwner(ctx context.Context, userID string, filter expense.ListFilter) ([]expense.Expense, error) {
	f.calls++
	if f.listFn != nil {
		return f.listFn(ctx, userID, filter)
	}
	return []expense.Expense{}, nil
}

func (f *fakeExpensesRepo) GetForOwner(ctx context.Context, id, userID string) (expense.Expense, error) {
	f.calls++
	if f.getFn != nil {
		return f.getFn(ctx, id, userID)
	}
	return expense.Expense{}, expense.ErrNotFound
}

func (f *fakeExpensesRepo) UpdateForOwner(ctx context.Context, id, userID string, fields expense.Fields) (expense.Expense, error) {
	f.calls++
	if f.updateFn != nil {
		return f.updateFn(ctx, id, userID, fields)
	}
	return expense.Expense{}, expense.ErrNotFound
}

func (f *fakeExpensesRepo) DeleteForOwner(ctx context.Context, id, userID string) error {
	f.calls++
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id, userID)
	}
	return nil
}

func (f *fakeExpensesRepo) CategoryTotals(ctx context.Context, userID string) ([]expense.CategoryTotal, error) {
	f.calls++
	if f.totalsFn != nil {
		return f.totalsFn(ctx, userID)
	}
	return nil, nil
}

// fakeHasher avoids bcrypt cost in handler tests: the hash of p is "hash:"+p.
type fakeHasher struct {
	hashErr   error
	verifyErr error
}

func (f fakeHasher) Hash(plain string) (string, error) {
	if f.hashErr != nil {
		return "", f.hashErr
	}
	return "hash:" + plain, nil
}

func (f fakeHasher) Verify(plain, hash string) (bool, error) {
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	return hash == "hash:"+plain, nil
}

type fakeTokens struct {
	err error
}

func (f fakeTokens) Issue(userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + userID, nil
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

// setupAuthedRouter mounts h behind a stand-in for the auth gate that
// authenticates every request as userID.
func setupAuthedRouter(method, path, userID string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, func(c *gin.Context) {
		if userID != "" {
			c.Set(middlewares.CtxUserID, userID)
		}
		c.Next()
	}, h)

	return r
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func isOK(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
