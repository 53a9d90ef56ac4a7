package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/expensehub/internal/domain/expense"
	"github.com/geocoder89/expensehub/internal/domain/user"
)

// OwnerChecker reports whether a user id refers to an existing user.
type OwnerChecker interface {
	Exists(id string) bool
}

type ExpensesRepo struct {
	mu     sync.RWMutex
	items  map[string]expense.Expense
	owners OwnerChecker
}

// NewExpensesRepo builds the in-memory expense store. owners may be nil, in
// which case the owner reference is not checked.
func NewExpensesRepo(owners OwnerChecker) *ExpensesRepo {
	return &ExpensesRepo{
		items:  make(map[string]expense.Expense),
		owners: owners,
	}
}

func (r *ExpensesRepo) Create(ctx context.Context, userID string, f expense.Fields) (expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return expense.Expense{}, err
	}

	if r.owners != nil && !r.owners.Exists(userID) {
		return expense.Expense{}, user.ErrUserNotFound
	}

	e := expense.New(userID, f)

	r.mu.Lock()
	r.items[e.ID] = e
	r.mu.Unlock()

	return e, nil
}

func (r *ExpensesRepo) ListByOwner(ctx context.Context, userID string, filter expense.ListFilter) ([]expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]expense.Expense, 0)
	for _, e := range r.items {
		if e.UserID == userID && filter.Matches(e) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

func (r *ExpensesRepo) GetForOwner(ctx context.Context, id, userID string) (expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return expense.Expense{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok || e.UserID != userID {
		return expense.Expense{}, expense.ErrNotFound
	}

	return e, nil
}

func (r *ExpensesRepo) UpdateForOwner(ctx context.Context, id, userID string, f expense.Fields) (expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return expense.Expense{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok || e.UserID != userID {
		return expense.Expense{}, expense.ErrNotFound
	}

	e.Title = f.Title
	e.Category = f.Category
	e.Amount = f.Amount
	e.Date = f.Date
	e.UpdatedAt = time.Now().UTC()
	r.items[id] = e

	return e, nil
}

func (r *ExpensesRepo) DeleteForOwner(ctx context.Context, id, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok || e.UserID != userID {
		return expense.ErrNotFound
	}

	delete(r.items, id)

	return nil
}

func (r *ExpensesRepo) CategoryTotals(ctx context.Context, userID string) ([]expense.CategoryTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	totals := make(map[expense.Category]expense.CategoryTotal)
	for _, e := range r.items {
		if e.UserID != userID {
			continue
		}
		ct := totals[e.Category]
		ct.Category = e.Category
		ct.Total += e.Amount
		ct.Count++
		totals[e.Category] = ct
	}

	out := make([]expense.CategoryTotal, 0, len(totals))
	for _, ct := range totals {
		out = append(out, ct)
	}

	return out, nil
}
