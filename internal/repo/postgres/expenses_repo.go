package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/expensehub/internal/domain/expense"
	"github.com/geocoder89/expensehub/internal/domain/user"
	"github.com/geocoder89/expensehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const expenseColumns = `id, user_id, title, category, amount, spent_on, created_at, updated_at`

type ExpensesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewExpensesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ExpensesRepo {
	return &ExpensesRepo{pool: pool, prom: prom}
}

func (r *ExpensesRepo) Create(ctx context.Context, userID string, f expense.Fields) (expense.Expense, error) {
	e := expense.New(userID, f)

	err := r.prom.ObserveDB("expenses.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO expenses (`+expenseColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.UserID, e.Title, string(e.Category), e.Amount.Float64(), e.Date.Time, e.CreatedAt, e.UpdatedAt,
		)
		return err
	})
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation || isMalformedID(err) {
			return expense.Expense{}, user.ErrUserNotFound
		}
		return expense.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	return e, nil
}

func (r *ExpensesRepo) ListByOwner(ctx context.Context, userID string, filter expense.ListFilter) ([]expense.Expense, error) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}

	argsPosition := 2

	if filter.Category != nil {
		conds = append(conds, fmt.Sprintf("category = $%d", argsPosition))
		args = append(args, string(*filter.Category))
		argsPosition++
	}

	if filter.Query != nil {
		conds = append(conds, fmt.Sprintf("title ILIKE '%%' || $%d || '%%'", argsPosition))
		args = append(args, escapeLike(*filter.Query))
		argsPosition++
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY spent_on DESC, created_at DESC, id DESC`

	out := make([]expense.Expense, 0)

	err := r.prom.ObserveDB("expenses.list_by_owner", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}

		return rows.Err()
	})
	if err != nil {
		if isMalformedID(err) {
			return []expense.Expense{}, nil
		}
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	return out, nil
}

// GetForOwner matches on id and owner in one predicate.
func (r *ExpensesRepo) GetForOwner(ctx context.Context, id, userID string) (expense.Expense, error) {
	var e expense.Expense

	err := r.prom.ObserveDB("expenses.get_for_owner", func() error {
		var err error
		e, err = scanExpense(r.pool.QueryRow(ctx,
			`SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND user_id = $2`,
			id, userID,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return expense.Expense{}, expense.ErrNotFound
		}
		return expense.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	return e, nil
}

func (r *ExpensesRepo) UpdateForOwner(ctx context.Context, id, userID string, f expense.Fields) (expense.Expense, error) {
	var e expense.Expense

	err := r.prom.ObserveDB("expenses.update_for_owner", func() error {
		var err error
		e, err = scanExpense(r.pool.QueryRow(ctx,
			`UPDATE expenses
			SET title = $3,
				category = $4,
				amount = $5,
				spent_on = $6,
				updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING `+expenseColumns,
			id, userID, f.Title, string(f.Category), f.Amount.Float64(), f.Date.Time,
		))
		return err
	})
	if err != nil {
		// if there are no rows matching the id and owner
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return expense.Expense{}, expense.ErrNotFound
		}
		return expense.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	return e, nil
}

func (r *ExpensesRepo) DeleteForOwner(ctx context.Context, id, userID string) error {
	var affected int64

	err := r.prom.ObserveDB("expenses.delete_for_owner", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		if isMalformedID(err) {
			return expense.ErrNotFound
		}
		return fmt.Errorf("delete expense: %w", err)
	}

	// if no rows were deleted as a result return a not found error
	if affected == 0 {
		return expense.ErrNotFound
	}

	return nil
}

func (r *ExpensesRepo) CategoryTotals(ctx context.Context, userID string) ([]expense.CategoryTotal, error) {
	out := make([]expense.CategoryTotal, 0, len(expense.Categories))

	err := r.prom.ObserveDB("expenses.category_totals", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT category, COALESCE(SUM(amount), 0)::float8, COUNT(*)
			FROM expenses
			WHERE user_id = $1
			GROUP BY category`,
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				category string
				total    float64
				count    int
			)
			if err := rows.Scan(&category, &total, &count); err != nil {
				return err
			}
			out = append(out, expense.CategoryTotal{
				Category: expense.Category(category),
				Total:    expense.Amount(total),
				Count:    count,
			})
		}

		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}

	return out, nil
}

func scanExpense(row pgx.Row) (expense.Expense, error) {
	var (
		e        expense.Expense
		category string
		amount   float64
		spentOn  time.Time
	)

	err := row.Scan(&e.ID, &e.UserID, &e.Title, &category, &amount, &spentOn, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return expense.Expense{}, err
	}

	e.Category = expense.Category(category)
	e.Amount = expense.Amount(amount).Round()
	e.Date = expense.DateOf(spentOn)

	return e, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
