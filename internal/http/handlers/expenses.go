package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/geocoder89/expensehub/internal/cache"
	"github.com/geocoder89/expensehub/internal/domain/expense"
	"github.com/geocoder89/expensehub/internal/domain/user"
	"github.com/geocoder89/expensehub/internal/http/middlewares"
	"github.com/geocoder89/expensehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExpenseStore scopes every call to one owner.
type ExpenseStore interface {
	Create(ctx context.Context, userID string, f expense.Fields) (expense.Expense, error)
	ListByOwner(ctx context.Context, userID string, filter expense.ListFilter) ([]expense.Expense, error)
	GetForOwner(ctx context.Context, id, userID string) (expense.Expense, error)
	UpdateForOwner(ctx context.Context, id, userID string, f expense.Fields) (expense.Expense, error)
	DeleteForOwner(ctx context.Context, id, userID string) error
	CategoryTotals(ctx context.Context, userID string) ([]expense.CategoryTotal, error)
}

// SummaryCache fills only when no invalidation happened between
// Generation and SetIfGeneration.
type SummaryCache interface {
	Get(key string, out any) (bool, error)
	Generation(key string) uint64
	SetIfGeneration(key string, gen uint64, val any) (bool, error)
	Delete(key string)
}

const maxQueryLen = 200

type ExpensesHandler struct {
	repo  ExpenseStore
	cache SummaryCache
	log   *slog.Logger
	prom  *observability.Prom
}

// NewExpensesHandler wires the expense routes. summaries may be nil, in
// which case every summary is computed from the store.
func NewExpensesHandler(repo ExpenseStore, summaries SummaryCache, log *slog.Logger, prom *observability.Prom) *ExpensesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ExpensesHandler{repo: repo, cache: summaries, log: log, prom: prom}
}

func (h *ExpensesHandler) CreateExpense(ctx *gin.Context) {
	owner, ok := h.owner(ctx)
	if !ok {
		return
	}

	fields, ok := bindExpense(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	e, err := h.repo.Create(cctx, owner, fields)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			RespondUnauthorized(ctx, "Account no longer exists")
			return
		}
		internalError(ctx, h.log, "Could not create expense", err)
		return
	}

	h.invalidateSummary(owner)

	ctx.JSON(http.StatusCreated, e)
}

func (h *ExpensesHandler) ListExpenses(ctx *gin.Context) {
	owner, ok := h.owner(ctx)
	if !ok {
		return
	}

	filter, ok := parseListFilter(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	items, err := h.repo.ListByOwner(cctx, owner, filter)
	if err != nil {
		internalError(ctx, h.log, "Could not list expenses", err)
		return
	}

	RespondJSONWithETag(ctx, h.log, http.StatusOK, items)
}

func (h *ExpensesHandler) Summary(ctx *gin.Context) {
	owner, ok := h.owner(ctx)
	if !ok {
		return
	}

	key := cache.SummaryKey(owner)

	var gen uint64
	if h.cache != nil {
		gen = h.cache.Generation(key)

		var cached expense.Summary
		hit, err := h.cache.Get(key, &cached)
		if err != nil {
			h.log.WarnContext(ctx.Request.Context(), "summary cache read failed", "err", err)
		}
		h.prom.ObserveCache(hit)

		if hit {
			RespondJSONWithETag(ctx, h.log, http.StatusOK, cached)
			return
		}
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	rows, err := h.repo.CategoryTotals(cctx, owner)
	if err != nil {
		internalError(ctx, h.log, "Could not summarize expenses", err)
		return
	}

	summary := expense.Summarize(rows)

	if h.cache != nil {
		stored, err := h.cache.SetIfGeneration(key, gen, summary)
		if err != nil {
			h.log.WarnContext(ctx.Request.Context(), "summary cache write failed", "err", err)
		} else if !stored {
			h.log.DebugContext(ctx.Request.Context(), "summary invalidated during read, not cached")
		}
	}

	RespondJSONWithETag(ctx, h.log, http.StatusOK, summary)
}

func (h *ExpensesHandler) GetExpense(ctx *gin.Context) {
	owner, ok := h.owner(ctx)
	if !ok {
		return
	}

	id, ok := expenseID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	e, err := h.repo.GetForOwner(cctx, id, owner)
	if err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return
		}
		internalError(ctx, h.log, "Could not fetch expense", err)
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *ExpensesHandler) UpdateExpense(ctx *gin.Context) {
	owner, ok := h.owner(ctx)
	if !ok {
		return
	}

	id, ok := expenseID(ctx)
	if !ok {
		return
	}

	fields, ok := bindExpense(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	e, err := h.repo.UpdateForOwner(cctx, id, owner, fields)
	if err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return
		}
		internalError(ctx, h.log, "Could not update expense", err)
		return
	}

	h.invalidateSummary(owner)

	ctx.JSON(http.StatusOK, e)
}

func (h *ExpensesHandler) DeleteExpense(ctx *gin.Context) {
	owner, ok := h.owner(ctx)
	if !ok {
		return
	}

	id, ok := expenseID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.repo.DeleteForOwner(cctx, id, owner); err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			RespondNotFound(ctx, "Expense not found")
			return
		}
		internalError(ctx, h.log, "Could not delete expense", err)
		return
	}

	h.invalidateSummary(owner)

	ctx.JSON(http.StatusOK, gin.H{"message": "Expense deleted successfully"})
}

func (h *ExpensesHandler) owner(ctx *gin.Context) (string, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication required")
		return "", false
	}
	return id, true
}

func (h *ExpensesHandler) invalidateSummary(owner string) {
	if h.cache != nil {
		h.cache.Delete(cache.SummaryKey(owner))
	}
}

// a malformed id cannot name any expense
func expenseID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if uuid.Validate(id) != nil {
		RespondNotFound(ctx, "Expense not found")
		return "", false
	}
	return id, true
}

func bindExpense(ctx *gin.Context) (expense.Fields, bool) {
	var req expense.Request

	if !BindJSON(ctx, &req) {
		return expense.Fields{}, false
	}

	fields, err := req.Normalize()
	if err != nil {
		if errors.Is(err, expense.ErrBlankTitle) {
			respondFieldError(ctx, "title", "blank", "")
		} else {
			respondFieldError(ctx, "date", "calendardate", "")
		}
		return expense.Fields{}, false
	}

	return fields, true
}

func parseListFilter(ctx *gin.Context) (expense.ListFilter, bool) {
	var filter expense.ListFilter

	if raw, ok := ctx.GetQuery("category"); ok && raw != "" {
		c := expense.Category(raw)
		if !c.IsValid() {
			RespondBadRequest(ctx, "Invalid query parameters", gin.H{
				"fields": []FieldError{newFieldError("category", "category", "")},
			})
			return filter, false
		}
		filter.Category = &c
	}

	if q := strings.TrimSpace(ctx.Query("q")); q != "" {
		if utf8.RuneCountInString(q) > maxQueryLen {
			RespondBadRequest(ctx, "Invalid query parameters", gin.H{
				"fields": []FieldError{newFieldError("q", "max", strconv.Itoa(maxQueryLen))},
			})
			return filter, false
		}
		filter.Query = &q
	}

	return filter, true
}
