package expense

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("expense not found")
	ErrBlankTitle = errors.New("title must not be blank")
)

type Expense struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Category  Category  `json:"category"`
	Amount    Amount    `json:"amount"`
	Date      Date      `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Request is the full payload for create and update. The owner never comes
// from the body.
type Request struct {
	Title    string   `json:"title" binding:"required,max=200"`
	Category Category `json:"category" binding:"required,category"`
	Amount   Amount   `json:"amount" binding:"required,gt=0,lte=9999999999.99"`
	Date     string   `json:"date" binding:"required,calendardate"`
}

// Normalize trims the title and parses the date. Call after binding.
func (r Request) Normalize() (Fields, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return Fields{}, ErrBlankTitle
	}

	d, err := ParseDate(r.Date)
	if err != nil {
		return Fields{}, err
	}

	return Fields{
		Title:    title,
		Category: r.Category,
		Amount:   r.Amount,
		Date:     d,
	}, nil
}

// Fields are the mutable, validated attributes of an expense.
type Fields struct {
	Title    string
	Category Category
	Amount   Amount
	Date     Date
}

func New(userID string, f Fields) Expense {
	now := time.Now().UTC()

	return Expense{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     f.Title,
		Category:  f.Category,
		Amount:    f.Amount,
		Date:      f.Date,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Category *Category
	Query    *string
}

// Matches applies the filter in memory, mirroring the SQL predicate.
func (f ListFilter) Matches(e Expense) bool {
	if f.Category != nil && e.Category != *f.Category {
		return false
	}

	if f.Query != nil && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(*f.Query)) {
		return false
	}

	return true
}

type CategoryTotal struct {
	Category Category `json:"category"`
	Total    Amount   `json:"total"`
	Count    int      `json:"count"`
}

type Summary struct {
	Total      Amount          `json:"total"`
	Count      int             `json:"count"`
	Categories []CategoryTotal `json:"categories"`
}

// Summarize folds per-category totals into a Summary ordered by the
// category enumeration.
func Summarize(rows []CategoryTotal) Summary {
	byCat := make(map[Category]CategoryTotal, len(rows))
	for _, r := range rows {
		cur := byCat[r.Category]
		cur.Category = r.Category
		cur.Total += r.Total
		cur.Count += r.Count
		byCat[r.Category] = cur
	}

	s := Summary{Categories: make([]CategoryTotal, 0, len(byCat))}

	for _, c := range Categories {
		ct, ok := byCat[c]
		if !ok {
			continue
		}
		ct.Total = ct.Total.Round()
		s.Categories = append(s.Categories, ct)
		s.Total += ct.Total
		s.Count += ct.Count
	}

	s.Total = s.Total.Round()

	return s
}
