package expense

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type Category string

const (
	CategoryFood      Category = "Food"
	CategoryTransport Category = "Transport"
	CategoryShopping  Category = "Shopping"
	CategoryRent      Category = "Rent"
	CategoryOther     Category = "Other"
)

// Categories lists the fixed enumeration in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryRent,
	CategoryOther,
}

func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Amount is a positive money value with cent precision. It accepts a JSON
// number or a numeric JSON string.
type Amount float64

// MaxAmount is the largest value a NUMERIC(12,2) column holds.
const MaxAmount = 9999999999.99

func (a Amount) Round() Amount {
	return Amount(math.Round(float64(a)*100) / 100)
}

func (a Amount) Float64() float64 {
	return float64(a)
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(strings.TrimSpace(s))
	}

	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return &json.UnmarshalTypeError{Value: "amount " + string(raw), Type: reflect.TypeOf(float64(0))}
	}

	rounded := Amount(f).Round()
	if math.IsInf(float64(rounded), 0) || math.IsNaN(float64(rounded)) {
		return &json.UnmarshalTypeError{Value: "amount " + string(raw), Type: reflect.TypeOf(float64(0))}
	}

	*a = rounded
	return nil
}

// DateLayout is the wire format of an expense date.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("date must be YYYY-MM-DD or RFC3339")

// Date is a calendar date, held as midnight UTC.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}

	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) String() string {
	return d.Time.UTC().Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}
