package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/geocoder89/expensehub/internal/domain/expense"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes and validates the body into out. On failure it writes a
// 400 (or 413 for an oversized body) and returns false.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(ctx, http.StatusRequestEntityTooLarge, "body_too_large", "Request body is too large", nil)
			return false
		}

		RespondBadRequest(ctx, "Invalid request body", bindErrorDetails(err))

		return false
	}

	return true
}

// respondFieldError reports a single rule failure in the same shape as the
// validator errors produced by BindJSON.
func respondFieldError(ctx *gin.Context, field, rule, param string) {
	RespondBadRequest(ctx, "Invalid request body", gin.H{
		"fields": []FieldError{newFieldError(field, rule, param)},
	})
}

func newFieldError(field, rule, param string) FieldError {
	return FieldError{
		Field:   field,
		Rule:    rule,
		Param:   param,
		Message: validationMessage(rule, param),
	}
}

func bindErrorDetails(err error) interface{} {
	// validator errors (struct bind tags); field names are already JSON names
	var validationErrs validator.ValidationErrors

	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))

		for _, fe := range validationErrs {
			fields = append(fields, newFieldError(fieldPath(fe), fe.Tag(), fe.Param()))
		}
		return gin.H{"fields": fields}
	}

	if errors.Is(err, io.EOF) {
		return gin.H{"json": "empty_body"}
	}

	// in the event of bad json

	var syntaxErr *json.SyntaxError

	if errors.As(err, &syntaxErr) {
		return gin.H{
			"json":   "invalid_json_syntax",
			"offset": syntaxErr.Offset,
		}
	}

	// in the event of a type mismatch

	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		field := strings.TrimSpace(typeErr.Field)

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
			}},
		}
	}

	// final fallback if the error could not be deciphered
	return gin.H{"reason": "unreadable request body"}
}

// fieldPath drops the root struct name from the validator namespace,
// "Request.amount" becomes "amount".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()

	if _, rest, ok := strings.Cut(ns, "."); ok && rest != "" {
		return rest
	}

	return fe.Field()
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "gt":
		return "must be greater than " + param
	case "lte":
		return "must be at most " + param
	case "category":
		return "must be one of " + categoryList()
	case "calendardate":
		return "must be a date in YYYY-MM-DD format"
	case "blank":
		return "must not be blank"
	case "maxbytes":
		return "must be at most " + param + " bytes"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}

func categoryList() string {
	names := make([]string, 0, len(expense.Categories))
	for _, c := range expense.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
