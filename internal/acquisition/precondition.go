package acquisition

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	maxTitleRunes = 50
	// titles up to this length are shown whole; truncating them would not save anything.
	titleTruncateAbove = maxTitleRunes + 3
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		f := fl.Field()

		return f.Kind() != reflect.String || strings.TrimSpace(f.String()) != ""
	})

	return v
}

// fieldNames maps struct fields to the names operators see in messages.
var fieldNames = map[string]string{
	"ID":      "Product ID",
	"Account": "Account",
	"Locale":  "Locale",
}

// ValidatePreconditions checks the item carries everything a license request needs.
// It does no I/O.
func ValidatePreconditions(item ContentItemRef) error {
	err := validate.Struct(item)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("failed to validate item %s: %w", item.ID, err)
	}

	field, ok := fieldNames[verrs[0].StructField()]
	if !ok {
		field = verrs[0].StructField()
	}

	return &PreconditionError{
		ItemID: item.ID,
		Title:  DisplayTitle(item.Title),
		Field:  field,
	}
}

// DisplayTitle shortens long titles to 50 characters and an ellipsis for log and error output.
func DisplayTitle(title string) string {
	if utf8.RuneCountInString(title) <= titleTruncateAbove {
		return title
	}

	return string([]rune(title)[:maxTitleRunes]) + "..."
}

// MaskAccount hides most of an account reference so it can be logged.
func MaskAccount(account string) string {
	account = strings.TrimSpace(account)

	switch n := utf8.RuneCountInString(account); {
	case n == 0:
		return "[empty]"
	case n <= 4:
		return strings.Repeat("*", n)
	default:
		r := []rune(account)

		return string(r[:2]) + strings.Repeat("*", n-4) + string(r[n-2:])
	}
}
