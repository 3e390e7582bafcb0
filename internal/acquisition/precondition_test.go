package acquisition

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItem() ContentItemRef {
	return ContentItemRef{
		ID:      "B0001",
		Title:   "The Hobbit",
		Locale:  "us",
		Account: "reader@example.com",
	}
}

func TestValidatePreconditions(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*ContentItemRef)
		wantField string
	}{
		{name: "valid item", mutate: func(*ContentItemRef) {}},
		{name: "empty account", mutate: func(i *ContentItemRef) { i.Account = "" }, wantField: "Account"},
		{name: "whitespace account", mutate: func(i *ContentItemRef) { i.Account = "  \t" }, wantField: "Account"},
		{name: "empty locale", mutate: func(i *ContentItemRef) { i.Locale = "" }, wantField: "Locale"},
		{name: "account reported before locale", mutate: func(i *ContentItemRef) { i.Account, i.Locale = "", "" }, wantField: "Account"},
		{name: "empty identifier", mutate: func(i *ContentItemRef) { i.ID = "" }, wantField: "Product ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem()
			tt.mutate(&item)

			err := ValidatePreconditions(item)
			if tt.wantField == "" {
				require.NoError(t, err)

				return
			}

			var pErr *PreconditionError
			require.True(t, errors.As(err, &pErr), "expected PreconditionError, got %T", err)
			assert.Equal(t, tt.wantField, pErr.Field)
			assert.Contains(t, err.Error(), tt.wantField+" is not known")
			assert.Contains(t, err.Error(), "["+item.ID+"]")
		})
	}
}

func TestPreconditionError_TruncatesTitle(t *testing.T) {
	item := validItem()
	item.Title = strings.Repeat("t", 120)
	item.Locale = ""

	err := ValidatePreconditions(item)
	require.Error(t, err)

	assert.True(t, strings.HasPrefix(err.Error(), strings.Repeat("t", 50)+"... [B0001]"))
	assert.NotContains(t, err.Error(), strings.Repeat("t", 51))
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Short", DisplayTitle("Short"))
	assert.Equal(t, strings.Repeat("a", 53), DisplayTitle(strings.Repeat("a", 53)))
	assert.Equal(t, strings.Repeat("a", 50)+"...", DisplayTitle(strings.Repeat("a", 54)))
	assert.Equal(t, strings.Repeat("é", 50)+"...", DisplayTitle(strings.Repeat("é", 60)))
}

func TestMaskAccount(t *testing.T) {
	assert.Equal(t, "[empty]", MaskAccount(""))
	assert.Equal(t, "***", MaskAccount("abc"))
	assert.Equal(t, "re**************om", MaskAccount("reader@example.com"))
}
