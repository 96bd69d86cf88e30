package menu

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

// prompt names f in an "Enter ..." prompt: "professor ID", "borrow date
// (YYYY-MM-DD)".
func prompt(f *types.Field) string {
	if f.Prompt != "" {
		return f.Prompt
	}
	return lowerFirst(f.DisplayName())
}

// addPrompt qualifies a plain attribute with its kind: "student name",
// "book ISBN". Names already starting with the kind are left alone
// ("room number").
func addPrompt(k *types.Kind, f *types.Field) string {
	if f.Prompt != "" {
		return f.Prompt
	}
	p := prompt(f)
	if strings.HasPrefix(p, k.Singular) {
		return p
	}
	return k.Singular + " " + p
}

// lowerFirst lowercases the first letter unless the word is an acronym.
func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	if next, _ := utf8.DecodeRuneInString(s[n:]); unicode.IsUpper(next) {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}

func result(item types.MenuItem, fallback string) string {
	if item.Result != "" {
		return item.Result
	}
	return fallback
}

// title capitalises a collection name for list headings.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
