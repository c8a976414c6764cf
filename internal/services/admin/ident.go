package admin

import (
	"fmt"
	"strings"
)

// validateIdentifier checks that a database or role name is safe for use in
// administrative statements, which cannot be parameterized.
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("identifier too long (max 63 chars): %s", name)
	}
	for i, c := range name {
		if i == 0 && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && c != '_' {
			return fmt.Errorf("identifier must start with letter or underscore: %s", name)
		}
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return fmt.Errorf("identifier contains invalid character %q: %s", c, name)
		}
	}
	return nil
}

// quoteIdentifier doubles embedded quotes and wraps the name in double quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
