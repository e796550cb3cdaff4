package value

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Diff returns a line diff between the canonical renderings of want and got,
// or "" when they are equal. Lines prefixed with "-" come from want and lines
// prefixed with "+" from got.
func Diff(want, got Value) string {
	if Equal(want, got) {
		return ""
	}
	return cmp.Diff(strings.Split(Render(want), "\n"), strings.Split(Render(got), "\n"))
}
