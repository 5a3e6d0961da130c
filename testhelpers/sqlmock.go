package testhelpers

import (
	"fmt"
	"regexp"
	"strings"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var whitespace = regexp.MustCompile(`\s+`)

func collapse(sql string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(sql, " "))
}

// SQLMatcher matches an expected regular expression against the executed SQL
// after runs of whitespace on both sides have been collapsed to one space.
var SQLMatcher = pgxmock.QueryMatcherFunc(func(expectedSQL, actualSQL string) error {
	re, err := regexp.Compile(collapse(expectedSQL))
	if err != nil {
		return fmt.Errorf("invalid expected sql %q: %w", expectedSQL, err)
	}
	actual := collapse(actualSQL)
	if !re.MatchString(actual) {
		return fmt.Errorf("sql %q does not match %q", actual, re.String())
	}
	return nil
})

// NewMockPool returns a pgxmock pool using SQLMatcher.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool(pgxmock.QueryMatcherOption(SQLMatcher))
}
