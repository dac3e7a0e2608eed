// Package trigger implements the auto-response matcher for guild messages.
// A Table is an ordered list of phrase/response pairs; the order of the
// slice is the match precedence, so the tie-break between overlapping
// triggers is a property of the type rather than of map iteration.
package trigger

import (
	"strings"

	"github.com/edgard/bocik/internal/textnorm"
)

// Entry pairs a trigger phrase with the response sent when it matches.
type Entry struct {
	Phrase   string
	Response string
}

// Table is the ordered trigger table. It is loaded once from configuration
// and read-only afterwards, so it needs no synchronization.
type Table []Entry

// NewTable builds a Table from configured entries. Entries whose phrase
// normalizes to the empty string are dropped; they would otherwise match
// every message.
func NewTable(entries []Entry) Table {
	table := make(Table, 0, len(entries))
	for _, e := range entries {
		if textnorm.Normalize(e.Phrase) == "" {
			continue
		}
		table = append(table, e)
	}
	return table
}

// Match normalizes content and returns the response of the first entry, in
// table order, whose normalized phrase occurs as a substring. At most one
// response is ever produced per message; the second return reports whether
// any entry matched.
func (t Table) Match(content string) (string, bool) {
	if len(t) == 0 {
		return "", false
	}

	canonical := textnorm.Normalize(content)
	if canonical == "" {
		return "", false
	}

	for _, e := range t {
		if strings.Contains(canonical, textnorm.Normalize(e.Phrase)) {
			return e.Response, true
		}
	}
	return "", false
}
