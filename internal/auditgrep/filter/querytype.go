package filter

import (
	"regexp"
	"strings"
)

// QueryTypes lists the SQL statement keywords accepted by the query type
// filter.
var QueryTypes = []string{
	"CREATE", "ALTER", "DROP", "TRUNCATE", "RENAME", "GRANT", "REVOKE",
	"SELECT", "INSERT", "UPDATE", "DELETE", "COMMIT", "SHOW", "SET", "CALL",
	"PREPARE", "EXECUTE", "DEALLOCATE",
}

var (
	sqlCommentRe    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	sqlQuotedRe     = regexp.MustCompile(`(?s)'.*?'`)
	sqlBacktickedRe = regexp.MustCompile("(?s)`.*?`")
)

// normalizeSQLText removes block comments, quoted literals and backticked
// identifiers so keywords inside them are not mistaken for statements.
func normalizeSQLText(sql string) string {
	s := sqlCommentRe.ReplaceAllString(sql, "")
	s = sqlQuotedRe.ReplaceAllString(s, "")
	s = sqlBacktickedRe.ReplaceAllString(s, "")
	return strings.ToLower(s)
}

// matchesQueryType reports whether sql contains a statement of one of the
// given (lowercase) query types. This is a keyword heuristic, not a parser.
func matchesQueryType(sql string, types []string) bool {
	s := normalizeSQLText(sql)
	for _, qt := range types {
		if qt == "commit" {
			// COMMIT is usually a statement on its own with nothing after it.
			if strings.Contains(s, qt) {
				return true
			}
			continue
		}
		if !strings.Contains(s, qt+" ") {
			continue
		}
		switch qt {
		case "set":
			if strings.Contains(s, "insert ") || strings.Contains(s, "update ") {
				continue
			}
		case "prepare":
			if strings.Contains(s, "drop ") || strings.Contains(s, "deallocate ") {
				continue
			}
		}
		return true
	}
	return false
}
