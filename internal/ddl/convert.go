package ddl

import (
	"regexp"
	"strings"
)

// MySQL DDL rewrites applied before parsing. The parser understands one
// dialect (PostgreSQL-flavoured CREATE TABLE); this pre-pass translates the
// common MySQL constructs that would otherwise confuse it.
var mysqlRewrites = []struct {
	re   *regexp.Regexp
	repl string
}{
	// INT PRIMARY KEY AUTO_INCREMENT -> SERIAL PRIMARY KEY
	{regexp.MustCompile(`(?i)\b(INT|INTEGER|BIGINT|SMALLINT)\s+PRIMARY\s+KEY\s+AUTO_INCREMENT\b`), "SERIAL PRIMARY KEY"},
	// INT AUTO_INCREMENT -> SERIAL
	{regexp.MustCompile(`(?i)\b(INT|INTEGER|BIGINT|SMALLINT)\s+AUTO_INCREMENT\b`), "SERIAL"},
	// Stray AUTO_INCREMENT keywords
	{regexp.MustCompile(`(?i),?\s*\bAUTO_INCREMENT\b`), ""},
	// TINYINT(1) is the MySQL boolean convention
	{regexp.MustCompile(`(?i)\bTINYINT\s*\(\s*1\s*\)`), "BOOLEAN"},
	{regexp.MustCompile(`(?i)\bTINYINT\b`), "SMALLINT"},
	{regexp.MustCompile(`(?i)\bDATETIME\b`), "TIMESTAMP"},
	// ENUM(...) -> bounded string, good enough for synthetic data
	{regexp.MustCompile(`(?i)\bENUM\s*\([^)]*\)`), "VARCHAR(100)"},
	{regexp.MustCompile(`(?i)\s+UNSIGNED\b`), ""},
	// Table options: ) ENGINE=InnoDB DEFAULT CHARSET=utf8 ... ;
	{regexp.MustCompile(`(?i)\)\s*ENGINE\s*=\s*\w+[^;]*;`), ");"},
	{regexp.MustCompile(`(?i)\s+(CHARACTER\s+SET|CHARSET)\s*=?\s*\w+`), ""},
	{regexp.MustCompile(`(?i)\s+COLLATE\s+\w+`), ""},
	{regexp.MustCompile(`(?i)\s+COMMENT\s+(["'])[^"']*(["'])`), ""},
}

var mysqlMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bAUTO_INCREMENT\b`),
	regexp.MustCompile(`(?i)\bENGINE\s*=`),
	regexp.MustCompile(`(?i)\bTINYINT\b`),
	regexp.MustCompile(`(?i)\bENUM\s*\(`),
	regexp.MustCompile(`(?i)\bUNSIGNED\b`),
	regexp.MustCompile("`"),
}

var (
	collapseSpacesRe  = regexp.MustCompile(`\s+`)
	spaceBeforeComma  = regexp.MustCompile(`\s+,`)
	mysqlLineComments = regexp.MustCompile(`--[^\n]*`)
)

// MySQLToPostgres rewrites MySQL CREATE TABLE syntax into the PostgreSQL
// dialect the parser and the execution target understand.
func MySQLToPostgres(ddl string) string {
	result := mysqlLineComments.ReplaceAllString(ddl, "")

	for _, rw := range mysqlRewrites {
		result = rw.re.ReplaceAllString(result, rw.repl)
	}

	result = strings.ReplaceAll(result, "`", "")
	result = collapseSpacesRe.ReplaceAllString(result, " ")
	result = spaceBeforeComma.ReplaceAllString(result, ",")

	return strings.TrimSpace(result)
}

// DetectMySQLSyntax reports whether the DDL contains MySQL-specific
// constructs that need conversion before parsing.
func DetectMySQLSyntax(ddl string) bool {
	for _, marker := range mysqlMarkers {
		if marker.MatchString(ddl) {
			return true
		}
	}
	return false
}
