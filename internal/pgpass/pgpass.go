// Package pgpass resolves passwords from a pgpass-style credentials file.
//
// The file holds colon-delimited lines of host:port:database:user:password.
// Any of the first four fields may be the wildcard "*"; literal ":" and "\"
// inside a field are backslash-escaped.
package pgpass

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Lookup searches the credentials file for a password matching host, port,
// database and user. The file is $PGPASSFILE if set, else ~/.pgpass.
func Lookup(host string, port int, database, user string) (string, bool) {
	path := os.Getenv("PGPASSFILE")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		path = filepath.Join(home, ".pgpass")
	}
	return LookupFile(path, host, port, database, user)
}

// LookupFile is Lookup against an explicit file path.
func LookupFile(path, host string, port int, database, user string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer func() { _ = f.Close() }()

	portStr := strconv.Itoa(port)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := splitLine(line)
		if len(fields) != 5 {
			continue
		}

		if matches(fields[0], host) &&
			matches(fields[1], portStr) &&
			matches(fields[2], database) &&
			matches(fields[3], user) {
			return fields[4], true
		}
	}

	return "", false
}

// splitLine splits a pgpass line on unescaped colons and unescapes the fields.
func splitLine(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())

	return fields
}

func matches(field, value string) bool {
	return field == "*" || field == value
}
