// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package accesslist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Wildcard is the user token that stands for every user.
const Wildcard = "*"

// ParseError describes why an access list failed to load.
type ParseError struct {
	File    string
	Line    int
	Text    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("access list %s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("access list %s line %d: %s (%q)", e.File, e.Line, e.Message, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Policy is a parsed access list.
type Policy struct {
	file string

	allRead  bool
	allWrite bool

	// read and write map a user (or Wildcard) to the path prefixes
	// it may reach. An empty list means everything.
	read  map[string][]string
	write map[string][]string
}

// Load reads and parses the access list at path.
func Load(path string) (*Policy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: path, Message: "could not open file: " + err.Error(), Err: err}
	}
	defer file.Close()
	return Parse(file, path)
}

// Parse parses an access list. name is used in errors and Dump.
func Parse(r io.Reader, name string) (*Policy, error) {
	p := &Policy{
		file:  name,
		read:  make(map[string][]string),
		write: make(map[string][]string),
	}

	scanner := bufio.NewScanner(r)
	foundVersion := false
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		raw := scanner.Text()
		line, _, _ := strings.Cut(raw, "#")
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}

		var message string
		if !foundVersion {
			message = validateVersion(tokens[0])
			foundVersion = message == ""
		} else {
			message = p.addRule(tokens)
		}
		if message != "" {
			return nil, &ParseError{File: name, Line: lineNumber, Text: raw, Message: message}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: name, Line: lineNumber, Message: err.Error()}
	}
	return p, nil
}

// MinimumVersion is the oldest access list format understood.
var MinimumVersion = [3]int{4, 4, 5}

func validateVersion(token string) string {
	if token[0] < '0' || token[0] > '9' || !strings.Contains(token, ".") {
		return "the version number not found; the version number must appear before the users"
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "expected a version of the form <int>.<int>.<int>, e.g. 4.4.14"
	}
	var version [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Sprintf("invalid version number %q", token)
		}
		version[i] = n
	}
	if slices.Compare(version[:], MinimumVersion[:]) < 0 {
		return fmt.Sprintf("only access lists with a version >= %d.%d.%d are supported, found %s",
			MinimumVersion[0], MinimumVersion[1], MinimumVersion[2], token)
	}
	return ""
}

// addRule applies one rule line and returns an error message, or "".
func (p *Policy) addRule(tokens []string) string {
	if p.allWrite {
		return ""
	}

	if len(tokens) == 1 {
		user := tokens[0]
		if readOnly := strings.HasPrefix(user, "-"); readOnly {
			user = user[1:]
			if user == "" {
				return "read-only marker without a user"
			}
			if user == Wildcard {
				p.allRead = true
				clear(p.read)
			} else if !p.allRead {
				grantUnrestricted(p.read, user)
			}
			return ""
		}
		if user == Wildcard {
			p.allWrite = true
			p.allRead = true
			clear(p.read)
			clear(p.write)
			return ""
		}
		if !p.allRead {
			grantUnrestricted(p.read, user)
		}
		grantUnrestricted(p.write, user)
		return ""
	}

	var (
		user     string
		readOnly bool
		paths    []string
		allPaths bool
	)
	for _, token := range tokens {
		switch {
		case strings.HasPrefix(token, "-"):
			readOnly = true
			name := token[1:]
			if name == "" {
				continue
			}
			if user != "" {
				return fmt.Sprintf("can only have one user per line, first user:%s second user:%s", user, name)
			}
			user = name
		case strings.HasPrefix(token, "/"):
			for _, path := range strings.Split(token, ",") {
				if path == "" {
					continue
				}
				if path[0] != '/' {
					return "paths must start with '/'"
				}
				if path == "/" {
					allPaths = true
				}
				paths = append(paths, path)
			}
		default:
			if strings.HasPrefix(token, Wildcard) {
				token = Wildcard
			}
			if user != "" {
				return fmt.Sprintf("can only have one user per line, first user:%s second user:%s", user, token)
			}
			user = token
		}
	}
	if user == "" {
		return "rule has paths but no user"
	}

	if allPaths {
		paths = nil
		if user == Wildcard {
			if readOnly {
				p.allRead = true
				clear(p.read)
			} else {
				p.allWrite = true
				clear(p.write)
			}
		}
	}

	if readOnly {
		if !p.allRead {
			grant(p.read, user, paths)
		}
	} else if !p.allWrite {
		grant(p.write, user, paths)
	}
	return ""
}

// grantUnrestricted records an unrestricted grant for a user with no
// entry yet. An existing entry is left alone.
func grantUnrestricted(table map[string][]string, user string) {
	if _, ok := table[user]; !ok {
		table[user] = nil
	}
}

// grant appends paths to the user's entry, creating it if needed. An
// entry with no paths is unrestricted and stays that way.
func grant(table map[string][]string, user string, paths []string) {
	existing, ok := table[user]
	switch {
	case !ok:
		table[user] = slices.Clone(paths)
	case len(existing) > 0:
		table[user] = append(existing, paths...)
	}
}

// File returns the name the policy was parsed from.
func (p *Policy) File() string { return p.file }

// Empty reports whether the policy has no rules at all. An empty
// policy lets everyone read and write.
func (p *Policy) Empty() bool {
	return len(p.read) == 0 && len(p.write) == 0 && !p.allRead && !p.allWrite
}

// VerifyReadAccess reports whether user may read path. Pass an empty
// path to ask about unrestricted access.
func (p *Policy) VerifyReadAccess(user, path string) bool {
	return p.VerifyReadAccessPaths(user, pathList(path))
}

// VerifyWriteAccess reports whether user may write path.
func (p *Policy) VerifyWriteAccess(user, path string) bool {
	return p.VerifyWriteAccessPaths(user, pathList(path))
}

// VerifyReadAccessPaths reports whether user may read every path in
// paths. Write access implies read access.
func (p *Policy) VerifyReadAccessPaths(user string, paths []string) bool {
	if p.allRead || p.Empty() {
		return true
	}
	return pathAccess(p.read, user, paths) ||
		pathAccess(p.read, Wildcard, paths) ||
		pathAccess(p.write, user, paths) ||
		pathAccess(p.write, Wildcard, paths)
}

// VerifyWriteAccessPaths reports whether user may write every path in
// paths.
func (p *Policy) VerifyWriteAccessPaths(user string, paths []string) bool {
	if p.allWrite || p.Empty() {
		return true
	}
	return pathAccess(p.write, user, paths) || pathAccess(p.write, Wildcard, paths)
}

func pathList(path string) []string {
	if path == "" {
		return nil
	}
	return []string{path}
}

// pathAccess reports whether user's entry in table covers every path.
// An unrestricted entry covers everything; a restricted entry covers
// nothing when no path is given.
func pathAccess(table map[string][]string, user string, paths []string) bool {
	allowed, ok := table[user]
	if !ok {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	if len(paths) == 0 {
		return false
	}
	for _, path := range paths {
		if !slices.ContainsFunc(allowed, func(prefix string) bool {
			return strings.HasPrefix(path, prefix)
		}) {
			return false
		}
	}
	return true
}

// Dump returns a human-readable listing of every grant, for
// diagnostics.
func (p *Policy) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "access list = '%s'\n", p.file)
	if p.Empty() {
		b.WriteString(" No users specified. Everyone has read/write access\n")
	}
	if p.allRead {
		b.WriteString(" All users have read access\n")
	}
	if p.allWrite {
		b.WriteString(" All users have write access\n")
	}
	dumpTable(&b, p.read, "has read access")
	dumpTable(&b, p.write, "has read/write access")
	return b.String()
}

func dumpTable(b *strings.Builder, table map[string][]string, suffix string) {
	users := make([]string, 0, len(table))
	for user := range table {
		users = append(users, user)
	}
	sort.Strings(users)
	for _, user := range users {
		fmt.Fprintf(b, " User: %s ", user)
		for _, path := range table[user] {
			b.WriteString(path)
			b.WriteString(",")
		}
		fmt.Fprintf(b, " %s\n", suffix)
	}
}
