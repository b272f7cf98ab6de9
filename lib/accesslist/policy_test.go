// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package accesslist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func parse(t *testing.T, content string) *Policy {
	t.Helper()
	p, err := Parse(strings.NewReader(content), "test.lists")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestEmptyPolicyAllowsEveryone(t *testing.T) {
	for _, content := range []string{"", "4.4.14\n", "# only comments\n4.5.0 # version\n\n"} {
		p := parse(t, content)
		if !p.Empty() {
			t.Errorf("%q: Empty() = false", content)
		}
		for _, user := range []string{"fred", "bill", ""} {
			for _, path := range []string{"", "/", "/suiteX/task1"} {
				if !p.VerifyReadAccess(user, path) || !p.VerifyWriteAccess(user, path) {
					t.Errorf("%q: user %q path %q denied", content, user, path)
				}
			}
		}
	}
}

func TestVersionGate(t *testing.T) {
	tests := []struct {
		version string
		wantErr string
	}{
		{"4.4.5", ""},
		{"4.4.14", ""},
		{"4.5.0", ""},
		{"5.0.0", ""},
		{"4.4.4", "version >= 4.4.5"},
		{"4.3.99", "version >= 4.4.5"},
		{"3.9.9", "version >= 4.4.5"},
		{"four.4.5", "version number not found"},
		{"4.4", "<int>.<int>.<int>"},
		{"4.4.x", "invalid version number"},
		{"fred", "version number not found"},
	}
	for _, test := range tests {
		t.Run(test.version, func(t *testing.T) {
			_, err := Parse(strings.NewReader(test.version+"\nfred\n"), "test.lists")
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				return
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("Parse = %v, want *ParseError", err)
			}
			if parseErr.Line != 1 || !strings.Contains(parseErr.Message, test.wantErr) {
				t.Errorf("ParseError = %+v, want line 1 mentioning %q", parseErr, test.wantErr)
			}
		})
	}
}

func TestMalformedRules(t *testing.T) {
	tests := []struct {
		line    string
		wantErr string
	}{
		{"fred bill /x", "one user per line, first user:fred second user:bill"},
		{"-fred -bill /x", "one user per line"},
		{"fred /x,y", "paths must start with '/'"},
		{"-", "without a user"},
		{"- /x", "no user"},
	}
	for _, test := range tests {
		_, err := Parse(strings.NewReader("4.4.14\n# comment\n"+test.line+"\n"), "test.lists")
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("%q: Parse = %v, want *ParseError", test.line, err)
		}
		if parseErr.Line != 3 || !strings.Contains(parseErr.Message, test.wantErr) {
			t.Errorf("%q: ParseError = %+v, want line 3 mentioning %q", test.line, parseErr, test.wantErr)
		}
	}
}

func TestUnrestrictedUsers(t *testing.T) {
	p := parse(t, "4.4.14\nuid1 # writer\n-fred\n")

	if !p.VerifyWriteAccess("uid1", "/any") || !p.VerifyReadAccess("uid1", "") {
		t.Error("uid1 should read and write everything")
	}
	if !p.VerifyReadAccess("fred", "/any") || !p.VerifyReadAccess("fred", "") {
		t.Error("fred should read everything")
	}
	if p.VerifyWriteAccess("fred", "/any") {
		t.Error("fred should not write")
	}
	if p.VerifyReadAccess("bill", "/any") {
		t.Error("bill is not listed and should be denied")
	}
}

func TestAddUserIsAdditive(t *testing.T) {
	p := parse(t, "4.4.14\n-u /a\nu /b\n")

	if !p.VerifyReadAccess("u", "/a") || !p.VerifyReadAccess("u", "/b") {
		t.Error("u should read /a and /b")
	}
	if !p.VerifyWriteAccess("u", "/b") {
		t.Error("u should write /b")
	}
	if p.VerifyWriteAccess("u", "/a") {
		t.Error("u should not write /a")
	}

	p = parse(t, "4.4.14\n-u /a\n-u /c,/d\n")
	for _, path := range []string{"/a", "/c", "/d"} {
		if !p.VerifyReadAccess("u", path) {
			t.Errorf("u should read %s", path)
		}
	}

	p = parse(t, "4.4.14\nu\nu /a\n")
	if !p.VerifyWriteAccess("u", "/elsewhere") {
		t.Error("a later restricted rule narrowed an unrestricted user")
	}
}

func TestWildcardAbsorbs(t *testing.T) {
	p := parse(t, "4.4.14\n*\n-fred\nbill /x\n-* /y\n")
	for _, user := range []string{"fred", "bill", "anyone"} {
		for _, path := range []string{"", "/x", "/z/t"} {
			if !p.VerifyReadAccess(user, path) || !p.VerifyWriteAccess(user, path) {
				t.Errorf("user %q path %q denied after *", user, path)
			}
		}
	}
	if !strings.Contains(p.Dump(), "All users have write access") {
		t.Errorf("Dump = %q", p.Dump())
	}
}

func TestReadWildcard(t *testing.T) {
	p := parse(t, "4.4.14\n-*\nbill\n")
	if !p.VerifyReadAccess("anyone", "/x") {
		t.Error("-* should let everyone read")
	}
	if p.VerifyWriteAccess("anyone", "/x") {
		t.Error("-* must not grant write")
	}
	if !p.VerifyWriteAccess("bill", "/x") {
		t.Error("bill should write")
	}

	p = parse(t, "4.4.14\n-*\n")
	if p.Empty() || p.VerifyWriteAccess("anyone", "/x") {
		t.Error("a read-only wildcard alone is not an empty policy")
	}
}

func TestRootPathMeansEverything(t *testing.T) {
	p := parse(t, "4.4.14\njoe /\n-* /\nfred /x\n")
	if !p.VerifyWriteAccess("joe", "/anything") || !p.VerifyWriteAccess("joe", "") {
		t.Error("joe / should be unrestricted")
	}
	if !p.VerifyReadAccess("someone", "/q") {
		t.Error("-* / should let everyone read")
	}

	p = parse(t, "4.4.14\n* /\nfred /x\n")
	if !p.VerifyWriteAccess("anyone", "/q") {
		t.Error("* / should let everyone write")
	}
}

func TestPathPrefixRule(t *testing.T) {
	p := parse(t, "4.4.14\n-u /suiteX\n")

	if !p.VerifyReadAccess("u", "/suiteX") || !p.VerifyReadAccess("u", "/suiteX/task1") {
		t.Error("u should read within /suiteX")
	}
	if p.VerifyReadAccess("u", "/suiteY") {
		t.Error("u should not read /suiteY")
	}
	// String prefix, not path segments.
	if !p.VerifyReadAccess("u", "/suiteXX") {
		t.Error("/suiteXX should match the /suiteX prefix")
	}
	if p.VerifyReadAccess("u", "") {
		t.Error("a restricted user cannot be granted access to no path")
	}
}

func TestPathSets(t *testing.T) {
	p := parse(t, "4.4.14\nbill /suiteX,/suiteB\n-* /open\n")

	if !p.VerifyWriteAccessPaths("bill", []string{"/suiteX/t", "/suiteB"}) {
		t.Error("bill should write both suites")
	}
	if p.VerifyWriteAccessPaths("bill", []string{"/suiteX/t", "/suiteC"}) {
		t.Error("every path must be allowed")
	}
	if p.VerifyWriteAccessPaths("bill", nil) {
		t.Error("an empty path set cannot prove access")
	}
	if !p.VerifyReadAccessPaths("anyone", []string{"/open/f"}) {
		t.Error("everyone should read /open")
	}
	if !p.VerifyReadAccessPaths("bill", []string{"/suiteB"}) {
		t.Error("write implies read")
	}
}

func TestDump(t *testing.T) {
	p := parse(t, "4.4.14\n-fred /suiteX\nbill /a,/b\n")
	dump := p.Dump()
	for _, want := range []string{
		"access list = 'test.lists'",
		" User: fred /suiteX, has read access",
		" User: bill /a,/b, has read/write access",
	} {
		if !strings.Contains(dump, want) {
			t.Errorf("Dump missing %q:\n%s", want, dump)
		}
	}
	if !strings.Contains(parse(t, "").Dump(), "Everyone has read/write access") {
		t.Error("empty policy dump")
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.lists")
	_, err := Load(path)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Load = %v, want *ParseError", err)
	}
	if parseErr.File != path || !strings.Contains(parseErr.Message, "could not open file") {
		t.Errorf("ParseError = %+v, want file %s and an open failure", parseErr, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load = %v, want it to wrap os.ErrNotExist", err)
	}
}
