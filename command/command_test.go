// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/flowd-project/flowd/lib/accesslist"
	"github.com/flowd-project/flowd/lib/authgate"
	"github.com/flowd-project/flowd/lib/codec"
	"github.com/flowd-project/flowd/lib/defs"
)

const testDefinitions = `{
  "suites": [
    {"kind": "suite", "name": "s", "children": [
      {"kind": "family", "name": "f", "children": [
        {"kind": "task", "name": "t1",
         "attributes": {
           "meters": [{"name": "progress", "min": 0, "max": 10}],
           "labels": [{"name": "info", "value": "idle"}],
           "variables": [{"name": "HOST", "value": "a"}],
         }},
        {"kind": "task", "name": "t2"},
      ]},
    ]},
    {"kind": "suite", "name": "other"},
  ],
}`

func testDefs(t *testing.T) *defs.Defs {
	t.Helper()
	d, err := defs.ParseDefinitions([]byte(testDefinitions))
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}
	return d
}

// request encodes cmd the way the service client does: its fields
// plus the action key.
func request(t *testing.T, cmd Command) []byte {
	t.Helper()
	fields, err := Fields(cmd)
	if err != nil {
		t.Fatalf("Fields(%s): %v", cmd.Name(), err)
	}
	fields["action"] = cmd.Name()
	raw, err := codec.Marshal(fields)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return raw
}

func decode(t *testing.T, cmd Command, user string) Command {
	t.Helper()
	decoded, err := Decode(request(t, cmd), user)
	if err != nil {
		t.Fatalf("Decode(%s): %v", cmd.Name(), err)
	}
	return decoded
}

func TestDecodeRoundTrip(t *testing.T) {
	commands := []Command{
		NewGet("/s/f"),
		NewWhitelist(),
		NewReloadWhitelist(),
		NewSuspend("/s", "/other"),
		NewResume("/s"),
		NewForce(defs.StatusComplete, true, "/s/f"),
		NewAbort("disk full", "/s/f/t1"),
		NewRequeue("/s"),
		NewFreeDep(defs.FreeOptions{Time: true}, "/s/f/t2"),
		NewDelete("/other"),
		NewOrder(defs.OrderTop, "/s/f/t2"),
		NewAlter(AlterChange, "meter", "progress", "4", "/s/f/t1"),
		NewLoad([]byte(`{"suites": [{"kind": "suite", "name": "n"}]}`), false),
		NewServerState(defs.ServerRunning),
		NewServerVariable("ECF_HOME", "/tmp"),
		NewSubscribe(3, "s"),
	}
	for _, cmd := range commands {
		t.Run(cmd.Name(), func(t *testing.T) {
			decoded := decode(t, cmd, "alice")
			if decoded.User() != "alice" {
				t.Errorf("User() = %q, want alice", decoded.User())
			}
			if decoded.Equals(cmd) {
				t.Error("commands from different users compare equal")
			}
			cmd.setUser("alice")
			if !decoded.Equals(cmd) {
				t.Error("decoded command differs from the original")
			}
			if strings.Join(decoded.Paths(), ",") != strings.Join(cmd.Paths(), ",") {
				t.Errorf("Paths() = %v, want %v", decoded.Paths(), cmd.Paths())
			}
		})
	}
}

func TestEveryActionRegistered(t *testing.T) {
	for _, action := range Actions() {
		cmd := registry[action]()
		if cmd == nil {
			t.Fatalf("registry[%q] built nil", action)
		}
	}
	if len(Actions()) != 16 {
		t.Errorf("len(Actions()) = %d, want 16", len(Actions()))
	}
}

func TestDecodeIgnoresRequestUser(t *testing.T) {
	raw, err := codec.Marshal(map[string]any{"action": ActionSuspend, "paths": []string{"/s"}, "user": "root"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	cmd, err := Decode(raw, "bob")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmd.User() != "bob" {
		t.Errorf("User() = %q, want bob", cmd.User())
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"unknown action", map[string]any{"action": "explode"}, "unknown command"},
		{"missing paths", map[string]any{"action": ActionSuspend}, "at least 1 path"},
		{"relative path", map[string]any{"action": ActionResume, "paths": []string{"s/f"}}, "not absolute"},
		{"dot dot", map[string]any{"action": ActionResume, "paths": []string{"/s/../other"}}, "/s/../other"},
		{"empty segment", map[string]any{"action": ActionResume, "paths": []string{"/s//f"}}, "/s//f"},
		{"bad status", map[string]any{"action": ActionForce, "paths": []string{"/s"}, "status": "melted"}, "unknown status"},
		{"delete root", map[string]any{"action": ActionDelete, "paths": []string{"/"}}, "root"},
		{"order two paths", map[string]any{"action": ActionOrder, "paths": []string{"/s", "/other"}, "how": "top"}, "exactly one"},
		{"alter add flag", map[string]any{"action": ActionAlter, "paths": []string{"/s"}, "op": "add", "kind": "flag", "name": "late"}, "not added"},
		{"alter bad kind", map[string]any{"action": ActionAlter, "paths": []string{"/s"}, "op": "add", "kind": "colour"}, "unknown attribute"},
		{"bad definitions", map[string]any{"action": ActionLoad, "definitions": "{"}, "parsing definitions"},
		{"bad server state", map[string]any{"action": ActionServerState, "state": "asleep"}, "unknown server state"},
		{"unnamed variable", map[string]any{"action": ActionServerVariable}, "name is empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := codec.Marshal(tc.fields)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			_, err = Decode(raw, "alice")
			if err == nil {
				t.Fatal("Decode succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestAuthorizationUsesCommandPaths(t *testing.T) {
	policy, err := accesslist.Parse(strings.NewReader("4.4.14\nalice /s\n-bob\n"), "test")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	server := authgate.StoreServer{Store: accesslist.NewStoreWith(policy)}

	if err := authgate.Authenticate(decode(t, NewSuspend("/s/f"), "alice"), server); err != nil {
		t.Errorf("alice suspend /s/f: %v", err)
	}
	err = authgate.Authenticate(decode(t, NewSuspend("/other"), "alice"), server)
	if !errors.Is(err, &authgate.Error{Code: authgate.NoAccess}) {
		t.Errorf("alice suspend /other: err = %v, want no access", err)
	}
	err = authgate.Authenticate(decode(t, NewSuspend("/s"), "bob"), server)
	if !errors.Is(err, &authgate.Error{Code: authgate.NoWriteAccess}) {
		t.Errorf("bob suspend /s: err = %v, want no write access", err)
	}
	if err := authgate.Authenticate(decode(t, NewGet("/s"), "bob"), server); err != nil {
		t.Errorf("bob get /s: %v", err)
	}
	load := decode(t, NewLoad([]byte(`{"suites": [{"kind": "suite", "name": "other"}]}`), true), "alice")
	if got := load.Paths(); len(got) != 1 || got[0] != "/other" {
		t.Fatalf("load Paths() = %v, want [/other]", got)
	}
	if err := authgate.Authenticate(load, server); err == nil {
		t.Error("alice loaded a suite outside her paths")
	}

	own := decode(t, NewLoad([]byte(`{"suites": [{"kind": "suite", "name": "s"}]}`), true), "alice")
	if err := authgate.Authenticate(own, server); err != nil {
		t.Errorf("alice load /s: %v", err)
	}
	withVariables := decode(t, NewLoad([]byte(`{
		"server_variables": [{"name": "FLOWD_HOME", "value": "/evil"}],
		"suites": [{"kind": "suite", "name": "s"}]
	}`), true), "alice")
	if got := withVariables.Paths(); len(got) != 2 || got[1] != defs.RootPath {
		t.Fatalf("load Paths() = %v, want [/s %s]", got, defs.RootPath)
	}
	if err := authgate.Authenticate(withVariables, server); err == nil {
		t.Error("alice set server variables through load")
	}
	if err := authgate.Authenticate(decode(t, NewServerVariable("FLOWD_HOME", "/evil"), "alice"), server); err == nil {
		t.Error("alice set a server variable directly")
	}
}

func TestNodeMutations(t *testing.T) {
	d := testDefs(t)
	apply := func(cmd Command) {
		t.Helper()
		if err := cmd.(Mutation).Apply(d, nil); err != nil {
			t.Fatalf("%s: %v", cmd.Name(), err)
		}
	}

	apply(decode(t, NewSuspend("/s/f"), "u"))
	if !d.Find("/s/f").Suspended {
		t.Error("suspend did not suspend /s/f")
	}
	apply(decode(t, NewResume("/s/f"), "u"))
	if d.Find("/s/f").Suspended {
		t.Error("resume did not resume /s/f")
	}

	apply(decode(t, NewForce(defs.StatusComplete, false, "/s/f/t1"), "u"))
	if got := d.Find("/s/f/t1").Status; got != defs.StatusComplete {
		t.Errorf("t1 status = %s, want complete", got)
	}

	apply(decode(t, NewAbort("oops", "/s/f/t2"), "u"))
	if got := d.Find("/s/f/t2").Status; got != defs.StatusAborted {
		t.Errorf("t2 status = %s, want aborted", got)
	}
	if got := d.Find("/s").Status; got != defs.StatusAborted {
		t.Errorf("suite status = %s, want aborted from its child", got)
	}

	apply(decode(t, NewRequeue("/s"), "u"))
	if got := d.Find("/s/f/t2").Status; got != defs.StatusQueued {
		t.Errorf("t2 status after requeue = %s, want queued", got)
	}

	apply(decode(t, NewOrder(defs.OrderTop, "/s/f/t2"), "u"))
	if first := d.Find("/s/f").Children[0].Name; first != "t2" {
		t.Errorf("first child after order top = %s, want t2", first)
	}

	apply(decode(t, NewDelete("/other"), "u"))
	if d.Find("/other") != nil {
		t.Error("/other still present after delete")
	}
}

func TestMutationOnMissingPathFails(t *testing.T) {
	d := testDefs(t)
	err := decode(t, NewSuspend("/s/missing"), "u").(Mutation).Apply(d, nil)
	if !errors.Is(err, defs.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAlter(t *testing.T) {
	d := testDefs(t)
	task := d.Find("/s/f/t1")
	apply := func(cmd *Alter) error {
		t.Helper()
		return decode(t, cmd, "u").(Mutation).Apply(d, nil)
	}

	if err := apply(NewAlter(AlterChange, "meter", "progress", "7", "/s/f/t1")); err != nil {
		t.Fatalf("change meter: %v", err)
	}
	if got := task.Attributes.Meters[0].Value; got != 7 {
		t.Errorf("meter = %d, want 7", got)
	}
	if err := apply(NewAlter(AlterChange, "meter", "progress", "70", "/s/f/t1")); !errors.Is(err, defs.ErrInvalid) {
		t.Errorf("out of range meter: err = %v, want ErrInvalid", err)
	}

	if err := apply(NewAlter(AlterAdd, "variable", "HOST", "b", "/s/f/t1")); !errors.Is(err, defs.ErrExists) {
		t.Errorf("add existing variable: err = %v, want ErrExists", err)
	}
	if err := apply(NewAlter(AlterChange, "variable", "HOST", "b", "/s/f/t1")); err != nil {
		t.Fatalf("change variable: %v", err)
	}
	if value, _ := task.Variable("HOST"); value != "b" {
		t.Errorf("HOST = %q, want b", value)
	}

	if err := apply(NewAlter(AlterAdd, "meter", "load", "0,5", "/s/f/t1")); err != nil {
		t.Fatalf("add meter: %v", err)
	}
	if len(task.Attributes.Meters) != 2 {
		t.Errorf("meters = %d, want 2", len(task.Attributes.Meters))
	}
	if err := apply(NewAlter(AlterAdd, "meter", "bad", "5", "/s/f/t1")); !errors.Is(err, defs.ErrInvalid) {
		t.Errorf("malformed meter range: err = %v, want ErrInvalid", err)
	}

	if err := apply(NewAlter(AlterDelete, "label", "info", "", "/s/f/t1")); err != nil {
		t.Fatalf("delete label: %v", err)
	}
	if len(task.Attributes.Labels) != 0 {
		t.Errorf("labels = %v, want none", task.Attributes.Labels)
	}

	if err := apply(NewAlter(AlterChange, AlterFlag, "late", "", "/s/f/t1")); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if !task.Flags.Has(defs.FlagLate) {
		t.Error("late flag not set")
	}
	if err := apply(NewAlter(AlterDelete, AlterFlag, "late", "", "/s/f/t1")); err != nil {
		t.Fatalf("clear flag: %v", err)
	}
	if task.Flags.Has(defs.FlagLate) {
		t.Error("late flag still set")
	}

	if err := apply(NewAlter(AlterChange, AlterDefStatus, "", "complete", "/s/f/t1")); err != nil {
		t.Fatalf("change defstatus: %v", err)
	}
	if task.DefStatus != defs.StatusComplete {
		t.Errorf("defstatus = %s, want complete", task.DefStatus)
	}

	if err := apply(NewAlter(AlterAdd, "trigger", "", "../t2 == complete", "/s/f/t1")); err != nil {
		t.Fatalf("add trigger: %v", err)
	}
	if task.Attributes.Trigger == nil || task.Attributes.Trigger.Expr != "../t2 == complete" {
		t.Errorf("trigger = %+v", task.Attributes.Trigger)
	}
}

func TestFreeDepDefaultsToTrigger(t *testing.T) {
	d := testDefs(t)
	task := d.Find("/s/f/t1")
	task.SetTrigger(nil, "../t2 == complete")
	if err := decode(t, NewFreeDep(defs.FreeOptions{}, "/s/f/t1"), "u").(Mutation).Apply(d, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !task.Attributes.Trigger.Free {
		t.Error("trigger not freed")
	}
}

func TestLoad(t *testing.T) {
	d := testDefs(t)
	doc := []byte(`{
	  "server_variables": [{"name": "SITE", "value": "north"}],
	  "suites": [{"kind": "suite", "name": "other", "children": [{"kind": "task", "name": "x"}]}],
	}`)

	err := decode(t, NewLoad(doc, false), "u").(Mutation).Apply(d, nil)
	if !errors.Is(err, defs.ErrExists) {
		t.Fatalf("load over existing suite: err = %v, want ErrExists", err)
	}

	if err := decode(t, NewLoad(doc, true), "u").(Mutation).Apply(d, nil); err != nil {
		t.Fatalf("forced load: %v", err)
	}
	if d.Find("/other/x") == nil {
		t.Error("/other/x missing after forced load")
	}
	if d.Find("/other").Defs() != d {
		t.Error("loaded suite is not attached to the tree")
	}
	if value, _ := d.Variable("SITE"); value != "north" {
		t.Errorf("SITE = %q, want north", value)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	d := testDefs(t)
	result, err := decode(t, NewGet("/s/f/t1"), "u").(Query).Query(d)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	nodes := result.(*GetResult).Nodes
	if len(nodes) != 1 || nodes[0].Name != "t1" {
		t.Fatalf("nodes = %v, want [t1]", nodes)
	}
	nodes[0].Name = "changed"
	if d.Find("/s/f/t1") == nil {
		t.Error("mutating the result changed the tree")
	}

	whole, err := NewGet().Query(d)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !whole.(*GetResult).Defs.Equal(d) {
		t.Error("get with no paths did not return the whole tree")
	}
}

func TestServerCommands(t *testing.T) {
	d := testDefs(t)
	if err := decode(t, NewServerState(defs.ServerRunning), "u").(Mutation).Apply(d, nil); err != nil {
		t.Fatalf("server-state: %v", err)
	}
	if d.State != defs.ServerRunning {
		t.Errorf("state = %s, want running", d.State)
	}
	if err := decode(t, NewServerVariable("A", "1"), "u").(Mutation).Apply(d, nil); err != nil {
		t.Fatalf("set variable: %v", err)
	}
	if err := decode(t, NewDeleteServerVariable("A"), "u").(Mutation).Apply(d, nil); err != nil {
		t.Fatalf("delete variable: %v", err)
	}
	if _, ok := d.Variable("A"); ok {
		t.Error("A still set after delete")
	}
	if err := decode(t, NewDeleteServerVariable("A"), "u").(Mutation).Apply(d, nil); !errors.Is(err, defs.ErrNotFound) {
		t.Errorf("delete missing variable: err = %v, want ErrNotFound", err)
	}
}

type fakeControl struct {
	reloadErr error
	reloads   int
}

func (c *fakeControl) ReloadAccessList() error {
	c.reloads++
	return c.reloadErr
}

func (c *fakeControl) DumpAccessList() string { return "4.4.14\n" }

func TestAdminCommands(t *testing.T) {
	ctl := &fakeControl{}
	out, err := decode(t, NewWhitelist(), "u").(Admin).Run(ctl)
	if err != nil || out != "4.4.14\n" {
		t.Errorf("whitelist = %v, %v", out, err)
	}
	if ctl.reloads != 0 {
		t.Error("whitelist reloaded the list")
	}

	reload := decode(t, NewReloadWhitelist(), "u").(Admin)
	if !reload.IsWrite() {
		t.Error("reload-whitelist is not a write command")
	}
	if _, err := reload.Run(ctl); err != nil {
		t.Fatalf("reload: %v", err)
	}
	ctl.reloadErr = errors.New("bad file")
	if _, err := reload.Run(ctl); err == nil {
		t.Error("reload error not returned")
	}
	if ctl.reloads != 2 {
		t.Errorf("reloads = %d, want 2", ctl.reloads)
	}
}

func TestPrepare(t *testing.T) {
	load := NewLoad([]byte(`{"suites": [{"kind": "suite", "name": "n"}]}`), false)
	if err := Prepare(load, "flowd"); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if load.User() != "flowd" || len(load.Paths()) != 1 {
		t.Errorf("prepared load: user %q paths %v", load.User(), load.Paths())
	}
	if err := Prepare(NewSuspend(), "flowd"); err == nil {
		t.Error("Prepare accepted a suspend without paths")
	}
}

func TestSubscribeFilter(t *testing.T) {
	if NewSubscribe(0).Filter() != nil {
		t.Error("whole-tree subscribe has a filter")
	}
	sub := NewSubscribe(0, "a", "b")
	if got := strings.Join(sub.Paths(), ","); got != "/a,/b" {
		t.Errorf("Paths() = %s", got)
	}
	if err := Prepare(NewSubscribe(0, "../x"), "u"); err == nil {
		t.Error("Prepare accepted a bad suite name")
	}
}
