package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := buildRootCmd()

	want := map[string]bool{"serve": false, "validate": false, "version": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	path := writeConfig(t, `
gateway:
  prefix: "!"
commands:
  - name: echo
    usage: "<text...>"
    response: "{text}"
`)

	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"validate", "--config", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out.String(), "is valid") {
		t.Errorf("output = %q, want validity confirmation", out.String())
	}
}

func TestValidateRejectsBadUsage(t *testing.T) {
	path := writeConfig(t, `
commands:
  - name: broken
    usage: "<unclosed"
    response: "x"
`)

	root := buildRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"validate", "--config", path})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("Execute error = %v, want usage compilation failure naming the command", err)
	}
}

func TestValidateRejectsMissingFile(t *testing.T) {
	root := buildRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"validate", "--config", filepath.Join(t.TempDir(), "nope.yaml")})

	if err := root.Execute(); err == nil {
		t.Error("validate should fail for a missing config file")
	}
}
