package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "tablewatch dev (") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestMissingConfigFails(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"once", "--config", t.TempDir() + "/nope.yaml"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	got := strings.Join(names, ",")
	if got != "once,run,venues,version" {
		t.Fatalf("commands = %s", got)
	}
}
