package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestClientFlagsParsePeerAddressVerbose(t *testing.T) {
	opts, err := parseClientArgs([]string{"desktop", "--verbose", "--address", "10.0.0.2:24800"})
	if err != nil {
		t.Fatalf("parseClientArgs: %v", err)
	}
	if opts.peer != "desktop" {
		t.Fatalf("peer = %q, want desktop", opts.peer)
	}
	if opts.address != "10.0.0.2:24800" {
		t.Fatalf("address = %q, want 10.0.0.2:24800", opts.address)
	}
	if !opts.verbose {
		t.Fatal("--verbose was not honored")
	}
}

func TestClientRequiresPeerName(t *testing.T) {
	if _, err := parseClientArgs(nil); err == nil {
		t.Fatal("client without a peer name was accepted")
	}
	if _, err := parseClientArgs([]string{"a", "b"}); err == nil {
		t.Fatal("client with two peer names was accepted")
	}
}

func TestInfoPrintsIdentityAndPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CORENET_DATA_DIR", dir)

	var out bytes.Buffer
	if err := runInfo(&out, nil); err != nil {
		t.Fatalf("runInfo: %v", err)
	}

	for _, want := range []string{"host:", "host id:", "screen:", "data dir:", "config:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("info output missing %q:\n%s", want, out.String())
		}
	}
	if !strings.Contains(out.String(), dir) {
		t.Fatalf("info output does not mention the data dir %s:\n%s", dir, out.String())
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := run([]string{"bogus"}); err == nil {
		t.Fatal("unknown subcommand was accepted")
	}
}
