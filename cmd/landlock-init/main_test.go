//go:build linux

package main

import (
	"reflect"
	"testing"
)

func TestParseOptions(t *testing.T) {
	t.Parallel()
	opts, err := parseOptions([]string{"--ro", "/usr", "--ro", "/etc", "--rw", "/tmp", "--", "sh", "-c", "echo --ro"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(opts.readDirs, []string{"/usr", "/etc"}) || !reflect.DeepEqual(opts.writeDirs, []string{"/tmp"}) {
		t.Fatalf("unexpected dirs %+v", opts)
	}
	if !reflect.DeepEqual(opts.command, []string{"sh", "-c", "echo --ro"}) {
		t.Fatalf("unexpected command %q", opts.command)
	}
}

func TestParseOptionsRequiresCommand(t *testing.T) {
	t.Parallel()
	if _, err := parseOptions([]string{"--ro", "/usr"}); err == nil {
		t.Fatalf("expected error without command")
	}
}

func TestHandledAccessByABI(t *testing.T) {
	t.Parallel()
	if handledAccess(1)&accessRefer != 0 {
		t.Fatalf("abi 1 must not handle refer")
	}
	if handledAccess(2)&accessRefer == 0 || handledAccess(2)&accessTruncate != 0 {
		t.Fatalf("abi 2 handles refer only")
	}
	if handledAccess(3)&accessTruncate == 0 {
		t.Fatalf("abi 3 must handle truncate")
	}
	if accessRead&^handledAccess(1) != 0 {
		t.Fatalf("read rights must be a subset of handled rights")
	}
}
