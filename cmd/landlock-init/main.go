//go:build linux

// Command landlock-init restricts itself with Landlock filesystem rules and
// then execs the given command, which inherits the restrictions.
//
//	landlock-init --ro /usr --rw /tmp [--seccomp-profile p.json] -- sh -c 'cmd'
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "landlock-init: "+err.Error())
		os.Exit(126)
	}
}

type options struct {
	readDirs       []string
	writeDirs      []string
	seccompProfile string
	command        []string
}

func parseOptions(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("landlock-init", pflag.ContinueOnError)
	fs.StringArrayVar(&opts.readDirs, "ro", nil, "directory granted read and execute access (repeatable)")
	fs.StringArrayVar(&opts.writeDirs, "rw", nil, "directory granted full access (repeatable)")
	fs.StringVar(&opts.seccompProfile, "seccomp-profile", "", "optional seccomp profile (JSON)")
	fs.SetInterspersed(false)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.command = fs.Args()
	if len(opts.command) == 0 {
		return options{}, errors.New("command is required after --")
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}

	// Landlock domains and no_new_privs attach to the calling thread, and
	// exec must happen from that same thread.
	runtime.LockOSThread()

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := restrictSelf(opts.readDirs, opts.writeDirs); err != nil {
		return err
	}
	if opts.seccompProfile != "" {
		if err := applySeccomp(opts.seccompProfile); err != nil {
			return err
		}
	}

	cmdPath, err := exec.LookPath(opts.command[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	return unix.Exec(cmdPath, opts.command, os.Environ())
}
