//go:build !linux

package main

import (
	"fmt"
	"os"
)

func main() {
	_, _ = fmt.Fprintln(os.Stderr, "landlock-init: landlock is only available on linux")
	os.Exit(126)
}
