// Package main provides zapsim, a simulator and scripting CLI for the
// zoneftl translation layer backed by a plain file standing in for a
// zoned block device.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zoneftl/zoneftl/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env, sigCh)

	os.Exit(exitCode)
}
