// Command trickle sends a payload to an HTTP endpoint at a paced rate, or
// listens as a measuring receiver for paced bodies.
//
// Usage:
//
//	trickle send -url http://kvm.local/api/hid/print -cps 50 script.txt
//	echo "uptime" | trickle send -url http://kvm.local/api/hid/print
//	trickle listen -addr :8080 -max-cps 100 -burst 20
//	trickle version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

// errUsage marks errors already reported by a flag set.
var errUsage = errors.New("usage")

// exitStatusError carries a non-zero exit code without a message.
type exitStatusError int

func (e exitStatusError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "send":
		err = runSend(ctx, args[1:], stdin, stdout, stderr)
	case "listen":
		err = runListen(ctx, args[1:], stderr)
	case "version":
		fmt.Fprintf(stdout, "trickle %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		printUsage(stderr)
		return 2
	}

	var exitErr exitStatusError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	case errors.As(err, &exitErr):
		return int(exitErr)
	default:
		fmt.Fprintf(stderr, "trickle: %v\n", err)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: trickle <command> [flags]

Commands:
  send     stream a file or stdin to a URL at a paced rate
  listen   run a receiver that measures incoming paced bodies
  version  print version information

Run 'trickle <command> -h' for command flags.
`)
}
