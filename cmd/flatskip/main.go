// Command flatskip builds, inspects and serves flat skip-map snapshots.
//
//	flatskip build -in sorted.tsv [-name N] [-validate] [-unsorted]
//	flatskip find -name N key...
//	flatskip dump -name N [-from key] [-limit n]
//	flatskip stats -name N
//	flatskip list [-prefix p]
//	flatskip serve -addr :9100 -name N...
//
// Every subcommand also accepts the store, log and snapshot flags of
// internal/config.
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

var errUsage = errors.New("usage: flatskip <build|find|dump|stats|list|serve> [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "flatskip:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "build":
		return runBuild(ctx, args, stdin, stdout)
	case "find":
		return runFind(ctx, args, stdout)
	case "dump":
		return runDump(ctx, args, stdout)
	case "stats":
		return runStats(ctx, args, stdout)
	case "list":
		return runList(ctx, args, stdout)
	case "serve":
		return runServe(ctx, args, stdout)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}
