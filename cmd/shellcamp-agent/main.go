// The shellcamp-agent binary lives inside the sandbox image. "serve" runs
// the control-channel server the host drives; "notify" runs from the shell's
// prompt hook and reports the student's latest command so the host can
// snapshot the filesystem.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/agent"
	"github.com/shellcamp/shellcamp/internal/protocol"
	"github.com/shellcamp/shellcamp/internal/puzzles"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: shellcamp-agent serve|notify [flags]")
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServe(context.Background(), args[1:])
	case "notify":
		err = runNotify(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, expected serve or notify\n", args[0])
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", args[0], err)
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dataFlag := fs.String("data", protocol.DataDir, "Staged data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// The log stream ends up in the host's capture buffer, where it is
	// surfaced when the session fails.
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	registry, err := puzzles.Builtin()
	if err != nil {
		return err
	}
	return agent.New(*dataFlag, registry, logger).Serve(ctx)
}

func runNotify(args []string) error {
	fs := flag.NewFlagSet("notify", flag.ExitOnError)
	dataFlag := fs.String("data", protocol.DataDir, "Staged data directory")
	homeFlag := fs.String("home", os.Getenv("HOME"), "Student home directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return agent.Notify(*dataFlag, *homeFlag)
}
