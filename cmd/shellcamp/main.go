// The shellcamp binary runs training sessions: it loads a tutorial
// definition, brings up the sandbox and hands the terminal back and forth
// between the student's shell and a small session console.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shellcamp/shellcamp/internal/config"
	"github.com/shellcamp/shellcamp/internal/puzzles"
	"github.com/shellcamp/shellcamp/internal/tutorial"
)

func main() {
	// Load .env overrides if present, the same knobs the sandbox config reads.
	_ = godotenv.Load()

	ctx := context.Background()

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "init" {
		if err := runInit(args[1:]); err != nil {
			log.Fatalf("init failed: %v", err)
		}
		return
	}

	if err := runSession(ctx, args); err != nil {
		log.Fatalf("session failed: %v", err)
	}
}

// runInit scaffolds a starter tutorial definition built from the built-in
// puzzle modules.
func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dirFlag := fs.String("dir", ".", "Directory to scaffold the tutorial in")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := filepath.Join(*dirFlag, "shellcamp.json")
	if config.Exists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	starter := &config.Config{
		Puzzles: []config.PuzzleNode{
			{Template: "navigate.cd"},
			{Template: "move.rename", Children: []config.PuzzleNode{{Template: "grep.find"}}},
			{Template: "perms.executable"},
			{Template: "history.first"},
		},
		Transcript: "transcript.db",
	}
	if err := config.Save(path, starter); err != nil {
		return err
	}
	log.Printf("Wrote %s", path)
	return nil
}

func runSession(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("shellcamp", flag.ExitOnError)
	configFlag := fs.String("config", "shellcamp.json", "Path to the tutorial definition")
	debugFlag := fs.Bool("debug", false, "Log everything the session does")
	if err := fs.Parse(args); err != nil {
		return err
	}
	configPath := *configFlag
	if fs.NArg() > 0 {
		configPath = fs.Arg(0)
	}

	logger, err := buildLogger(*debugFlag)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	registry, err := puzzles.Builtin()
	if err != nil {
		return err
	}
	tut, err := tutorial.New(cfg, registry, logger)
	if err != nil {
		return err
	}

	log.Println("Starting the sandbox...")
	if err := tut.Start(ctx); err != nil {
		return err
	}
	log.Println("✅ Sandbox ready")

	// Ctrl-C tears the session down instead of orphaning the container.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupts
		log.Println("Interrupted, stopping the session...")
		if err := tut.Stop(context.Background()); err != nil {
			log.Printf("⚠️  cleanup failed: %v", err)
		}
		os.Exit(130)
	}()

	runErr := newConsole(tut, cfg.Home).run(ctx)

	signal.Stop(interrupts)
	if err := tut.Stop(context.Background()); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			log.Printf("⚠️  cleanup failed: %v", err)
		}
	}
	return runErr
}

// buildLogger keeps the console quiet by default; --debug turns on the full
// session log.
func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
