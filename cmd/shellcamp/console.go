package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shellcamp/shellcamp/internal/puzzle"
	"github.com/shellcamp/shellcamp/internal/tutorial"
)

// console is the minimal line-driven front end of a session: list puzzles,
// grade answers, flip into the sandbox shell and back.
type console struct {
	tut     *tutorial.Tutorial
	home    string
	current []*puzzle.Data
	cheered bool
}

func newConsole(tut *tutorial.Tutorial, home string) *console {
	return &console{tut: tut, home: home}
}

func (c *console) run(ctx context.Context) error {
	fmt.Println("Type \"help\" for commands; \"shell\" drops you into the sandbox.")
	c.printPuzzles()

	s := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("camp> ")
		if !s.Scan() {
			fmt.Println()
			return s.Err()
		}
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "help":
			c.printHelp()
		case "puzzles":
			c.printPuzzles()
		case "solve":
			err = c.solve(ctx, fields[1:])
		case "shell":
			err = c.attach()
		case "files":
			err = c.files(ctx, fields[1:])
		case "cwd":
			err = c.cwd(ctx)
		case "score":
			c.printScore()
		case "undo":
			err = c.undo(ctx)
		case "restart":
			err = c.restart(ctx)
		case "quit", "exit":
			return nil
		default:
			fmt.Printf("Unknown command %q, try \"help\".\n", fields[0])
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func (c *console) printHelp() {
	fmt.Print(`Commands:
  puzzles            List the puzzles currently open
  solve N [answer]   Grade puzzle N, with an answer when it asks for one
  shell              Enter the sandbox shell (detach with Ctrl-P Ctrl-Q)
  files [folder]     List a sandbox folder (default: the student home)
  cwd                Show where the student's shell is
  score              Show the score and elapsed time
  undo               Rewind the last command or solve
  restart            Rewind to the start of the session
  quit               End the session and tear the sandbox down
`)
}

// printPuzzles refreshes the numbered list the solve command indexes into.
func (c *console) printPuzzles() {
	c.current = c.tut.CurrentPuzzles()
	fmt.Println()
	for i, p := range c.current {
		mark := " "
		if p.Solved {
			mark = "x"
		}
		fmt.Printf("  %2d. [%s] %s\n", i+1, mark, p.Question)
	}
	fmt.Println()
}

func (c *console) solve(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: solve N [answer]")
		return nil
	}
	target, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	var flag *string
	if len(args) > 1 {
		answer := strings.Join(args[1:], " ")
		flag = &answer
	}
	solved, feedback, err := c.tut.SolvePuzzle(ctx, target.ID, flag)
	if err != nil {
		return err
	}
	fmt.Println(feedback)
	if solved {
		c.printPuzzles()
		c.maybeCheer()
	}
	return nil
}

// resolve maps a list number or a full puzzle id to a current puzzle.
func (c *console) resolve(arg string) (*puzzle.Data, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(c.current) {
			return nil, fmt.Errorf("no puzzle %d on the list, run \"puzzles\"", n)
		}
		return c.current[n-1], nil
	}
	for _, p := range c.current {
		if p.ID == arg {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no puzzle %q on the list, run \"puzzles\"", arg)
}

// attach hands the terminal to the student's shell until they detach. The
// shell is the container's main process, so exiting it ends the container;
// undo brings the session back from the last snapshot.
func (c *console) attach() error {
	cmd, err := c.tut.AttachCommand()
	if err != nil {
		return err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	fmt.Println("Entering the sandbox shell, detach with Ctrl-P Ctrl-Q.")
	var exitErr *exec.ExitError
	if err := cmd.Run(); err != nil && !errors.As(err, &exitErr) {
		return err
	}
	return nil
}

func (c *console) files(ctx context.Context, args []string) error {
	folder := c.home
	if len(args) > 0 {
		folder = args[0]
		if !path.IsAbs(folder) {
			folder = path.Join(c.home, folder)
		}
	}
	infos, err := c.tut.Files(ctx, folder)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("(empty)")
		return nil
	}
	for _, info := range infos {
		suffix := ""
		if info.Dir {
			suffix = "/"
		}
		if info.Symlink {
			suffix += "@"
		}
		fmt.Printf("  %s%s\n", info.Path, suffix)
	}
	return nil
}

func (c *console) cwd(ctx context.Context) error {
	cwd, err := c.tut.StudentCwd(ctx)
	if err != nil {
		return err
	}
	fmt.Println(cwd)
	return nil
}

func (c *console) printScore() {
	fmt.Printf("Score %d/%d after %s.\n",
		c.tut.CurrentScore(), c.tut.TotalScore(), c.tut.Elapsed().Round(time.Second))
}

func (c *console) undo(ctx context.Context) error {
	if !c.tut.CanUndo() {
		fmt.Println("Nothing to undo.")
		return nil
	}
	if err := c.tut.Undo(ctx); err != nil {
		return err
	}
	fmt.Println("Rewound one step.")
	c.printPuzzles()
	return nil
}

func (c *console) restart(ctx context.Context) error {
	if err := c.tut.Restart(ctx); err != nil {
		return err
	}
	fmt.Println("Back at the beginning.")
	c.printPuzzles()
	return nil
}

func (c *console) maybeCheer() {
	if c.cheered || !c.tut.IsFinished() {
		return
	}
	c.cheered = true
	fmt.Println("All puzzles solved, well done! 🏕️")
	c.printScore()
}
