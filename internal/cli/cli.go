// Package cli implements the bankcli command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cassiomorais/bankclient/internal/bootstrap"
	"github.com/cassiomorais/bankclient/internal/client"
	"github.com/cassiomorais/bankclient/internal/infrastructure/config"
	"github.com/spf13/pflag"
)

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// errUsage marks mistakes in how the command was invoked.
var errUsage = errors.New("usage error")

type command struct {
	usage   string
	summary string
	args    int
	flags   func(fs *pflag.FlagSet)
	run     func(ctx context.Context, e *env, fs *pflag.FlagSet, args []string) error
}

var commands = map[string]command{
	"validate": validateCmd,
	"balance":  balanceCmd,
	"transfer": transferCmd,
	"history":  historyCmd,
	"token":    tokenCmd,
	"health":   healthCmd,
	"stats":    statsCmd,
	"demo":     demoCmd,
}

// env is what a command runs against.
type env struct {
	client *client.Client
	out    io.Writer
	in     io.Reader
}

// CLI holds the process streams so tests can drive it in memory.
type CLI struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
}

func New() *CLI {
	return &CLI{Stdout: os.Stdout, Stderr: os.Stderr, Stdin: os.Stdin}
}

// Run executes one command and returns the process exit code.
func (c *CLI) Run(ctx context.Context, args []string) int {
	global := pflag.NewFlagSet("bankcli", pflag.ContinueOnError)
	global.SetOutput(io.Discard)
	global.SetInterspersed(false)
	configFile := global.String("config", "", "path to a YAML config file")
	global.String("base-url", "", "banking service base URL")
	global.Duration("timeout", 0, "per-request timeout, e.g. 30s")
	global.Int("max-retries", 0, "retries for transient failures (0-10)")
	global.String("log-format", "console", "console or json")
	global.BoolP("verbose", "v", false, "debug logging")
	help := global.BoolP("help", "h", false, "show help")

	if err := global.Parse(args); err != nil {
		return c.usageError(err, global)
	}
	if *help || global.NArg() == 0 {
		c.printUsage(global)
		if *help {
			return ExitOK
		}
		return ExitUsage
	}

	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return c.usageError(fmt.Errorf("unknown command %q", name), global)
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	fs.AddFlagSet(global)
	if err := fs.Parse(global.Args()[1:]); err != nil {
		return c.usageError(err, global)
	}
	if *help {
		fmt.Fprintf(c.Stdout, "Usage: bankcli %s\n\n%s\n\nFlags:\n%s", cmd.usage, cmd.summary, fs.FlagUsages())
		return ExitOK
	}
	if fs.NArg() != cmd.args {
		return c.usageError(fmt.Errorf("%s expects %d argument(s): bankcli %s", name, cmd.args, cmd.usage), global)
	}

	app, err := bootstrap.New(ctx, "bankcli", config.LoadOptions{File: *configFile, Flags: global}, c.Stderr)
	if err != nil {
		fmt.Fprintf(c.Stderr, "Error: %v\n", err)
		return ExitFailure
	}
	defer app.Close()

	cl, err := client.New(client.Options{
		Config:   app.Config,
		Logger:   app.Logger,
		Registry: app.Registry,
	})
	if err != nil {
		fmt.Fprintf(c.Stderr, "Error: %v\n", err)
		return ExitFailure
	}
	defer cl.Close()

	err = cmd.run(ctx, &env{client: cl, out: c.Stdout, in: c.Stdin}, fs, fs.Args())
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errUsage):
		return c.usageError(err, global)
	default:
		fmt.Fprintf(c.Stderr, "Error: %v\n", err)
		return ExitFailure
	}
}

func (c *CLI) usageError(err error, global *pflag.FlagSet) int {
	fmt.Fprintf(c.Stderr, "Error: %v\n\n", err)
	c.printUsage(global)
	return ExitUsage
}

func (c *CLI) printUsage(global *pflag.FlagSet) {
	w := c.Stderr
	fmt.Fprintln(w, "Usage: bankcli [global flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-40s %s\n", commands[name].usage, commands[name].summary)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprint(w, global.FlagUsages())
}

func usagef(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, a...))
}

func yes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
