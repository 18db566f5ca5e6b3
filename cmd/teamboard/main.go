// teamboard is the command line client for the team task backend. Every
// command works against the local replica first; changes reach the backend
// in the background and are retried by `teamboard sync` when it was
// unreachable.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nhle/teamboard/internal/app"
	"github.com/nhle/teamboard/internal/theme"
)

// errUsage marks errors caused by bad arguments. They exit with 2.
var errUsage = errors.New("usage")

// errHelp ends a command after its flag help was printed.
var errHelp = errors.New("help requested")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// env is what every command runs with.
type env struct {
	ctx    context.Context
	app    *app.App
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	summary string
	run     func(e *env, args []string) error
}

var commands = map[string]command{
	"tasks":    {"list, add, update, move or remove tasks", runTasks},
	"projects": {"list, add, select or remove projects", runProjects},
	"notes":    {"list or add notes", runNotes},
	"rules":    {"list or add automation rules", runRules},
	"timer":    {"start, stop, show or watch the work timer", runTimer},
	"report":   {"print an aggregated time report", runReport},
	"sync":     {"send queued changes and refresh from the backend", runSync},
	"events":   {"stream live notifications", runEvents},
	"login":    {"store an API token or print the OAuth login URL", runLogin},
	"logout":   {"end the session and forget the API token", runLogout},
	"theme":    {"show or set the color theme", runTheme},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, app.Options{}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts app.Options) error {
	flagSet := pflag.NewFlagSet("teamboard", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "path to config.yaml (default ~/.config/teamboard/config.yaml)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return usagef("%v", err)
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(stderr, flagSet)
		return nil
	}

	name := flagSet.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return usagef("unknown command %q", name)
	}

	a, err := app.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	e := &env{ctx: ctx, app: a, stdout: stdout, stderr: stderr}
	err = cmd.run(e, flagSet.Args()[1:])
	a.Replica.Wait()
	e.printNotices()
	if errors.Is(err, errHelp) {
		return nil
	}
	return err
}

// printNotices writes the notices the command produced to stderr.
func (e *env) printNotices() {
	for _, n := range e.app.DrainNotices() {
		fmt.Fprintln(e.stderr, theme.NoticeStyle(n.Level).Render(n.Level.String()+": "+n.Message))
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, "teamboard keeps a local replica of your team's board and syncs it with the backend.\n\nUsage:\n  teamboard [--config path] <command> [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprint(w, "\nFlags:\n")
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}

// subcommand splits args into a verb and the rest, defaulting to def.
func subcommand(args []string, def string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return def, args
	}
	return args[0], args[1:]
}

func newFlags(name string, e *env) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return usagef("%s: %v", fs.Name(), err)
	}
	return nil
}
