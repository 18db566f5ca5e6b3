package main

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/teamboard/internal/timer"
	"github.com/nhle/teamboard/internal/ui/timerview"
)

func runTimer(e *env, args []string) error {
	verb, rest := subcommand(args, "status")
	switch verb {
	case "start":
		return timerStart(e, rest)
	case "stop":
		return timerStop(e, rest)
	case "status":
		return timerStatus(e, rest)
	case "watch":
		return timerWatch(e, rest)
	}
	return usagef("timer: unknown subcommand %q", verb)
}

// selectionFlags parses --task, --project and --description. The project
// defaults to the task's own project, then to the selected project.
func selectionFlags(e *env, name string, args []string) (timer.Selection, error) {
	fs := newFlags(name, e)
	var sel timer.Selection
	fs.StringVarP(&sel.TaskID, "task", "t", "", "task to track (required)")
	fs.StringVarP(&sel.ProjectID, "project", "p", "", "the task's project")
	fs.StringVarP(&sel.Description, "description", "d", "", "what you are working on")
	if err := parse(fs, args); err != nil {
		return sel, err
	}
	if sel.ProjectID == "" {
		if t, ok := e.app.Replica.Task(sel.TaskID); ok {
			sel.ProjectID = t.ProjectID
		}
	}
	if sel.ProjectID == "" {
		sel.ProjectID = e.app.Replica.SelectedProject()
	}
	return sel, nil
}

func timerStart(e *env, args []string) error {
	sel, err := selectionFlags(e, "timer start", args)
	if err != nil {
		return err
	}
	if err := e.app.Tracker.Start(e.ctx, sel); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "timer started for %s at %s\n", sel.TaskID,
		e.app.Tracker.Active().StartedAt.Local().Format("15:04:05"))
	return nil
}

func timerStop(e *env, args []string) error {
	if err := parse(newFlags("timer stop", e), args); err != nil {
		return err
	}
	// A fresh process only knows about the timer after asking the backend.
	if _, err := e.app.Tracker.Resume(e.ctx); err != nil && !e.app.Tracker.Running() {
		return err
	}
	res, err := e.app.Tracker.Stop(e.ctx)
	if err != nil {
		return err
	}
	if res.Fallback {
		fmt.Fprintf(e.stdout, "%.2fh estimated locally (not synced) as %s\n", res.Entry.Hours, res.Entry.ID)
		return nil
	}
	fmt.Fprintf(e.stdout, "%.2fh logged as %s\n", res.Entry.Hours, res.Entry.ID)
	return nil
}

func timerStatus(e *env, args []string) error {
	if err := parse(newFlags("timer status", e), args); err != nil {
		return err
	}
	running, err := e.app.Tracker.Resume(e.ctx)
	if err != nil {
		return err
	}
	if !running {
		fmt.Fprintln(e.stdout, "no timer running")
		return nil
	}
	active := e.app.Tracker.Active()
	fmt.Fprintf(e.stdout, "%s on %s (started %s)\n",
		timerview.FormatElapsed(e.app.Tracker.Elapsed()), active.TaskID,
		active.StartedAt.Local().Format("15:04:05"))
	return nil
}

func timerWatch(e *env, args []string) error {
	sel, err := selectionFlags(e, "timer watch", args)
	if err != nil {
		return err
	}
	label := sel.TaskID
	if t, ok := e.app.Replica.Task(sel.TaskID); ok {
		label = t.Title
	}

	m := timerview.New(e.ctx, e.app.Tracker, sel, label)
	if _, err := tea.NewProgram(m, tea.WithContext(e.ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running timer view: %w", err)
	}
	return nil
}
