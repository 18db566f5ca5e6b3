package main

import (
	"fmt"
	"strings"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
	"github.com/nhle/teamboard/internal/theme"
	"github.com/nhle/teamboard/internal/ui"
)

func runTasks(e *env, args []string) error {
	verb, rest := subcommand(args, "list")
	switch verb {
	case "list", "ls":
		return tasksList(e, rest)
	case "add":
		return tasksAdd(e, rest)
	case "update", "edit":
		return tasksUpdate(e, rest)
	case "move", "mv":
		return tasksMove(e, rest)
	case "rm", "delete":
		return tasksRemove(e, rest)
	}
	return usagef("tasks: unknown subcommand %q", verb)
}

func tasksList(e *env, args []string) error {
	fs := newFlags("tasks list", e)
	project := fs.StringP("project", "p", "", "only tasks of this project (default: the selected project)")
	all := fs.Bool("all", false, "ignore the selected project")
	flat := fs.Bool("flat", false, "one task per line instead of the board")
	width := fs.Int("width", 28, "board column width")
	if err := parse(fs, args); err != nil {
		return err
	}

	r := e.app.Replica
	scope := *project
	if scope == "" && !*all {
		scope = r.SelectedProject()
	}
	tasks := r.Tasks()
	if scope != "" {
		kept := tasks[:0]
		for _, t := range tasks {
			if t.ProjectID == scope {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}
	pending := func(id string) bool { return r.IsPending(store.KindTask, id) }

	if !*flat {
		fmt.Fprintln(e.stdout, ui.RenderBoard(model.TaskColumns(tasks), *width, pending))
		return nil
	}
	for _, status := range model.TaskStatuses {
		for _, t := range model.TaskColumns(tasks)[status] {
			fmt.Fprintf(e.stdout, "%-40s %s %s\n", t.ID,
				theme.StatusStyle(t.Status).Render(string(t.Status)),
				ui.TaskLine(t, pending(t.ID)))
		}
	}
	return nil
}

func tasksAdd(e *env, args []string) error {
	fs := newFlags("tasks add", e)
	title := fs.StringP("title", "t", "", "task title (required)")
	desc := fs.StringP("description", "d", "", "task description")
	project := fs.StringP("project", "p", "", "project id (default: the selected project)")
	status := fs.String("status", string(model.StatusTodo), "todo, in_progress, in_review or done")
	priority := fs.String("priority", string(model.PriorityMedium), "low, medium, high or urgent")
	due := fs.String("due", "", "due date (YYYY-MM-DD)")
	assignees := fs.StringSlice("assignee", nil, "assignee member id (repeatable)")
	labels := fs.StringSlice("label", nil, "label (repeatable)")
	blockedBy := fs.StringSlice("blocked-by", nil, "id of a blocking task (repeatable)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*title) == "" {
		return usagef("tasks add: --title is required")
	}
	if !model.TaskStatus(*status).Valid() {
		return usagef("tasks add: unknown status %q", *status)
	}
	if !model.Priority(*priority).Valid() {
		return usagef("tasks add: unknown priority %q", *priority)
	}
	if *project == "" {
		*project = e.app.Replica.SelectedProject()
	}

	id := e.app.Replica.CreateTask(model.Task{
		Title:       *title,
		Description: *desc,
		Status:      model.TaskStatus(*status),
		Priority:    model.Priority(*priority),
		ProjectID:   *project,
		DueDate:     *due,
		AssigneeIDs: *assignees,
		Labels:      *labels,
		BlockedBy:   *blockedBy,
	})
	e.app.Replica.Wait()
	fmt.Fprintln(e.stdout, e.app.Replica.ResolveID(store.KindTask, id))
	return nil
}

func tasksUpdate(e *env, args []string) error {
	fs := newFlags("tasks update", e)
	title := fs.StringP("title", "t", "", "new title")
	desc := fs.StringP("description", "d", "", "new description")
	status := fs.String("status", "", "new status")
	priority := fs.String("priority", "", "new priority")
	due := fs.String("due", "", "new due date (YYYY-MM-DD, empty clears)")
	project := fs.StringP("project", "p", "", "move to project")
	assignees := fs.StringSlice("assignee", nil, "replace assignees")
	labels := fs.StringSlice("label", nil, "replace labels")
	blockedBy := fs.StringSlice("blocked-by", nil, "replace blocking tasks")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("tasks update <id> [flags]")
	}
	id := fs.Arg(0)

	var patch model.TaskPatch
	if fs.Changed("title") {
		patch.Title = title
	}
	if fs.Changed("description") {
		patch.Description = desc
	}
	if fs.Changed("status") {
		s := model.TaskStatus(*status)
		if !s.Valid() {
			return usagef("tasks update: unknown status %q", *status)
		}
		patch.Status = &s
	}
	if fs.Changed("priority") {
		p := model.Priority(*priority)
		if !p.Valid() {
			return usagef("tasks update: unknown priority %q", *priority)
		}
		patch.Priority = &p
	}
	if fs.Changed("due") {
		patch.DueDate = due
	}
	if fs.Changed("project") {
		patch.ProjectID = project
	}
	if fs.Changed("assignee") {
		patch.AssigneeIDs = *assignees
	}
	if fs.Changed("label") {
		patch.Labels = *labels
	}
	if fs.Changed("blocked-by") {
		patch.BlockedBy = *blockedBy
	}

	if !e.app.Replica.UpdateTask(id, patch) {
		return fmt.Errorf("no task %s", id)
	}
	return nil
}

func tasksMove(e *env, args []string) error {
	fs := newFlags("tasks move", e)
	index := fs.IntP("index", "i", -1, "position in the target column, 0-based (default: last)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usagef("tasks move <id> <status> [--index n]")
	}
	id, status := fs.Arg(0), model.TaskStatus(fs.Arg(1))
	if !status.Valid() {
		return usagef("tasks move: unknown status %q", status)
	}
	pos := *index
	if pos < 0 {
		pos = len(e.app.Replica.Columns()[status])
	}
	if !e.app.Replica.MoveTask(id, status, pos) {
		return fmt.Errorf("no task %s", id)
	}
	return nil
}

func tasksRemove(e *env, args []string) error {
	fs := newFlags("tasks rm", e)
	if err := parse(fs, args); err != nil {
		return err
	}
	for _, id := range fs.Args() {
		if !e.app.Replica.DeleteTask(id) {
			fmt.Fprintf(e.stderr, "no task %s\n", id)
		}
	}
	return nil
}
