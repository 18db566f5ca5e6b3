package main

import (
	"fmt"
	"strings"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
	"github.com/nhle/teamboard/internal/theme"
)

func pendingMark(e *env, kind store.EntityKind, id string) string {
	if e.app.Replica.IsPending(kind, id) {
		return theme.PendingStyle.Render(" (not synced)")
	}
	return ""
}

// === Projects ===

func runProjects(e *env, args []string) error {
	verb, rest := subcommand(args, "list")
	switch verb {
	case "list", "ls":
		return projectsList(e, rest)
	case "add":
		return projectsAdd(e, rest)
	case "select", "use":
		return projectsSelect(e, rest)
	case "rm", "delete":
		return projectsRemove(e, rest)
	}
	return usagef("projects: unknown subcommand %q", verb)
}

func projectsList(e *env, args []string) error {
	if err := parse(newFlags("projects list", e), args); err != nil {
		return err
	}
	r := e.app.Replica
	selected := r.SelectedProject()
	for _, p := range r.Projects() {
		marker := " "
		if p.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(e.stdout, "%s %-40s %-10s %3d%%  %s%s\n",
			marker, p.ID, p.Status, r.ProjectProgress(p.ID), p.Name, pendingMark(e, store.KindProject, p.ID))
	}
	return nil
}

func projectsAdd(e *env, args []string) error {
	fs := newFlags("projects add", e)
	name := fs.StringP("name", "n", "", "project name (required)")
	desc := fs.StringP("description", "d", "", "project description")
	color := fs.String("color", "blue", "color token")
	start := fs.String("start", "", "start date (YYYY-MM-DD)")
	due := fs.String("due", "", "due date (YYYY-MM-DD)")
	members := fs.StringSlice("member", nil, "member id (repeatable)")
	sel := fs.Bool("select", false, "make it the selected project")
	if err := parse(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return usagef("projects add: --name is required")
	}

	r := e.app.Replica
	id := r.CreateProject(model.Project{
		Name:        *name,
		Description: *desc,
		Color:       *color,
		StartDate:   *start,
		DueDate:     *due,
		MemberIDs:   *members,
	})
	if *sel {
		r.SelectProject(id)
	}
	r.Wait()
	fmt.Fprintln(e.stdout, r.ResolveID(store.KindProject, id))
	return nil
}

func projectsSelect(e *env, args []string) error {
	fs := newFlags("projects select", e)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("projects select <id|none>")
	}
	id := fs.Arg(0)
	if id == "none" {
		e.app.Replica.SelectProject("")
		return nil
	}
	if _, ok := e.app.Replica.Project(id); !ok {
		return fmt.Errorf("no project %s", id)
	}
	e.app.Replica.SelectProject(id)
	return nil
}

func projectsRemove(e *env, args []string) error {
	fs := newFlags("projects rm", e)
	if err := parse(fs, args); err != nil {
		return err
	}
	for _, id := range fs.Args() {
		if !e.app.Replica.DeleteProject(id) {
			fmt.Fprintf(e.stderr, "no project %s\n", id)
		}
	}
	return nil
}

// === Notes ===

func runNotes(e *env, args []string) error {
	verb, rest := subcommand(args, "list")
	switch verb {
	case "list", "ls":
		fs := newFlags("notes list", e)
		task := fs.String("task", "", "only notes on this task")
		project := fs.StringP("project", "p", "", "only notes on this project")
		if err := parse(fs, rest); err != nil {
			return err
		}
		for _, n := range e.app.Replica.Notes() {
			if (*task != "" && n.TaskID != *task) || (*project != "" && n.ProjectID != *project) {
				continue
			}
			fmt.Fprintf(e.stdout, "%s  %s  %s%s\n", n.ID, n.UpdatedAt.Format("2006-01-02 15:04"),
				firstLine(n.Content), pendingMark(e, store.KindNote, n.ID))
		}
		return nil

	case "add":
		fs := newFlags("notes add", e)
		task := fs.String("task", "", "link to a task")
		project := fs.StringP("project", "p", "", "link to a project")
		if err := parse(fs, rest); err != nil {
			return err
		}
		content := strings.Join(fs.Args(), " ")
		if strings.TrimSpace(content) == "" {
			return usagef("notes add [--task id | --project id] <text>")
		}
		r := e.app.Replica
		id := r.CreateNote(model.Note{Content: content, TaskID: *task, ProjectID: *project})
		r.Wait()
		fmt.Fprintln(e.stdout, r.ResolveID(store.KindNote, id))
		return nil

	case "rm", "delete":
		for _, id := range rest {
			if !e.app.Replica.DeleteNote(id) {
				fmt.Fprintf(e.stderr, "no note %s\n", id)
			}
		}
		return nil
	}
	return usagef("notes: unknown subcommand %q", verb)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// === Automation rules ===

func runRules(e *env, args []string) error {
	verb, rest := subcommand(args, "list")
	switch verb {
	case "list", "ls":
		if err := parse(newFlags("rules list", e), rest); err != nil {
			return err
		}
		for _, rule := range e.app.Replica.Rules() {
			state := "off"
			if rule.Enabled {
				state = "on"
			}
			fmt.Fprintf(e.stdout, "%s  [%s] %s: when %s %s then %s %s%s\n", rule.ID, state, rule.Name,
				rule.Trigger, rule.TriggerValue, rule.Action, rule.ActionValue, pendingMark(e, store.KindRule, rule.ID))
		}
		return nil

	case "add":
		fs := newFlags("rules add", e)
		name := fs.StringP("name", "n", "", "rule name (required)")
		trigger := fs.String("trigger", string(model.TriggerTaskCreated), "status_change, due_date, task_created or assignee_change")
		triggerValue := fs.String("trigger-value", "", "trigger argument")
		action := fs.String("action", string(model.ActionNotify), "notify, assign, set_status, set_priority or add_label")
		actionValue := fs.String("action-value", "", "action argument")
		project := fs.StringP("project", "p", "", "owning project (default: the selected project)")
		disabled := fs.Bool("disabled", false, "create the rule switched off")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if strings.TrimSpace(*name) == "" {
			return usagef("rules add: --name is required")
		}
		if !model.TriggerKind(*trigger).Valid() {
			return usagef("rules add: unknown trigger %q", *trigger)
		}
		if !model.ActionKind(*action).Valid() {
			return usagef("rules add: unknown action %q", *action)
		}
		r := e.app.Replica
		id := r.CreateRule(model.AutomationRule{
			Name:         *name,
			Trigger:      model.TriggerKind(*trigger),
			TriggerValue: *triggerValue,
			Action:       model.ActionKind(*action),
			ActionValue:  *actionValue,
			Enabled:      !*disabled,
			ProjectID:    *project,
		})
		r.Wait()
		fmt.Fprintln(e.stdout, r.ResolveID(store.KindRule, id))
		return nil

	case "enable", "disable":
		enabled := verb == "enable"
		for _, id := range rest {
			if !e.app.Replica.UpdateRule(id, model.RulePatch{Enabled: &enabled}) {
				fmt.Fprintf(e.stderr, "no rule %s\n", id)
			}
		}
		return nil

	case "rm", "delete":
		for _, id := range rest {
			if !e.app.Replica.DeleteRule(id) {
				fmt.Fprintf(e.stderr, "no rule %s\n", id)
			}
		}
		return nil
	}
	return usagef("rules: unknown subcommand %q", verb)
}
