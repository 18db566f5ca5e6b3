package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/teamboard/internal/credential"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
	appsync "github.com/nhle/teamboard/internal/sync"
	"github.com/nhle/teamboard/internal/theme"
)

func runReport(e *env, args []string) error {
	fs := newFlags("report", e)
	group := fs.StringP("group-by", "g", string(model.GroupByProject), "user, project, billable, weekly or monthly")
	from := fs.String("from", "", "first day (YYYY-MM-DD)")
	to := fs.String("to", "", "last day (YYYY-MM-DD)")
	project := fs.StringP("project", "p", "", "only this project")
	user := fs.StringP("user", "u", "", "only this user")
	if err := parse(fs, args); err != nil {
		return err
	}
	g := model.ReportGroup(*group)
	if !g.Valid() {
		return usagef("report: unknown grouping %q", *group)
	}

	rows, err := e.app.Client.Report(e.ctx, remote.ReportQuery{
		GroupBy: g, From: *from, To: *to, ProjectID: *project, UserID: *user,
	})
	if err != nil {
		return err
	}
	var total, billable float64
	fmt.Fprintf(e.stdout, "%-30s %8s %8s %7s\n", strings.ToUpper(string(g)), "HOURS", "BILLABLE", "ENTRIES")
	for _, row := range rows {
		fmt.Fprintf(e.stdout, "%-30s %8.2f %8.2f %7d\n", row.Label, row.Hours, row.BillableHours, row.Entries)
		total += row.Hours
		billable += row.BillableHours
	}
	fmt.Fprintf(e.stdout, "%-30s %8.2f %8.2f\n", "total", model.RoundHours(total), model.RoundHours(billable))
	return nil
}

func runSync(e *env, args []string) error {
	fs := newFlags("sync", e)
	watch := fs.BoolP("watch", "w", false, "keep retrying on the configured interval until interrupted")
	if err := parse(fs, args); err != nil {
		return err
	}

	if !*watch {
		res, err := e.app.Sync(e.ctx)
		printSyncResult(e, res)
		return err
	}

	r := e.app.Retrier
	r.Start()
	defer r.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return nil
		case res := <-r.Results():
			printSyncResult(e, res)
			e.printNotices()
		}
	}
}

func printSyncResult(e *env, res appsync.SyncResultMsg) {
	fmt.Fprintf(e.stdout, "sent %d, failed %d, waiting %d, still pending %d\n",
		res.Sent, res.Failed, res.Deferred, res.Pending)
	if res.Abandoned > 0 {
		fmt.Fprintf(e.stdout, "dropped %d the backend refused\n", res.Abandoned)
	}
}

func runEvents(e *env, args []string) error {
	if err := parse(newFlags("events", e), args); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(e.ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-e.app.Notices.C:
				fmt.Fprintln(e.stdout, theme.NoticeStyle(n.Level).Render(n.Message))
			}
		}
	}()

	err := e.app.ListenEvents(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runLogin(e *env, args []string) error {
	fs := newFlags("login", e)
	token := fs.String("token", "", "API token to store (prompted for when omitted)")
	provider := fs.String("provider", "", "print the OAuth login URL for this provider instead (e.g. microsoft)")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *provider != "" {
		u, err := e.app.Client.LoginURL(*provider)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "open this URL to sign in:\n  %s\n", u)
		return nil
	}

	creds := e.app.Credentials
	if creds == nil {
		return errors.New("no keyring available to store the token")
	}
	if *token == "" {
		err := huh.NewInput().
			Title("API token").
			Description("Paste the token from your profile page.").
			EchoMode(huh.EchoModePassword).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("token is required")
				}
				return nil
			}).
			Value(token).
			Run()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
	}
	if err := creds.Set(credential.TokenKey, strings.TrimSpace(*token)); err != nil {
		return err
	}
	if claims, ok := remote.InspectToken(*token); ok && !claims.ExpiresAt.IsZero() {
		fmt.Fprintf(e.stdout, "token stored; it expires %s\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}

	user, err := e.app.Replica.RefreshCurrentUser(e.ctx)
	if err != nil {
		fmt.Fprintf(e.stderr, "token stored, but the backend could not confirm it: %v\n", err)
		return nil
	}
	if user == nil {
		return errors.New("the backend rejected the token")
	}
	fmt.Fprintf(e.stdout, "signed in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func runLogout(e *env, args []string) error {
	if err := parse(newFlags("logout", e), args); err != nil {
		return err
	}
	if err := e.app.Client.Logout(e.ctx); err != nil && !errors.Is(err, remote.ErrNotConfigured) {
		fmt.Fprintf(e.stderr, "backend logout failed: %v\n", err)
	}
	if e.app.Credentials != nil {
		if err := e.app.Credentials.Delete(credential.TokenKey); err != nil {
			return err
		}
	}
	e.app.Replica.SetCurrentUser(nil)
	fmt.Fprintln(e.stdout, "signed out")
	return nil
}

func runTheme(e *env, args []string) error {
	fs := newFlags("theme", e)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		current := e.app.Replica.Theme()
		if current == "" {
			current = e.app.Config.Display.Theme
		}
		fmt.Fprintln(e.stdout, current)
		return nil
	}
	pref := fs.Arg(0)
	if !theme.Apply(pref) {
		return usagef("theme: want %s, %s or %s", theme.Dark, theme.Light, theme.System)
	}
	e.app.Replica.SetTheme(pref)
	return nil
}
