package replica

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
	"github.com/nhle/teamboard/internal/store"
)

// Refresh pulls every collection from the backend and replaces the local
// copies. Entities with local changes the backend has not confirmed keep
// their local copy, and entities deleted locally stay deleted. Collections
// that fail to load are left untouched; their errors are joined.
func (r *Replica) Refresh(ctx context.Context) error {
	r.mu.Lock()
	before := maps.Clone(r.versions)
	r.mu.Unlock()

	tasks, errTasks := r.backend.ListTasks(ctx, remote.TaskFilter{})
	if errors.Is(errTasks, remote.ErrNotConfigured) {
		return errTasks
	}
	projects, errProjects := r.backend.ListProjects(ctx)
	members, errMembers := r.backend.ListTeamMembers(ctx)
	entries, errEntries := r.backend.ListTimeEntries(ctx, remote.TimeEntryFilter{})
	rules, errRules := r.backend.ListAutomationRules(ctx, "")
	notes, errNotes := r.backend.ListNotes(ctx, "", "")
	notifications, errNotifications := r.backend.ListNotifications(ctx)
	user, errUser := r.backend.CurrentUser(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if errTasks == nil {
		mergeServer(r, taskOps, tasks, before)
	}
	if errProjects == nil {
		mergeServer(r, projectOps, projects, before)
	}
	if errEntries == nil {
		mergeServer(r, entryOps, entries, before)
	}
	if errRules == nil {
		mergeServer(r, ruleOps, rules, before)
	}
	if errNotes == nil {
		mergeServer(r, noteOps, notes, before)
	}
	if errMembers == nil {
		r.members = members
		if err := r.cache.SaveMembers(context.Background(), members); err != nil {
			r.logger.Error("persisting team members failed", "err", err)
		}
	}
	if errNotifications == nil {
		r.mergeNotificationsLocked(notifications)
	}
	if errUser == nil {
		r.setCurrentUserLocked(user)
	}

	err := errors.Join(
		wrapRefresh("tasks", errTasks),
		wrapRefresh("projects", errProjects),
		wrapRefresh("team members", errMembers),
		wrapRefresh("time entries", errEntries),
		wrapRefresh("automation rules", errRules),
		wrapRefresh("notes", errNotes),
		wrapRefresh("notifications", errNotifications),
		wrapRefresh("current user", errUser),
	)
	if err != nil {
		r.notifyLocked(Notice{Level: NoticeWarning, Message: "could not refresh everything from the backend; showing local data"})
		r.logger.Debug("refresh errors", "err", err)
	}
	return err
}

func wrapRefresh(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("refreshing %s: %w", what, err)
}

// mergeServer replaces a collection with the server's list, keeping local
// copies that are still dirty. Dirty local-only entities stay at the head.
func mergeServer[T, P any](r *Replica, o *kindOps[T, P], server []T, before map[entityKey]uint64) {
	local := make(map[string]T, len(*o.items(r)))
	for _, v := range *o.items(r) {
		local[o.id(v)] = v
	}
	onServer := make(map[string]bool, len(server))
	for _, v := range server {
		onServer[o.id(v)] = true
	}

	out := make([]T, 0, len(server)+len(local))
	for _, v := range *o.items(r) {
		id := o.id(v)
		if !onServer[id] && r.dirtyLocked(o.key(id), before) {
			out = append(out, v)
		}
	}
	for _, v := range server {
		id := o.id(v)
		k := o.key(id)
		if r.deleting[k] || r.queued[k] == store.OpDelete {
			continue
		}
		if r.dirtyLocked(k, before) {
			// Deleted locally while the list was in flight when absent.
			if lv, ok := local[id]; ok {
				out = append(out, lv)
			}
			continue
		}
		// The server copy wins, so an earlier refusal no longer applies.
		delete(r.stale, k)
		out = append(out, v)
	}

	*o.items(r) = out
	o.persist(r)
}

// mergeNotificationsLocked replaces the notification list, keeping pushed
// notifications the list does not include yet and read flags set locally.
func (r *Replica) mergeNotificationsLocked(server []model.Notification) {
	read := make(map[string]bool)
	onServer := make(map[string]bool, len(server))
	for _, n := range r.notifications {
		if n.Read {
			read[n.ID] = true
		}
	}
	out := make([]model.Notification, 0, len(server)+len(r.notifications))
	for _, n := range server {
		onServer[n.ID] = true
	}
	for _, n := range r.notifications {
		if !onServer[n.ID] {
			out = append(out, n)
		}
	}
	for _, n := range server {
		n.Read = n.Read || read[n.ID]
		out = append(out, n)
	}
	r.notifications = out
}

// RefreshCurrentUser asks the backend who is signed in. A rejected or
// missing session clears the user; any other failure keeps the cached one.
func (r *Replica) RefreshCurrentUser(ctx context.Context) (*model.CurrentUser, error) {
	user, err := r.backend.CurrentUser(ctx)
	if err != nil {
		r.logger.Debug("current user unavailable, keeping cached profile", "err", err)
		return r.CurrentUser(), err
	}
	r.SetCurrentUser(user)
	return r.CurrentUser(), nil
}
