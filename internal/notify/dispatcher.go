// Package notify fans workspace events out to in-app notifications and,
// where the recipient's preferences allow it, to email.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatflow/api/internal/email"
	"chatflow/api/internal/logger"
	"chatflow/api/internal/store"
	"chatflow/api/internal/util"
)

const defaultEmailTimeout = 30 * time.Second

type Store interface {
	InsertNotification(ctx context.Context, notification store.Notification) error
	GetNotificationPreferences(ctx context.Context, userID string) (store.NotificationPreferences, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

type Mailer interface {
	IsConfigured() bool
	SendNotificationEmail(ctx context.Context, data email.NotificationData) error
}

type Event struct {
	Kind         string
	WorkspaceID  string
	ActorID      string
	RecipientIDs []string
	Title        string
	Body         string
	Link         string
	// SkipEmail stores the in-app notification only. Set when the caller
	// already mailed the recipient about the same event.
	SkipEmail bool
}

type Dispatcher struct {
	store        Store
	mailer       Mailer
	emailTimeout time.Duration
	now          func() time.Time

	pending sync.WaitGroup
}

func NewDispatcher(s Store, mailer Mailer) *Dispatcher {
	return &Dispatcher{
		store:        s,
		mailer:       mailer,
		emailTimeout: defaultEmailTimeout,
		now:          time.Now,
	}
}

// Dispatch stores one notification per distinct recipient, skipping the
// actor. Emails are sent in the background on a context detached from the
// caller, bounded by the dispatcher's email timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) ([]store.Notification, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "notify", WorkspaceID: event.WorkspaceID})

	created := make([]store.Notification, 0, len(event.RecipientIDs))
	seen := make(map[string]struct{}, len(event.RecipientIDs))
	for _, recipientID := range event.RecipientIDs {
		if recipientID == "" || recipientID == event.ActorID {
			continue
		}
		if _, ok := seen[recipientID]; ok {
			continue
		}
		seen[recipientID] = struct{}{}

		notification := store.Notification{
			ID:          util.NewID("ntf"),
			UserID:      recipientID,
			WorkspaceID: event.WorkspaceID,
			Kind:        event.Kind,
			Title:       event.Title,
			Body:        event.Body,
			Link:        event.Link,
			CreatedAt:   d.now().UTC(),
		}
		if err := d.store.InsertNotification(ctx, notification); err != nil {
			return created, fmt.Errorf("insert notification: %w", err)
		}
		created = append(created, notification)
		if !event.SkipEmail {
			d.maybeEmail(ctx, notification)
		}
	}
	return created, nil
}

// Wait blocks until background emails started so far have finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

func (d *Dispatcher) maybeEmail(ctx context.Context, notification store.Notification) {
	if d.mailer == nil || !d.mailer.IsConfigured() {
		return
	}
	prefs, err := d.store.GetNotificationPreferences(ctx, notification.UserID)
	if err != nil {
		slog.WarnContext(ctx, "load notification preferences failed", "user_id", notification.UserID, "error", err)
		return
	}
	if !WantsEmail(prefs, notification.Kind) {
		return
	}

	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.emailTimeout)
		defer cancel()

		recipient, err := d.store.GetUserByID(sendCtx, notification.UserID)
		if err != nil {
			slog.WarnContext(sendCtx, "load notification recipient failed", "user_id", notification.UserID, "error", err)
			return
		}
		err = d.mailer.SendNotificationEmail(sendCtx, email.NotificationData{
			To:       recipient.Email,
			UserName: recipient.DisplayName,
			Title:    notification.Title,
			Body:     notification.Body,
			Link:     notification.Link,
		})
		if err != nil {
			slog.ErrorContext(sendCtx, "notification email failed", "user_id", notification.UserID, "kind", notification.Kind, "error", err)
		}
	}()
}

func WantsEmail(prefs store.NotificationPreferences, kind string) bool {
	switch kind {
	case store.NotificationMention:
		return prefs.EmailMentions
	case store.NotificationTaskAssigned:
		return prefs.EmailTaskAssigned
	case store.NotificationInvitation:
		return prefs.EmailInvitations
	default:
		return false
	}
}
