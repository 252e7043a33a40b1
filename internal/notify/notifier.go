package notify

import (
	"context"
	"slices"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/i18n"
	"github.com/pkordes/vehicle-requests/backend/internal/livesync"
)

// Collection names used in change messages and notifications.
const (
	RequestsCollection = "requests"
	TripsCollection    = "trips"
)

// Translator renders a message id in the locale carried by ctx.
type Translator interface {
	T(ctx context.Context, messageID string, templateData ...map[string]any) string
}

// Notifier turns synchronizer deltas and approval events into hub traffic.
// Notification texts use the translator's default locale since they are
// broadcast to everyone.
type Notifier struct {
	hub *Hub
	tr  Translator
}

// NewNotifier returns a Notifier publishing to hub.
func NewNotifier(hub *Hub, tr Translator) *Notifier {
	return &Notifier{hub: hub, tr: tr}
}

// RequestChanged is a livesync.Observer for the requests collection.
// Every delta is broadcast; approvals get no notification here since
// ApprovalCommitted reports them.
func (n *Notifier) RequestChanged(c livesync.Change[domain.Request]) {
	n.hub.Broadcast(changeMessage(RequestsCollection, c))
	if c.Kind == livesync.Modified && c.Prev.Status != domain.RequestApproved && c.Doc.Status == domain.RequestApproved {
		return
	}

	id := map[livesync.ChangeKind]string{
		livesync.Added:    i18n.MsgRequestAdded,
		livesync.Modified: i18n.MsgRequestUpdated,
		livesync.Removed:  i18n.MsgRequestDeleted,
	}[c.Kind]
	n.hub.Publish(domain.Notification{
		Type:       notificationType(c.Kind),
		Collection: RequestsCollection,
		DocumentID: c.Key,
		Details:    n.tr.T(context.Background(), id, map[string]any{"Name": c.Doc.RequesterName}),
	})
}

// TripChanged is a livesync.Observer for the trips collection. A trip
// created or grown by an approval gets no notification of its own.
func (n *Notifier) TripChanged(c livesync.Change[domain.Trip]) {
	n.hub.Broadcast(changeMessage(TripsCollection, c))
	if fromApproval(c) {
		return
	}

	id := map[livesync.ChangeKind]string{
		livesync.Added:    i18n.MsgTripAdded,
		livesync.Modified: i18n.MsgTripUpdated,
		livesync.Removed:  i18n.MsgTripDeleted,
	}[c.Kind]
	n.hub.Publish(domain.Notification{
		Type:       notificationType(c.Kind),
		Collection: TripsCollection,
		DocumentID: c.Key,
		Details:    n.tr.T(context.Background(), id, map[string]any{"TripCode": c.Doc.TripCode}),
	})
}

// ApprovalCommitted publishes an approval notification.
func (n *Notifier) ApprovalCommitted(_ context.Context, ev domain.ApprovalEvent) {
	n.hub.Publish(domain.Notification{
		ID:         ev.ID,
		Type:       domain.NotificationApproved,
		Collection: RequestsCollection,
		DocumentID: ev.RequestID,
		Details: n.tr.T(context.Background(), i18n.MsgRequestApproved, map[string]any{
			"Name":     ev.RequesterName,
			"TripCode": ev.TripCode,
		}),
		Timestamp: ev.At,
	})
}

// fromApproval reports whether a trip delta is the trip side of an approval:
// trips only come into being through approvals, and merges add request ids.
func fromApproval(c livesync.Change[domain.Trip]) bool {
	switch c.Kind {
	case livesync.Added:
		return len(c.Doc.RequestIDs) > 0
	case livesync.Modified:
		return slices.ContainsFunc(c.Doc.RequestIDs, func(id string) bool {
			return !slices.Contains(c.Prev.RequestIDs, id)
		})
	}
	return false
}

// AttemptFailed publishes a notice that an edit or approval did not go
// through.
func (n *Notifier) AttemptFailed(_ context.Context, a domain.FailedAttempt) {
	id := i18n.MsgUpdateFailed
	if a.Action == domain.AttemptApprove {
		id = i18n.MsgApproveFailed
	}
	n.hub.Publish(domain.Notification{
		Type:       domain.NotificationUpdateAttempt,
		Collection: RequestsCollection,
		DocumentID: a.RequestID,
		Details: n.tr.T(context.Background(), id, map[string]any{
			"Name":   a.RequesterName,
			"Reason": a.Reason,
		}),
		Timestamp: a.At,
	})
}

func changeMessage[T any](collection string, c livesync.Change[T]) Message {
	return Message{
		Type:       MessageChange,
		Collection: collection,
		Kind:       string(c.Kind),
		Key:        c.Key,
		Document:   c.Doc,
	}
}

func notificationType(k livesync.ChangeKind) domain.NotificationType {
	switch k {
	case livesync.Added:
		return domain.NotificationAdded
	case livesync.Removed:
		return domain.NotificationDeleted
	}
	return domain.NotificationUpdated
}
