// Package seed holds the demo collections substituted whenever a persisted
// collection is absent or unreadable.
package seed

import (
	"time"

	"freshnest/internal/domain"
)

// Demo identities. Role switching in the demo swaps the declared caller
// identity between these two; it never rewrites ownership fields.
const (
	HostID        = "host-demo"
	HostName      = "Marie Dupont"
	HostAvatar    = "https://randomuser.me/api/portraits/women/44.jpg"
	CleanerID     = "cleaner-demo"
	CleanerName   = "Thomas L."
	CleanerAvatar = "https://randomuser.me/api/portraits/men/32.jpg"
)

func stamp(now time.Time, back time.Duration) string {
	return now.Add(-back).UTC().Format(time.RFC3339)
}

func stampPtr(now time.Time, back time.Duration) *string {
	s := stamp(now, back)
	return &s
}

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }

// Requests returns the demo request collection with timestamps laid out
// relative to now.
func Requests(now time.Time) []domain.ServiceRequest {
	return []domain.ServiceRequest{
		{
			ID: "request-1",
			Asset: domain.AssetSnapshot{
				Ref:     "asset-1",
				Name:    "Studio Marais",
				Address: "15 Rue des Archives, Paris 4e",
				Surface: 25,
				Type:    "Studio",
				Image:   "https://images.unsplash.com/photo-1502672260266-1c1ef2d93688?w=400&h=300&fit=crop",
			},
			HostID:        HostID,
			HostName:      HostName,
			HostAvatar:    HostAvatar,
			CleanerID:     strPtr(CleanerID),
			CleanerName:   strPtr(CleanerName),
			CleanerAvatar: strPtr(CleanerAvatar),
			Schedule:      domain.Schedule{Date: "2025-01-21", Time: "14:00", Duration: "2h"},
			Price:         55,
			Status:        domain.StatusConfirmed,
			Instructions:  "Please air the rooms out after cleaning.",
			CreatedAt:     stamp(now, 24*time.Hour),
			AppliedAt:     stampPtr(now, 23*time.Hour),
			ConfirmedAt:   stampPtr(now, 22*time.Hour),
		},
		{
			ID: "request-2",
			Asset: domain.AssetSnapshot{
				Ref:     "asset-2",
				Name:    "Appartement Bastille",
				Address: "42 Rue de la Roquette, Paris 11e",
				Surface: 45,
				Type:    "T2",
				Image:   "https://images.unsplash.com/photo-1560448204-e02f11c3d0e2?w=400&h=300&fit=crop",
			},
			HostID:     HostID,
			HostName:   HostName,
			HostAvatar: HostAvatar,
			Schedule:   domain.Schedule{Date: "2025-01-22", Time: "10:00", Duration: "3h"},
			Price:      72,
			Status:     domain.StatusPending,
			CreatedAt:  stamp(now, time.Hour),
		},
		{
			ID: "request-3",
			Asset: domain.AssetSnapshot{
				Ref:     "asset-3",
				Name:    "Loft Oberkampf",
				Address: "25 Rue Oberkampf, Paris 11e",
				Surface: 80,
				Type:    "Loft",
				Image:   "https://images.unsplash.com/photo-1493809842364-78817add7ffb?w=400&h=300&fit=crop",
			},
			HostID:       HostID,
			HostName:     HostName,
			HostAvatar:   HostAvatar,
			Schedule:     domain.Schedule{Date: "2025-01-23", Time: "09:00", Duration: "4h"},
			Price:        95,
			Status:       domain.StatusPending,
			Instructions: "Spring deep clean, please include the windows.",
			CreatedAt:    stamp(now, 2*time.Hour),
		},
		{
			ID: "request-old-1",
			Asset: domain.AssetSnapshot{
				Ref:     "asset-1",
				Name:    "Studio Marais",
				Address: "15 Rue des Archives, Paris 4e",
				Surface: 25,
				Type:    "Studio",
				Image:   "https://images.unsplash.com/photo-1502672260266-1c1ef2d93688?w=400&h=300&fit=crop",
			},
			HostID:        HostID,
			HostName:      HostName,
			HostAvatar:    HostAvatar,
			CleanerID:     strPtr(CleanerID),
			CleanerName:   strPtr(CleanerName),
			CleanerAvatar: strPtr(CleanerAvatar),
			Schedule:      domain.Schedule{Date: "2025-01-18", Time: "14:00", Duration: "2h"},
			Price:         55,
			Status:        domain.StatusRated,
			CreatedAt:     stamp(now, 72*time.Hour),
			AppliedAt:     stampPtr(now, 71*time.Hour),
			ConfirmedAt:   stampPtr(now, 70*time.Hour),
			StartedAt:     stampPtr(now, 48*time.Hour),
			CompletedAt:   stampPtr(now, 46*time.Hour),
			Rating:        intPtr(5),
			Review:        strPtr("Excellent work, the flat was spotless. Highly recommended."),
		},
	}
}

// Conversations returns the demo conversation collection.
func Conversations() []domain.Conversation {
	return []domain.Conversation{
		{
			ID:            "conv-1",
			HostID:        HostID,
			HostName:      HostName,
			HostAvatar:    HostAvatar,
			CleanerID:     CleanerID,
			CleanerName:   CleanerName,
			CleanerAvatar: CleanerAvatar,
			AssetName:     "Studio Marais",
			AssetImage:    "https://images.unsplash.com/photo-1502672260266-1c1ef2d93688?w=100&h=100&fit=crop",
		},
		{
			ID:            "conv-2",
			HostID:        "host-2",
			HostName:      "Pierre Martin",
			HostAvatar:    "https://randomuser.me/api/portraits/men/46.jpg",
			CleanerID:     CleanerID,
			CleanerName:   CleanerName,
			CleanerAvatar: CleanerAvatar,
			AssetName:     "Appartement Bastille",
			AssetImage:    "https://images.unsplash.com/photo-1560448204-e02f11c3d0e2?w=100&h=100&fit=crop",
		},
	}
}

// Messages returns the demo message collection.
func Messages(now time.Time) []domain.Message {
	return []domain.Message{
		{
			ID:             "msg-1",
			ConversationID: "conv-1",
			Sender:         domain.RoleHost,
			Text:           "Hi Thomas! Thanks for yesterday's clean, the flat looked great!",
			SentAt:         stamp(now, 2*time.Hour),
			ReadByHost:     true,
			ReadByCleaner:  true,
		},
		{
			ID:             "msg-2",
			ConversationID: "conv-1",
			Sender:         domain.RoleCleaner,
			Text:           "My pleasure Marie! Lovely flat to work in. Let me know if you need anything else.",
			SentAt:         stamp(now, 100*time.Minute),
			ReadByHost:     true,
			ReadByCleaner:  true,
		},
		{
			ID:             "msg-3",
			ConversationID: "conv-1",
			Sender:         domain.RoleHost,
			Text:           "Perfect! I have a new booking on Friday, would that work for you?",
			SentAt:         stamp(now, 3*time.Minute),
			ReadByHost:     true,
			ReadByCleaner:  false,
		},
		{
			ID:             "msg-4",
			ConversationID: "conv-2",
			Sender:         domain.RoleHost,
			Text:           "Hello, are you available tomorrow morning for a clean?",
			SentAt:         stamp(now, time.Hour),
			ReadByHost:     true,
			ReadByCleaner:  false,
		},
	}
}

// Notifications returns the demo notification collection.
func Notifications(now time.Time) []domain.Notification {
	return []domain.Notification{
		{
			ID:         "notif-1",
			Seq:        1,
			Type:       domain.NotifRequestConfirmed,
			Title:      "Booking confirmed",
			Body:       "Marie confirmed your application for Studio Marais",
			ForRole:    domain.RoleCleaner,
			Read:       false,
			RequestRef: "request-1",
			CreatedAt:  stamp(now, 22*time.Hour),
		},
		{
			ID:         "notif-2",
			Seq:        2,
			Type:       domain.NotifRequestRated,
			Title:      "New review received",
			Body:       "Marie gave you 5 stars for Studio Marais",
			ForRole:    domain.RoleCleaner,
			Read:       true,
			RequestRef: "request-old-1",
			CreatedAt:  stamp(now, 46*time.Hour),
		},
	}
}
