package domain

// Role identifies which side of the marketplace an actor acts as.
type Role string

const (
	RoleHost    Role = "host"
	RoleCleaner Role = "cleaner"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleHost || r == RoleCleaner
}

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleHost {
		return RoleCleaner
	}
	return RoleHost
}

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApplied    Status = "applied"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRated      Status = "rated"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusRated || s == StatusCancelled
}

// Actor is the declared identity of a caller. Swapping roles in the demo
// swaps the declared identity, never the ownership fields on stored records.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// AssetSnapshot is the denormalized copy of a property taken when a request
// is created. It does not track later edits to the property.
type AssetSnapshot struct {
	Ref     string `json:"ref,omitempty"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Surface int    `json:"surface"`
	Type    string `json:"type"`
	Image   string `json:"image,omitempty"`
}

// Schedule is the booked slot for a request.
type Schedule struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration string `json:"duration"`
}

// ServiceRequest is the unit of work moving through the lifecycle.
type ServiceRequest struct {
	ID            string        `json:"id"`
	Asset         AssetSnapshot `json:"asset"`
	HostID        string        `json:"host_id"`
	HostName      string        `json:"host_name,omitempty"`
	HostAvatar    string        `json:"host_avatar,omitempty"`
	CleanerID     *string       `json:"cleaner_id,omitempty"`
	CleanerName   *string       `json:"cleaner_name,omitempty"`
	CleanerAvatar *string       `json:"cleaner_avatar,omitempty"`
	Schedule      Schedule      `json:"schedule"`
	Price         int           `json:"price"`
	Status        Status        `json:"status" enum:"pending,applied,confirmed,in_progress,completed,rated,cancelled"`
	Instructions  string        `json:"instructions,omitempty"`
	CreatedAt     string        `json:"created_at" format:"date-time"`
	AppliedAt     *string       `json:"applied_at,omitempty" format:"date-time"`
	ConfirmedAt   *string       `json:"confirmed_at,omitempty" format:"date-time"`
	StartedAt     *string       `json:"started_at,omitempty" format:"date-time"`
	CompletedAt   *string       `json:"completed_at,omitempty" format:"date-time"`
	Rating        *int          `json:"rating,omitempty"`
	Review        *string       `json:"review,omitempty"`
}

// Conversation is a fixed host/cleaner thread with denormalized display data.
// Conversations are created out of band; the lifecycle engine never creates them.
type Conversation struct {
	ID            string `json:"id"`
	HostID        string `json:"host_id"`
	HostName      string `json:"host_name"`
	HostAvatar    string `json:"host_avatar,omitempty"`
	CleanerID     string `json:"cleaner_id"`
	CleanerName   string `json:"cleaner_name"`
	CleanerAvatar string `json:"cleaner_avatar,omitempty"`
	AssetName     string `json:"asset_name"`
	AssetImage    string `json:"asset_image,omitempty"`
}

// Message belongs to a conversation. The sender's own read flag is true at
// creation; the recipient's stays false until read.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Sender         Role   `json:"sender" enum:"host,cleaner"`
	Text           string `json:"text"`
	SentAt         string `json:"sent_at" format:"date-time"`
	ReadByHost     bool   `json:"read_by_host"`
	ReadByCleaner  bool   `json:"read_by_cleaner"`
}

// ReadBy reports whether the message has been read by the given role.
func (m Message) ReadBy(role Role) bool {
	if role == RoleHost {
		return m.ReadByHost
	}
	return m.ReadByCleaner
}

// NotificationType is the fixed vocabulary of feed events.
type NotificationType string

const (
	NotifRequestCreated   NotificationType = "request_created"
	NotifRequestApplied   NotificationType = "request_applied"
	NotifRequestConfirmed NotificationType = "request_confirmed"
	NotifRequestRejected  NotificationType = "request_rejected"
	NotifRequestStarted   NotificationType = "request_started"
	NotifRequestCompleted NotificationType = "request_completed"
	NotifRequestRated     NotificationType = "request_rated"
	NotifNewMessage       NotificationType = "new_message"
)

// Notification is a role-scoped feed entry driven by lifecycle or message
// activity. Seq is assigned by the notification store and only ever grows;
// webhook delivery cursors rely on it.
type Notification struct {
	ID         string           `json:"id"`
	Seq        int64            `json:"seq"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	ForRole    Role             `json:"for_role" enum:"host,cleaner"`
	Read       bool             `json:"read"`
	RequestRef string           `json:"request_ref,omitempty"`
	CreatedAt  string           `json:"created_at" format:"date-time"`
}
