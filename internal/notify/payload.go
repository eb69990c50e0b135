package notify

import (
	"fmt"
	"strings"

	"freshnest/internal/domain"
	"freshnest/internal/fault"
)

// Payload is one tagged variant per notification type. Each variant carries
// only the fields its template needs and is rejected at publish time when a
// required field is missing.
type Payload interface {
	Type() domain.NotificationType
	Role() domain.Role
	Render() (title, body string)
	RequestRef() string
	validate() error
}

func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fault.NewValidation(pairs[i], "is required")
		}
	}
	return nil
}

// RequestCreated fans out to cleaners when a host posts a new request.
type RequestCreated struct {
	RequestID string
	AssetName string
	Date      string
	Time      string
	Price     int
}

func (p RequestCreated) Type() domain.NotificationType { return domain.NotifRequestCreated }
func (p RequestCreated) Role() domain.Role             { return domain.RoleCleaner }
func (p RequestCreated) RequestRef() string            { return p.RequestID }
func (p RequestCreated) Render() (string, string) {
	return "New request available",
		fmt.Sprintf("%s - %s at %s (%d EUR)", p.AssetName, p.Date, p.Time, p.Price)
}
func (p RequestCreated) validate() error {
	return requireFields("request_id", p.RequestID, "asset_name", p.AssetName, "date", p.Date, "time", p.Time)
}

// RequestApplied tells the host a cleaner applied.
type RequestApplied struct {
	RequestID   string
	CleanerName string
	AssetName   string
}

func (p RequestApplied) Type() domain.NotificationType { return domain.NotifRequestApplied }
func (p RequestApplied) Role() domain.Role             { return domain.RoleHost }
func (p RequestApplied) RequestRef() string            { return p.RequestID }
func (p RequestApplied) Render() (string, string) {
	return "New application", fmt.Sprintf("%s applied for %s", p.CleanerName, p.AssetName)
}
func (p RequestApplied) validate() error {
	return requireFields("request_id", p.RequestID, "cleaner_name", p.CleanerName, "asset_name", p.AssetName)
}

// RequestConfirmed tells the cleaner the host confirmed their application.
type RequestConfirmed struct {
	RequestID string
	HostName  string
	AssetName string
}

func (p RequestConfirmed) Type() domain.NotificationType { return domain.NotifRequestConfirmed }
func (p RequestConfirmed) Role() domain.Role             { return domain.RoleCleaner }
func (p RequestConfirmed) RequestRef() string            { return p.RequestID }
func (p RequestConfirmed) Render() (string, string) {
	return "Booking confirmed", fmt.Sprintf("%s confirmed your application for %s", p.HostName, p.AssetName)
}
func (p RequestConfirmed) validate() error {
	return requireFields("request_id", p.RequestID, "host_name", p.HostName, "asset_name", p.AssetName)
}

// RequestRejected tells the cleaner their application was not kept.
type RequestRejected struct {
	RequestID string
	AssetName string
}

func (p RequestRejected) Type() domain.NotificationType { return domain.NotifRequestRejected }
func (p RequestRejected) Role() domain.Role             { return domain.RoleCleaner }
func (p RequestRejected) RequestRef() string            { return p.RequestID }
func (p RequestRejected) Render() (string, string) {
	return "Application not kept", fmt.Sprintf("Your application for %s was not kept", p.AssetName)
}
func (p RequestRejected) validate() error {
	return requireFields("request_id", p.RequestID, "asset_name", p.AssetName)
}

// RequestStarted tells the host the clean is underway.
type RequestStarted struct {
	RequestID   string
	CleanerName string
	AssetName   string
}

func (p RequestStarted) Type() domain.NotificationType { return domain.NotifRequestStarted }
func (p RequestStarted) Role() domain.Role             { return domain.RoleHost }
func (p RequestStarted) RequestRef() string            { return p.RequestID }
func (p RequestStarted) Render() (string, string) {
	return "Cleaning in progress", fmt.Sprintf("%s started cleaning %s", p.CleanerName, p.AssetName)
}
func (p RequestStarted) validate() error {
	return requireFields("request_id", p.RequestID, "cleaner_name", p.CleanerName, "asset_name", p.AssetName)
}

// RequestCompleted tells the host the clean is done and a rating is due.
type RequestCompleted struct {
	RequestID string
	AssetName string
}

func (p RequestCompleted) Type() domain.NotificationType { return domain.NotifRequestCompleted }
func (p RequestCompleted) Role() domain.Role             { return domain.RoleHost }
func (p RequestCompleted) RequestRef() string            { return p.RequestID }
func (p RequestCompleted) Render() (string, string) {
	return "Cleaning finished", fmt.Sprintf("The cleaning of %s is finished. Don't forget to rate it!", p.AssetName)
}
func (p RequestCompleted) validate() error {
	return requireFields("request_id", p.RequestID, "asset_name", p.AssetName)
}

// RequestRated tells the cleaner a review arrived.
type RequestRated struct {
	RequestID string
	HostName  string
	AssetName string
	Rating    int
}

func (p RequestRated) Type() domain.NotificationType { return domain.NotifRequestRated }
func (p RequestRated) Role() domain.Role             { return domain.RoleCleaner }
func (p RequestRated) RequestRef() string            { return p.RequestID }
func (p RequestRated) Render() (string, string) {
	plural := "s"
	if p.Rating == 1 {
		plural = ""
	}
	return "New review received",
		fmt.Sprintf("%s gave you %d star%s for %s", p.HostName, p.Rating, plural, p.AssetName)
}
func (p RequestRated) validate() error {
	if p.Rating < 1 || p.Rating > 5 {
		return fault.NewValidation("rating", "must be between 1 and 5")
	}
	return requireFields("request_id", p.RequestID, "host_name", p.HostName, "asset_name", p.AssetName)
}

// NewMessage tells the recipient role someone wrote to them.
type NewMessage struct {
	FromName string
	For      domain.Role
}

func (p NewMessage) Type() domain.NotificationType { return domain.NotifNewMessage }
func (p NewMessage) Role() domain.Role             { return p.For }
func (p NewMessage) RequestRef() string            { return "" }
func (p NewMessage) Render() (string, string) {
	return "New message", fmt.Sprintf("%s sent you a message", p.FromName)
}
func (p NewMessage) validate() error {
	if !p.For.Valid() {
		return fault.NewValidation("for_role", "must be host or cleaner")
	}
	return requireFields("from_name", p.FromName)
}
