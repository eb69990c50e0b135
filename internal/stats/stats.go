// Package stats computes per-role counts over the live request collection.
// Nothing is cached; every call recounts, so the numbers always match what
// the engine currently holds.
package stats

import "freshnest/internal/domain"

// Host summarizes a host's requests by lifecycle stage. Completed includes
// rated requests; ToRate counts only the completed ones still awaiting a
// rating.
type Host struct {
	Pending    int `json:"pending"`
	Applied    int `json:"applied"`
	Confirmed  int `json:"confirmed"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	ToRate     int `json:"to_rate"`
}

// Cleaner summarizes the marketplace from a cleaner's point of view.
// Available spans every unassigned pending request, not just this cleaner's.
type Cleaner struct {
	Available  int `json:"available"`
	Applied    int `json:"applied"`
	Confirmed  int `json:"confirmed"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

// ForHost counts the given host's requests.
func ForHost(requests []domain.ServiceRequest, hostID string) Host {
	var s Host
	for _, r := range requests {
		if r.HostID != hostID {
			continue
		}
		switch r.Status {
		case domain.StatusPending:
			s.Pending++
		case domain.StatusApplied:
			s.Applied++
		case domain.StatusConfirmed:
			s.Confirmed++
		case domain.StatusInProgress:
			s.InProgress++
		case domain.StatusCompleted:
			s.Completed++
			s.ToRate++
		case domain.StatusRated:
			s.Completed++
		}
	}
	return s
}

// ForCleaner counts the requests visible to the given cleaner.
func ForCleaner(requests []domain.ServiceRequest, cleanerID string) Cleaner {
	var s Cleaner
	for _, r := range requests {
		if r.Status == domain.StatusPending && r.CleanerID == nil {
			s.Available++
			continue
		}
		if r.CleanerID == nil || *r.CleanerID != cleanerID {
			continue
		}
		switch r.Status {
		case domain.StatusApplied:
			s.Applied++
		case domain.StatusConfirmed:
			s.Confirmed++
		case domain.StatusInProgress:
			s.InProgress++
		case domain.StatusCompleted, domain.StatusRated:
			s.Completed++
		}
	}
	return s
}
