package server

import (
	"freshnest/internal/domain"
	"freshnest/internal/engine"
	"freshnest/internal/messages"
	"freshnest/internal/stats"
)

// Request payloads

type CreateRequestBody struct {
	Asset        domain.AssetSnapshot `json:"asset"`
	Schedule     domain.Schedule      `json:"schedule"`
	Price        int                  `json:"price"`
	Instructions string               `json:"instructions,omitempty"`
}

type RateRequestBody struct {
	Rating int    `json:"rating" minimum:"1" maximum:"5"`
	Review string `json:"review,omitempty"`
}

type SendMessageBody struct {
	Text string `json:"text"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role" enum:"host,cleaner"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Response payloads

type RequestResponse struct {
	domain.ServiceRequest
}

type RequestListResponse struct {
	Items []domain.ServiceRequest `json:"items"`
	Total int                     `json:"total"`
}

type ConversationListResponse struct {
	Items []messages.ConversationPreview `json:"items"`
	Total int                            `json:"total"`
}

type MessageListResponse struct {
	Items []domain.Message `json:"items"`
	Total int              `json:"total"`
}

type NotificationListResponse struct {
	Items []domain.Notification `json:"items"`
	Total int                   `json:"total"`
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

type StatsResponse struct {
	Role    string         `json:"role" enum:"host,cleaner"`
	Host    *stats.Host    `json:"host,omitempty"`
	Cleaner *stats.Cleaner `json:"cleaner,omitempty"`
}

type MeResponse struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role" enum:"host,cleaner"`
	Source  string `json:"source"`
}

func requestList(items []domain.ServiceRequest) RequestListResponse {
	return RequestListResponse{Items: items, Total: len(items)}
}

func statsFor(e *engine.Engine, p Principal) StatsResponse {
	all := e.All()
	res := StatsResponse{Role: string(p.Role)}
	if p.Role == domain.RoleHost {
		s := stats.ForHost(all, p.ActorID)
		res.Host = &s
	} else {
		s := stats.ForCleaner(all, p.ActorID)
		res.Cleaner = &s
	}
	return res
}
