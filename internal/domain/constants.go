package domain

import "time"

// StatusReady is sent in the "connected" frame once a socket is registered.
const StatusReady = "ready"

// Group invitations stop being actionable after this long.
const DefaultInvitationTTL = time.Minute

const (
	DefaultNotificationsPage = 50
	MaxNotificationsPage     = 200
)
