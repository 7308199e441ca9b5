package service

import "errors"

var (
	ErrNotNotification   = errors.New("event does not produce a notification")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotParticipant    = errors.New("sender is not a participant of the conversation")
	ErrNotMember         = errors.New("actor is not a member of the group")
	ErrInvalidTarget     = errors.New("invalid target user")
	ErrUserNotFound      = errors.New("user not found")
	ErrUnsupportedType   = errors.New("unsupported notification type")
	ErrEmptyContent      = errors.New("content is required")
)
