package app

import "errors"

var (
	// ErrSessionClosed сессия уже разобрана
	ErrSessionClosed = errors.New("session is closed")
	// ErrNoSession виджет не смонтирован
	ErrNoSession = errors.New("no active session")
)
