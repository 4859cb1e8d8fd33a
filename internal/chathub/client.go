package chathub

import "supportchat/backend/internal/models"

// Client is the interface for one live connection (e.g., WebSocket, test
// double). It abstracts the underlying transport, allowing the hub to manage
// different connection types uniformly. A user may hold several Clients at
// once: operators keep the dashboard open in multiple tabs.
type Client interface {
	// GetUserID returns the unique identifier of the authenticated user.
	GetUserID() string
	// GetDisplayName returns the user's name as shown to the other party.
	GetDisplayName() string
	// GetRole returns models.RoleCustomer or models.RoleOperator.
	GetRole() string

	// GetSendChannel returns the channel the hub pushes outbound events to.
	// It is a send-only channel.
	GetSendChannel() chan<- models.ServerEvent

	// Run starts the client's read and write pumps, which handle incoming
	// and outgoing frames.
	Run()
	// Close shuts down the client's connection and associated channels.
	Close()
}
