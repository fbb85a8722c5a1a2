// Package models defines shared data types for the application.
package models

import "strings"

// Channel represents a resolved telegram channel.
type Channel struct {
	ID         int64  // provider channel id
	AccessHash int64  // access hash for api calls
	Handle     string // configured handle, e.g. @tikvahpharma
	Title      string // display title, owned by the provider
}

// Name returns the handle without the @ prefix.
// It is used for file names and manifest keys.
func (c Channel) Name() string {
	return ChannelName(c.Handle)
}

// ChannelName normalizes a channel handle for storage.
func ChannelName(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}
