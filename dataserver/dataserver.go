// Package dataserver defines the DataServer capability contract the
// Guardian drives after authorization. It owns byte storage and per-file
// metadata; the Guardian never touches either directly.
package dataserver

import "context"

// EntryType distinguishes a file from a directory in list/subscribe
// results.
type EntryType string

const (
	TypeFile      EntryType = "file"
	TypeDirectory EntryType = "dir"
)

// Entry is one element of a list result, or the metadata half of a
// subscription snapshot/notification.
type Entry struct {
	Name     string    `json:"name"`
	Type     EntryType `json:"type"`
	Length   *int64    `json:"length,omitempty"`
	Created  *int64    `json:"created,omitempty"`
	Modified *int64    `json:"modified,omitempty"`
}

// ListOptions mirrors the protocol's list option set. Matches is passed
// through uncompiled; the Server implementation compiles it (the in-memory
// store reports an invalid expression as CodeInvalidOption).
type ListOptions struct {
	Long          bool
	Length        bool
	Created       bool
	Modified      bool
	DirectoryOnly bool
	Matches       string
	After         *int64
	Before        *int64
	CreatedAfter  *int64
	CreatedBefore *int64
}

// WriteOptions covers the create/delete/mkdir/terminate silent-failure
// switch plus delete's force flag.
type WriteOptions struct {
	Silent bool
	Force  bool
}

// ReadOptions covers read's silent switch.
type ReadOptions struct {
	Silent bool
}

// SubscribeOptions controls what the initial snapshot includes.
type SubscribeOptions struct {
	List bool
	Read bool
}

// Event names a change delivered to a subscription listener.
type Event string

const (
	EventWrite  Event = "write"
	EventAppend Event = "append"
	EventDelete Event = "delete"
	EventUpdate Event = "update"
	EventMkdir  Event = "mkdir"
)

// Notification is delivered to a subscription listener on every change
// observed at or under its subscribed path.
type Notification struct {
	SubscriptionID string      `json:"subscriptionId"`
	Event          Event       `json:"event"`
	File           Entry       `json:"file"`
	Data           interface{} `json:"data,omitempty"`
}

// Listener receives notifications for a single subscription.
type Listener func(Notification)

// SubscribeResult is the initial snapshot returned by Subscribe.
type SubscribeResult struct {
	SubscriptionID string      `json:"subscriptionId"`
	File           Entry       `json:"file"`
	List           []Entry     `json:"list,omitempty"`
	Data           interface{} `json:"data,omitempty"`
}

// Server is the capability contract a storage backend implements. contract
// identifies the bubble (one backing store may host many bubbles); path is
// the already-authorized, already-parsed file path string.
type Server interface {
	Create(ctx context.Context, contract string, opts WriteOptions) error
	Write(ctx context.Context, contract, path, data string) error
	Append(ctx context.Context, contract, path, data string) error
	Read(ctx context.Context, contract, path string, opts ReadOptions) (string, error)
	Delete(ctx context.Context, contract, path string, opts WriteOptions) error
	Mkdir(ctx context.Context, contract, path string, opts WriteOptions) error
	List(ctx context.Context, contract, path string, opts ListOptions) ([]Entry, error)
	Subscribe(ctx context.Context, contract, path string, opts SubscribeOptions, listener Listener) (SubscribeResult, error)
	Unsubscribe(ctx context.Context, subscriptionID string) error
	Terminate(ctx context.Context, contract string, opts WriteOptions) error
}
