// Package subscription tracks which transport connection owns which
// DataServer subscription id, so a dropped connection or an ACC
// revocation can close the right set.
package subscription

import (
	"sync"

	"github.com/ethdenver2026/gateway/dataserver"
)

// Record is one tracked subscription.
type Record struct {
	ID         string
	TransportID string
	Contract   string
	Path       string
}

// Manager is the Guardian's subscription registry. It does not itself
// watch storage — that is the DataServer's job — it only knows which
// transport owns which subscription id, for cleanup.
type Manager struct {
	mu   sync.Mutex
	subs map[string]Record
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{subs: make(map[string]Record)}
}

// Register tracks a new subscription id under transportID.
func (m *Manager) Register(id, transportID, contract, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[id] = Record{ID: id, TransportID: transportID, Contract: contract, Path: path}
}

// Unregister forgets id.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

// Lookup returns the Record for id, for routing an inbound notification
// back to the transport that owns it.
func (m *Manager) Lookup(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.subs[id]
	return r, ok
}

// ForTransport returns every subscription id currently owned by
// transportID, for bulk teardown on disconnect.
func (m *Manager) ForTransport(transportID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, r := range m.subs {
		if r.TransportID == transportID {
			ids = append(ids, id)
		}
	}
	return ids
}

// ForContract returns every subscription id against contract, for ACC
// revocation teardown.
func (m *Manager) ForContract(contract string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, r := range m.subs {
		if r.Contract == contract {
			ids = append(ids, id)
		}
	}
	return ids
}

// CloseReason is delivered to a listener when the manager force-closes a
// subscription rather than the client unsubscribing.
type CloseReason string

const ReasonRevoked CloseReason = "revoked"
const ReasonDisconnect CloseReason = "disconnect"

// TerminatedNotification builds the SUBSCRIPTION_TERMINATED payload a
// transport should deliver before tearing the subscription down.
func TerminatedNotification(id string, reason CloseReason) dataserver.Notification {
	return dataserver.Notification{
		SubscriptionID: id,
		Event:          dataserver.EventDelete,
		Data:           map[string]string{"reason": string(reason)},
	}
}
