package notify_test

import (
	"context"
	"sync"

	"chatflow/api/internal/email"
	"chatflow/api/internal/store"
)

type mockStore struct {
	mu            sync.Mutex
	inserted      []store.Notification
	insertErr     error
	prefs         map[string]store.NotificationPreferences
	users         map[string]store.User
	prefsRequests int
}

func newMockStore() *mockStore {
	return &mockStore{
		prefs: map[string]store.NotificationPreferences{},
		users: map[string]store.User{},
	}
}

func (m *mockStore) InsertNotification(_ context.Context, n store.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, n)
	return nil
}

func (m *mockStore) GetNotificationPreferences(_ context.Context, userID string) (store.NotificationPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefsRequests++
	if prefs, ok := m.prefs[userID]; ok {
		return prefs, nil
	}
	return store.DefaultNotificationPreferences(userID), nil
}

func (m *mockStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

type mockMailer struct {
	mu         sync.Mutex
	configured bool
	sent       []email.NotificationData
}

func (m *mockMailer) IsConfigured() bool {
	return m.configured
}

func (m *mockMailer) SendNotificationEmail(_ context.Context, data email.NotificationData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockMailer) Sent() []email.NotificationData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.NotificationData(nil), m.sent...)
}
