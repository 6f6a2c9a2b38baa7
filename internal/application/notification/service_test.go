package notification

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-account-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationStore) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Notification), args.Error(1)
}
func (m *mockNotificationStore) MarkAsRead(ctx context.Context, notificationID string) error {
	return m.Called(ctx, notificationID).Error(0)
}

func TestMarkAsRead_Owner(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Get", mock.Anything, "n1").
		Return(&domain.Notification{NotificationID: "n1", UserID: "u1"}, nil)
	repo.On("MarkAsRead", mock.Anything, "n1").Return(nil)

	svc := NewService(repo)
	n, err := svc.MarkAsRead(context.Background(), "n1", "u1")

	require.NoError(t, err)
	assert.Equal(t, 1, n.Readed)
	repo.AssertExpectations(t)
}

func TestMarkAsRead_OtherUsersNotification(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Get", mock.Anything, "n1").
		Return(&domain.Notification{NotificationID: "n1", UserID: "u2"}, nil)

	svc := NewService(repo)
	_, err := svc.MarkAsRead(context.Background(), "n1", "u1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	repo.AssertNotCalled(t, "MarkAsRead", mock.Anything, mock.Anything)
}

func TestMarkAsRead_NotFound(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Get", mock.Anything, "missing").
		Return(nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound))

	svc := NewService(repo)
	_, err := svc.MarkAsRead(context.Background(), "missing", "u1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListUnread(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("ListUnread", mock.Anything, "u1").
		Return([]domain.Notification{{NotificationID: "n1", UserID: "u1"}}, nil)

	svc := NewService(repo)
	list, err := svc.ListUnread(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n1", list[0].NotificationID)
}
