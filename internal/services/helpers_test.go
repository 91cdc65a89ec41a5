package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"paperboard/internal/models"
	"paperboard/internal/store"
	"paperboard/internal/store/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUser(t *testing.T, s *memory.Store, name string) *models.User {
	t.Helper()
	u := &models.User{Email: name + "@example.com", Username: name, IsActive: true, ProfileType: models.ProfileStudent}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedPost(t *testing.T, s *memory.Store, owner *models.User, externalID string) *models.Post {
	t.Helper()
	p := &models.Post{UserID: owner.ID, URL: "https://files.test/" + externalID, FileType: "pdf", FileName: "doc.pdf", ExternalFileID: externalID}
	require.NoError(t, s.CreatePost(context.Background(), p))
	return p
}

// MockObjectStore is a testify mock of store.ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Store(ctx context.Context, data []byte, name string) (*store.StoredObject, error) {
	args := m.Called(ctx, data, name)
	if obj := args.Get(0); obj != nil {
		return obj.(*store.StoredObject), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockObjectStore) Remove(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}

type sentMail struct {
	kind  string
	email string
	token string
}

// fakeMailer records mails instead of sending them.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) SendPasswordResetEmail(email, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{"reset", email, token})
}

func (f *fakeMailer) SendVerificationEmail(email, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{"verify", email, token})
}

func (f *fakeMailer) last() (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMail{}, false
	}
	return f.sent[len(f.sent)-1], true
}
