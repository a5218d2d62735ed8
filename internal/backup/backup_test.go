package backup

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mattkendal/kudos/internal/database"
	"github.com/mattkendal/kudos/internal/model"
	"github.com/mattkendal/kudos/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3NotFound{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type s3NotFound struct{}

func (e *s3NotFound) Error() string { return "NoSuchKey" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, mock *mockS3Client) *Manager {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "kudos.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		DBPath:     dbPath,
		Passphrase: "test-passphrase",
	}
	m := NewManager(cfg, db, store.NewBackupStore(db), discardLogger(), nil)
	m.client = mock
	return m
}

func TestManagerStateLifecycle(t *testing.T) {
	// Without S3 config -> disabled
	m := NewManager(Config{}, nil, nil, discardLogger(), nil)
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}

	// With full config -> idle
	m2 := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "pass",
	}, nil, nil, discardLogger(), nil)
	if m2.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m2.Status().State, StateIdle)
	}

	// Missing passphrase -> disabled
	m3 := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, nil, discardLogger(), nil)
	if m3.Status().State != StateDisabled {
		t.Errorf("state without passphrase = %q, want %q", m3.Status().State, StateDisabled)
	}
}

func TestManagerStatusCallback(t *testing.T) {
	var received []Status
	var mu sync.Mutex
	cb := func(s Status) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	}

	m := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "pass",
	}, nil, nil, discardLogger(), cb)

	m.setStatus(Status{State: StateRunning, InProgress: true})
	m.setStatus(Status{State: StateIdle})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received %d callbacks, want 2", len(received))
	}
	if received[0].State != StateRunning {
		t.Errorf("first callback state = %q, want %q", received[0].State, StateRunning)
	}
	if received[1].State != StateIdle {
		t.Errorf("second callback state = %q, want %q", received[1].State, StateIdle)
	}
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	mock := newMockS3()
	m := newTestManager(t, mock)

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	record, err := m.backups.GetByID(id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record == nil {
		t.Fatal("backup record not found")
	}
	if record.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want %q", record.Status, model.BackupStatusCompleted)
	}
	if record.SizeBytes == 0 {
		t.Error("expected non-zero size")
	}

	mock.mu.Lock()
	data, ok := mock.objects[record.S3Key]
	mock.mu.Unlock()
	if !ok {
		t.Fatalf("object %s not uploaded", record.S3Key)
	}

	// Uploaded snapshot decrypts back to a SQLite database.
	dir := t.TempDir()
	encPath := filepath.Join(dir, "snap.enc")
	decPath := filepath.Join(dir, "snap.db")
	if err := os.WriteFile(encPath, data, 0600); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	if err := DecryptFile(encPath, decPath, "test-passphrase"); err != nil {
		t.Fatalf("decrypt snapshot: %v", err)
	}
	header, err := os.ReadFile(decPath)
	if err != nil {
		t.Fatalf("read decrypted snapshot: %v", err)
	}
	if !bytes.HasPrefix(header, []byte("SQLite format 3")) {
		t.Error("decrypted snapshot is not a SQLite database")
	}

	if m.Status().State != StateIdle {
		t.Errorf("state after backup = %q, want %q", m.Status().State, StateIdle)
	}
	if m.Status().LastBackup == nil {
		t.Error("expected last backup timestamp")
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	mock := newMockS3()
	m := newTestManager(t, mock)

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	body, size, err := m.Download(context.Background(), id)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if int64(len(data)) != size {
		t.Errorf("downloaded %d bytes, record says %d", len(data), size)
	}
}

func TestDownloadUnknownBackup(t *testing.T) {
	mock := newMockS3()
	m := newTestManager(t, mock)

	if _, _, err := m.Download(context.Background(), 999); err == nil {
		t.Fatal("expected error for unknown backup")
	}
}

func TestCleanupDeletesOldObjects(t *testing.T) {
	mock := newMockS3()
	m := newTestManager(t, mock)

	id, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	record, _ := m.backups.GetByID(id)

	// Retention of -1 days puts the cutoff in the future, so the fresh
	// backup is already expired.
	if err := m.Cleanup(context.Background(), -1); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	mock.mu.Lock()
	_, ok := mock.objects[record.S3Key]
	mock.mu.Unlock()
	if ok {
		t.Error("expected s3 object deleted")
	}

	gone, err := m.backups.GetByID(id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if gone != nil {
		t.Error("expected backup record deleted")
	}
}

func TestManagerStopSafety(t *testing.T) {
	m := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "pass",
	}, nil, nil, discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}

func TestManagerDisabledNoStart(t *testing.T) {
	m := NewManager(Config{}, nil, nil, discardLogger(), nil)

	ctx := context.Background()
	m.Start(ctx)

	// Stop should not block
	m.Stop()
}
