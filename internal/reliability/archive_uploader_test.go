package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	objects   map[string][]byte
	uploadErr error
	deleted   []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for k, v := range m.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

var uploadTime = time.Date(2026, 10, 14, 2, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readBundle(t *testing.T, data []byte) map[string]string {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := map[string]string{}
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[h.Name] = string(content)
	}
	return files
}

func newUploader(t *testing.T, store ObjectStore) (*ArchiveUploader, string, string) {
	t.Helper()
	root := t.TempDir()
	archiveDir := filepath.Join(root, "archive")
	screenshotDir := filepath.Join(root, "screenshots")
	u := NewArchiveUploader(store, archiveDir, screenshotDir, zerolog.Nop())
	u.SetClock(func() time.Time { return uploadTime })
	return u, archiveDir, screenshotDir
}

func TestUploadPending_BundlesArchivesAndScreenshots(t *testing.T) {
	store := newMemoryStore()
	u, archiveDir, screenshotDir := newUploader(t, store)

	writeFile(t, filepath.Join(archiveDir, "daily-state-2026-10-13.json"), `{"date":"Tue Oct 13 2026"}`)
	writeFile(t, filepath.Join(archiveDir, ".daily-state.json.tmp-1"), "partial")
	writeFile(t, filepath.Join(screenshotDir, "product1-failed-20261013T093000.png"), "png")
	writeFile(t, filepath.Join(screenshotDir, "notes.txt"), "ignored")

	key, err := u.UploadPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "restock-archive-2026-10-14-020000.tar.gz", key)

	files := readBundle(t, store.objects[key])
	assert.Equal(t, `{"date":"Tue Oct 13 2026"}`, files["archive/daily-state-2026-10-13.json"])
	assert.Equal(t, "png", files["screenshots/product1-failed-20261013T093000.png"])
	assert.Len(t, files, 3)

	var manifest Manifest
	require.NoError(t, json.Unmarshal([]byte(files[manifestName]), &manifest))
	require.Len(t, manifest.Files, 2)
	assert.Equal(t, "archive/daily-state-2026-10-13.json", manifest.Files[0].Name)
	assert.Contains(t, manifest.Files[0].Checksum, "sha256:")

	// Sources are moved aside, the rest stays
	assert.FileExists(t, filepath.Join(archiveDir, uploadedDir, "daily-state-2026-10-13.json"))
	assert.NoFileExists(t, filepath.Join(archiveDir, "daily-state-2026-10-13.json"))
	assert.FileExists(t, filepath.Join(screenshotDir, uploadedDir, "product1-failed-20261013T093000.png"))
	assert.FileExists(t, filepath.Join(screenshotDir, "notes.txt"))

	// A second run has nothing left
	key, err = u.UploadPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Len(t, store.objects, 1)
}

func TestUploadPending_MissingDirectories(t *testing.T) {
	store := newMemoryStore()
	u, _, _ := newUploader(t, store)

	key, err := u.UploadPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, store.objects)
}

func TestUploadPending_UploadFailureKeepsSources(t *testing.T) {
	store := newMemoryStore()
	store.uploadErr = errors.New("connection reset")
	u, archiveDir, _ := newUploader(t, store)
	writeFile(t, filepath.Join(archiveDir, "daily-state-2026-10-13.json"), "{}")

	_, err := u.UploadPending(context.Background())
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(archiveDir, "daily-state-2026-10-13.json"))
}

func TestListBundles_NewestFirst(t *testing.T) {
	store := newMemoryStore()
	store.objects["restock-archive-2026-10-12-020000.tar.gz"] = []byte("a")
	store.objects["restock-archive-2026-10-14-020000.tar.gz"] = []byte("bb")
	store.objects["restock-archive-garbage.tar.gz"] = []byte("c")
	u, _, _ := newUploader(t, store)

	bundles, err := u.ListBundles(context.Background())
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, "restock-archive-2026-10-14-020000.tar.gz", bundles[0].Key)
	assert.Equal(t, int64(2), bundles[0].SizeBytes)
}

func TestRotateOldBundles(t *testing.T) {
	store := newMemoryStore()
	for _, day := range []string{"2026-06-01", "2026-06-02", "2026-10-01", "2026-10-02", "2026-10-03"} {
		store.objects["restock-archive-"+day+"-020000.tar.gz"] = []byte("x")
	}
	u, _, _ := newUploader(t, store)

	deleted, err := u.RotateOldBundles(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	sort.Strings(store.deleted)
	assert.Equal(t, []string{
		"restock-archive-2026-06-01-020000.tar.gz",
		"restock-archive-2026-06-02-020000.tar.gz",
	}, store.deleted)
}

func TestRotateOldBundles_KeepsMinimum(t *testing.T) {
	store := newMemoryStore()
	for _, day := range []string{"2025-01-01", "2025-01-02", "2025-01-03"} {
		store.objects["restock-archive-"+day+"-020000.tar.gz"] = []byte("x")
	}
	u, _, _ := newUploader(t, store)

	deleted, err := u.RotateOldBundles(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = u.RotateOldBundles(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestArchiveUploadJob(t *testing.T) {
	store := newMemoryStore()
	u, archiveDir, _ := newUploader(t, store)
	writeFile(t, filepath.Join(archiveDir, "daily-state-2026-10-13.json"), "{}")

	job := NewArchiveUploadJob(u, 0, zerolog.Nop())
	assert.Equal(t, "archive_upload", job.Name())
	assert.Equal(t, defaultRetentionDays, job.retentionDays)
	require.NoError(t, job.Run())
	assert.Len(t, store.objects, 1)

	store.uploadErr = errors.New("denied")
	writeFile(t, filepath.Join(archiveDir, "daily-state-2026-10-14.json"), "{}")
	assert.Error(t, job.Run())
}

func TestR2Config_Enabled(t *testing.T) {
	assert.False(t, R2Config{}.Enabled())
	assert.False(t, R2Config{AccountID: "a", AccessKeyID: "k", SecretAccessKey: "s"}.Enabled())
	assert.True(t, R2Config{AccountID: "a", AccessKeyID: "k", SecretAccessKey: "s", Bucket: "b"}.Enabled())

	_, err := NewR2Client(context.Background(), R2Config{}, zerolog.Nop())
	assert.Error(t, err)
}
