// Package reliability provides off-site archiving and ledger maintenance.
package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	bundlePrefix     = "restock-archive-"
	bundleSuffix     = ".tar.gz"
	bundleTimeLayout = "2006-01-02-150405"
	manifestName     = "manifest.json"
	uploadedDir      = "uploaded"
	minBundlesToKeep = 3
)

// ObjectStore is the remote side of the uploader
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Manifest lists the files of a bundle
type Manifest struct {
	Timestamp time.Time      `json:"timestamp"`
	Files     []ManifestFile `json:"files"`
}

// ManifestFile describes one file of a bundle
type ManifestFile struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BundleInfo describes an uploaded bundle
type BundleInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// ArchiveUploader bundles archived daily state files and diagnostic
// screenshots into a tar.gz and uploads it. Uploaded sources are moved into
// an uploaded/ subdirectory so they are sent once.
type ArchiveUploader struct {
	store         ObjectStore
	archiveDir    string
	screenshotDir string
	now           func() time.Time
	log           zerolog.Logger
}

// NewArchiveUploader creates an uploader. An empty directory is skipped.
func NewArchiveUploader(store ObjectStore, archiveDir, screenshotDir string, log zerolog.Logger) *ArchiveUploader {
	return &ArchiveUploader{
		store:         store,
		archiveDir:    archiveDir,
		screenshotDir: screenshotDir,
		now:           time.Now,
		log:           log.With().Str("service", "archive_upload").Logger(),
	}
}

// SetClock replaces the clock used for bundle names
func (u *ArchiveUploader) SetClock(now func() time.Time) {
	u.now = now
}

type pendingFile struct {
	path string
	// name inside the bundle, e.g. archive/daily-state-2026-10-13.json
	name string
}

// UploadPending uploads everything not yet uploaded as one bundle and
// returns its key. Nothing pending returns an empty key.
func (u *ArchiveUploader) UploadPending(ctx context.Context) (string, error) {
	pending, err := u.pendingFiles()
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		u.log.Debug().Msg("Nothing to upload")
		return "", nil
	}

	startTime := u.now()
	manifest := Manifest{Timestamp: startTime.UTC(), Files: make([]ManifestFile, 0, len(pending))}
	for _, f := range pending {
		info, err := os.Stat(f.path)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", f.path, err)
		}
		checksum, err := calculateChecksum(f.path)
		if err != nil {
			return "", fmt.Errorf("failed to calculate checksum for %s: %w", f.path, err)
		}
		manifest.Files = append(manifest.Files, ManifestFile{
			Name:      f.name,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	var buf bytes.Buffer
	if err := createBundle(&buf, manifest, pending); err != nil {
		return "", fmt.Errorf("failed to create bundle: %w", err)
	}

	key := bundlePrefix + startTime.Format(bundleTimeLayout) + bundleSuffix
	size := int64(buf.Len())
	if err := u.store.Upload(ctx, key, &buf, size); err != nil {
		return "", fmt.Errorf("failed to upload bundle: %w", err)
	}

	for _, f := range pending {
		if err := markUploaded(f.path); err != nil {
			u.log.Warn().Err(err).Str("path", f.path).Msg("Failed to move uploaded file aside")
		}
	}

	u.log.Info().
		Str("key", key).
		Int("files", len(pending)).
		Int64("size_bytes", size).
		Msg("Archive bundle uploaded")
	return key, nil
}

// ListBundles returns uploaded bundles, newest first
func (u *ArchiveUploader) ListBundles(ctx context.Context) ([]BundleInfo, error) {
	objects, err := u.store.List(ctx, bundlePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}

	bundles := make([]BundleInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, bundlePrefix) || !strings.HasSuffix(obj.Key, bundleSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(obj.Key, bundlePrefix), bundleSuffix)
		ts, err := time.Parse(bundleTimeLayout, stamp)
		if err != nil {
			u.log.Warn().Str("key", obj.Key).Msg("Failed to parse timestamp from bundle key")
			continue
		}
		bundles = append(bundles, BundleInfo{Key: obj.Key, Timestamp: ts, SizeBytes: obj.Size})
	}

	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].Timestamp.After(bundles[j].Timestamp)
	})
	return bundles, nil
}

// RotateOldBundles deletes bundles older than retentionDays, always keeping
// the newest three. Zero retention keeps everything.
func (u *ArchiveUploader) RotateOldBundles(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	bundles, err := u.ListBundles(ctx)
	if err != nil {
		return 0, err
	}
	if len(bundles) <= minBundlesToKeep {
		return 0, nil
	}

	cutoff := u.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, b := range bundles[minBundlesToKeep:] {
		if !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := u.store.Delete(ctx, b.Key); err != nil {
			u.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old bundle")
			continue
		}
		deleted++
	}

	u.log.Info().Int("deleted", deleted).Int("remaining", len(bundles)-deleted).Msg("Bundle rotation completed")
	return deleted, nil
}

func (u *ArchiveUploader) pendingFiles() ([]pendingFile, error) {
	var out []pendingFile
	for _, src := range []struct {
		dir, ext, prefix string
	}{
		{u.archiveDir, ".json", "archive/"},
		{u.screenshotDir, ".png", "screenshots/"},
	} {
		if src.dir == "" {
			continue
		}
		entries, err := os.ReadDir(src.dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src.dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != src.ext {
				continue
			}
			out = append(out, pendingFile{path: filepath.Join(src.dir, name), name: src.prefix + name})
		}
	}
	return out, nil
}

func createBundle(w io.Writer, manifest Manifest, files []pendingFile) error {
	gzipWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzipWriter)

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := tarWriter.WriteHeader(&tar.Header{
		Name:    manifestName,
		Size:    int64(len(manifestJSON)),
		Mode:    0644,
		ModTime: manifest.Timestamp,
	}); err != nil {
		return err
	}
	if _, err := tarWriter.Write(manifestJSON); err != nil {
		return err
	}

	for _, f := range files {
		if err := addFileToBundle(tarWriter, f.path, f.name); err != nil {
			return fmt.Errorf("failed to add %s: %w", f.name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToBundle(tarWriter *tar.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if err := tarWriter.WriteHeader(&tar.Header{
		Name:    name,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}

func calculateChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func markUploaded(path string) error {
	dir := filepath.Join(filepath.Dir(path), uploadedDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dir, filepath.Base(path)))
}
