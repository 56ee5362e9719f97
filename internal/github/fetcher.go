package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// RemoteFile is a corpus file found in the repository.
type RemoteFile struct {
	Path string // relative to the fetcher's base path
	Size int
	SHA  string
}

// Fetcher copies corpus files from one repository directory.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	accept   func(name string) bool
	logger   *slog.Logger
}

// NewFetcher creates a fetcher; accept decides which file names are downloaded.
func NewFetcher(client *Client, owner, repo, basePath string, accept func(string) bool, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: strings.Trim(basePath, "/"),
		accept:   accept,
		logger:   logger,
	}
}

// ParseRepo splits "owner/name".
func ParseRepo(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q: want owner/name", s)
	}
	return owner, repo, nil
}

// ListFiles recursively lists accepted files under the base path.
func (f *Fetcher) ListFiles(ctx context.Context) ([]RemoteFile, error) {
	return f.listRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]RemoteFile, error) {
	var files []RemoteFile

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}
		itemRelPath := path.Join(relativePath, item.GetName())

		switch item.GetType() {
		case "file":
			if f.accept == nil || f.accept(item.GetName()) {
				files = append(files, RemoteFile{Path: itemRelPath, Size: item.GetSize(), SHA: item.GetSHA()})
			}
		case "dir":
			sub, err := f.listRecursive(ctx, path.Join(fullPath, item.GetName()), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}

	return files, nil
}

// Download writes file into destDir under its base name, since the loader only
// reads the top level of the source directory. Existing files are overwritten.
func (f *Fetcher) Download(ctx context.Context, file RemoteFile, destDir string) (string, error) {
	fullPath := path.Join(f.basePath, file.Path)

	body, _, err := f.client.Repositories.DownloadContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", fullPath, err)
	}
	defer body.Close()

	dest := filepath.Join(destDir, path.Base(file.Path))
	tmp, err := os.CreateTemp(destDir, ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("rename into %s: %w", dest, err)
	}
	return dest, nil
}

// FetchAll downloads every accepted file into destDir. Two remote files with the
// same base name are an error because they would overwrite each other.
func (f *Fetcher) FetchAll(ctx context.Context, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", destDir, err)
	}

	files, err := f.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(files))
	for _, file := range files {
		name := path.Base(file.Path)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%s and %s share the file name %s", prev, file.Path, name)
		}
		seen[name] = file.Path
	}

	written := make([]string, 0, len(files))
	for _, file := range files {
		dest, err := f.Download(ctx, file, destDir)
		if err != nil {
			return written, err
		}
		f.logger.Info("Fetched file", "path", file.Path, "bytes", file.Size, "dest", dest)
		written = append(written, dest)
	}
	return written, nil
}
