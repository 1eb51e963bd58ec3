package schoolapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const downloadTimeout = 5 * time.Minute

// modifiedLayouts are the timestamp formats the backend uses in model listings.
var modifiedLayouts = []string{time.RFC3339, "2006-01-02 15:04:05"}

// ListModels returns the model files published by the backend.
func (c *Client) ListModels(ctx context.Context) ([]ModelFile, error) {
	resp, err := doGetJSON[modelListResponse](ctx, c, "api/models/list")
	if err != nil {
		return nil, fmt.Errorf("could not list models: %w", err)
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("could not list models: %s", msg)
	}
	return resp.Files, nil
}

// downloadURLs returns the locations to try for a model file, in order.
func (c *Client) downloadURLs(file ModelFile) []string {
	name := url.PathEscape(file.Name)
	urls := make([]string, 0, 4)
	if file.DownloadURL != "" {
		urls = append(urls, file.DownloadURL)
	}
	return append(urls,
		c.resolveURL("api/models/download/"+name),
		c.resolveURL("models/download/"+name),
		c.resolveURL("storage/models/"+name),
	)
}

// DownloadModel downloads a model file into dir, trying each known location
// until one answers 200. The file is written to a temporary name first and
// renamed into place, so a failed download never leaves a partial file.
func (c *Client) DownloadModel(ctx context.Context, file ModelFile, dir string) (string, error) {
	if file.Name == "" || file.Name != filepath.Base(file.Name) || file.Name == "." || file.Name == ".." {
		return "", fmt.Errorf("invalid model file name %q", file.Name)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("could not create model directory: %w", err)
	}
	target := filepath.Join(dir, file.Name)

	var errs []error
	for _, u := range c.downloadURLs(file) {
		if err := c.downloadTo(ctx, u, target); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return target, nil
	}
	return "", fmt.Errorf("could not download %s from any location: %w", file.Name, errors.Join(errs...))
}

func (c *Client) downloadTo(ctx context.Context, rawURL, target string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}

	// model files are large, only the context bounds the transfer
	client := &http.Client{Transport: c.httpClient.Transport}
	resp, err := client.Do(req) //nolint:gosec // URL comes from the backend listing or the configured base URL
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.part")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("could not move model file into place: %w", err)
	}
	return nil
}

// NeedsUpdate reports whether the local copy of file in dir is missing or
// older than the remote one. A listing without a usable timestamp only
// triggers a download when the size differs.
func NeedsUpdate(file ModelFile, dir string) bool {
	info, err := os.Stat(filepath.Join(dir, file.Name))
	if err != nil {
		return true
	}
	if file.Size > 0 && info.Size() != file.Size {
		return true
	}
	for _, layout := range modifiedLayouts {
		if remote, err := time.Parse(layout, file.Modified); err == nil {
			return remote.After(info.ModTime())
		}
	}
	return false
}

// SyncResult summarises a model synchronisation.
type SyncResult struct {
	Total      int
	Downloaded []string
	Skipped    []string
	Errors     []error
}

// SyncModels lists the published models and syncs them into dir.
func (c *Client) SyncModels(ctx context.Context, dir string, progress func(ModelFile)) (*SyncResult, error) {
	files, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return c.SyncFiles(ctx, files, dir, progress)
}

// SyncFiles downloads every file of an existing listing that is missing or
// outdated in dir. progress, when not nil, is called after each file.
func (c *Client) SyncFiles(ctx context.Context, files []ModelFile, dir string, progress func(ModelFile)) (*SyncResult, error) {
	result := &SyncResult{Total: len(files)}
	for _, file := range files {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !NeedsUpdate(file, dir) {
			result.Skipped = append(result.Skipped, file.Name)
		} else if _, err := c.DownloadModel(ctx, file, dir); err != nil {
			result.Errors = append(result.Errors, err)
		} else {
			result.Downloaded = append(result.Downloaded, file.Name)
		}
		if progress != nil {
			progress(file)
		}
	}
	return result, nil
}
