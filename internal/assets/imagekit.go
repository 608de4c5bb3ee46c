package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// ErrFileNotFound is returned by ImageKitClient.DeleteFile when the provider has no such file.
var ErrFileNotFound = errors.New("imagekit: file not found")

const (
	imageKitPageSize = 100
	imageKitMaxPages = 50
)

// ImageKitFile is the subset of the provider's file record the service needs.
type ImageKitFile struct {
	FileID   string `json:"fileId"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	FilePath string `json:"filePath"`
	Type     string `json:"type"`
}

// ListFilesQuery selects files from the media library.
type ListFilesQuery struct {
	SearchQuery string
	Path        string
	Skip        int
	Limit       int
}

// ImageKitAPI is the part of the provider API used for deletions.
type ImageKitAPI interface {
	ListFiles(ctx context.Context, q ListFilesQuery) ([]ImageKitFile, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// ImageKitClient talks to the ImageKit media API with the account's private key.
type ImageKitClient struct {
	baseURL    string
	privateKey string
	httpClient *http.Client
}

// NewImageKitClient returns a client for the media API rooted at baseURL.
func NewImageKitClient(baseURL, privateKey string, httpClient *http.Client) *ImageKitClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &ImageKitClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		privateKey: privateKey,
		httpClient: httpClient,
	}
}

// ListFiles returns one page of files matching q.
func (c *ImageKitClient) ListFiles(ctx context.Context, q ListFilesQuery) ([]ImageKitFile, error) {
	params := url.Values{}
	if q.SearchQuery != "" {
		params.Set("searchQuery", q.SearchQuery)
	}
	if q.Path != "" {
		params.Set("path", q.Path)
	}
	if q.Skip > 0 {
		params.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	endpoint := c.baseURL + "/v1/files"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	resp, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("list files", resp)
	}

	var files []ImageKitFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("imagekit: decode file list: %w", err)
	}
	return files, nil
}

// DeleteFile removes a file by its provider id.
func (c *ImageKitClient) DeleteFile(ctx context.Context, fileID string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.baseURL+"/v1/files/"+url.PathEscape(fileID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrFileNotFound
	default:
		return apiError("delete file", resp)
	}
}

func (c *ImageKitClient) do(ctx context.Context, method, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("imagekit: build request: %w", err)
	}
	req.SetBasicAuth(c.privateKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagekit: %s %s: %w", method, req.URL.Path, err)
	}
	return resp, nil
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return fmt.Errorf("imagekit: %s: status %d: %s", op, resp.StatusCode, payload.Message)
	}
	return fmt.Errorf("imagekit: %s: status %d", op, resp.StatusCode)
}

// Locator resolves an image reference to a provider file id. An empty id with a nil error means no match.
type Locator interface {
	Name() string
	Locate(ctx context.Context, ref, filename string) (string, error)
}

// NameLookup searches the library for a file with the exact filename.
type NameLookup struct {
	API ImageKitAPI
}

func (NameLookup) Name() string { return "name_lookup" }

func (l NameLookup) Locate(ctx context.Context, _ string, filename string) (string, error) {
	files, err := l.API.ListFiles(ctx, ListFilesQuery{
		SearchQuery: fmt.Sprintf("name = %q", filename),
		Limit:       1,
	})
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	return files[0].FileID, nil
}

// FolderScan pages through every file in Folder and matches by URL or name.
type FolderScan struct {
	API    ImageKitAPI
	Folder string
}

func (FolderScan) Name() string { return "folder_scan" }

func (s FolderScan) Locate(ctx context.Context, ref, filename string) (string, error) {
	for page := 0; page < imageKitMaxPages; page++ {
		files, err := s.API.ListFiles(ctx, ListFilesQuery{
			Path:  s.Folder,
			Skip:  page * imageKitPageSize,
			Limit: imageKitPageSize,
		})
		if err != nil {
			return "", err
		}
		for _, f := range files {
			if f.Type != "" && f.Type != "file" {
				continue
			}
			if matchesFile(f, ref, filename) {
				return f.FileID, nil
			}
		}
		if len(files) < imageKitPageSize {
			return "", nil
		}
	}
	return "", nil
}

func matchesFile(f ImageKitFile, ref, filename string) bool {
	if f.URL != "" && f.URL == ref {
		return true
	}
	if f.Name == "" {
		return false
	}
	return f.Name == filename || strings.Contains(referencePath(ref), f.Name)
}

// referencePath is ref without its query and fragment.
func referencePath(ref string) string {
	if u, err := url.Parse(ref); err == nil {
		return u.Path
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// ImageKitBackend deletes images served from the configured ImageKit URL endpoint.
type ImageKitBackend struct {
	host     string
	api      ImageKitAPI
	locators []Locator
	logger   *slog.Logger
}

// NewImageKitBackend builds the CDN backend. The name lookup runs first and the folder scan is the fallback.
func NewImageKitBackend(urlEndpoint, folder string, api ImageKitAPI, logger *slog.Logger) (*ImageKitBackend, error) {
	u, err := url.Parse(urlEndpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid imagekit url endpoint %q", urlEndpoint)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageKitBackend{
		host: strings.ToLower(u.Host),
		api:  api,
		locators: []Locator{
			NameLookup{API: api},
			FolderScan{API: api, Folder: folder},
		},
		logger: logger,
	}, nil
}

func (b *ImageKitBackend) Name() string { return "imagekit" }

func (b *ImageKitBackend) Owns(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, b.host)
}

// Delete runs the locators in order. A failing locator does not stop the chain; the
// attempt only fails when no locator matched and at least one of them errored.
func (b *ImageKitBackend) Delete(ctx context.Context, ref string) (Outcome, error) {
	filename := filenameFromURL(ref)
	if filename == "" {
		return OutcomeNotFound, nil
	}

	var locateErr error
	for _, loc := range b.locators {
		fileID, err := loc.Locate(ctx, ref, filename)
		if err != nil {
			b.logger.WarnContext(ctx, "imagekit lookup failed",
				slog.String("strategy", loc.Name()),
				slog.String("filename", filename),
				slog.String("error", err.Error()),
			)
			locateErr = errors.Join(locateErr, err)
			continue
		}
		if fileID == "" {
			continue
		}

		if err := b.api.DeleteFile(ctx, fileID); err != nil {
			if errors.Is(err, ErrFileNotFound) {
				return OutcomeNotFound, nil
			}
			return OutcomeFailed, err
		}
		return OutcomeDeleted, nil
	}

	if locateErr != nil {
		return OutcomeFailed, locateErr
	}
	return OutcomeNotFound, nil
}

func filenameFromURL(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}
