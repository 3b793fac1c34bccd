// Package remote mirrors documents and cache artifacts to a Google Drive folder.
package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const (
	MimeTypePDF    = "application/pdf"
	MimeTypeJSON   = "application/json"
	MimeTypeText   = "text/plain"
	MimeTypeFolder = "application/vnd.google-apps.folder"
)

// SyncMimeTypes is the allow-list of remote media types pulled by Sync:
// source documents and their cache artifacts.
var SyncMimeTypes = []string{MimeTypePDF, MimeTypeJSON}

const (
	fileFields = "id, name, mimeType, modifiedTime, trashed, parents"
	pageSize   = 100
)

// File is the subset of Drive file metadata the service works with.
type File struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	Trashed      bool     `json:"trashed,omitempty"`
	Parents      []string `json:"parents,omitempty"`
}

// Query selects remote files. Zero values mean "no constraint", except that
// trashed files are excluded unless IncludeTrashed is set.
type Query struct {
	FolderID       string
	MimeTypes      []string
	Name           string
	IncludeTrashed bool
	Limit          int
}

// String renders the query in Drive search syntax.
func (q Query) String() string {
	var parts []string
	if q.FolderID != "" {
		parts = append(parts, fmt.Sprintf("'%s' in parents", escape(q.FolderID)))
	}
	if q.Name != "" {
		parts = append(parts, fmt.Sprintf("name = '%s'", escape(q.Name)))
	}
	if len(q.MimeTypes) > 0 {
		types := make([]string, len(q.MimeTypes))
		for i, mt := range q.MimeTypes {
			types[i] = fmt.Sprintf("mimeType = '%s'", escape(mt))
		}
		if len(types) == 1 {
			parts = append(parts, types[0])
		} else {
			parts = append(parts, "("+strings.Join(types, " or ")+")")
		}
	}
	if !q.IncludeTrashed {
		parts = append(parts, "trashed = false")
	}
	return strings.Join(parts, " and ")
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// Drive is the remote file store used by Syncer.
type Drive interface {
	List(ctx context.Context, q Query) ([]File, error)
	Download(ctx context.Context, fileID string, w io.Writer) error
	Create(ctx context.Context, folderID, name, mimeType string, content io.Reader) (File, error)
	Update(ctx context.Context, fileID, mimeType string, content io.Reader) (File, error)
	Delete(ctx context.Context, fileID string) error
}

// Client implements Drive on top of the Drive v3 API.
type Client struct {
	svc     *drive.Service
	limiter *RateLimiter
}

var _ Drive = (*Client)(nil)

func NewClient(svc *drive.Service) *Client {
	return &Client{
		svc:     svc,
		limiter: NewRateLimiter(DefaultRateLimit),
	}
}

func (c *Client) List(ctx context.Context, q Query) ([]File, error) {
	var files []File
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		size := int64(pageSize)
		if q.Limit > 0 && q.Limit-len(files) < pageSize {
			size = int64(q.Limit - len(files))
		}

		call := c.svc.Files.List().
			Q(q.String()).
			Fields(googleapi.Field("nextPageToken, files(" + fileFields + ")")).
			PageSize(size).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, c.wrap(fmt.Errorf("list files: %w", err))
		}
		for _, f := range resp.Files {
			files = append(files, fromDrive(f))
		}

		if resp.NextPageToken == "" || (q.Limit > 0 && len(files) >= q.Limit) {
			return files, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return c.wrap(fmt.Errorf("download file %s: %w", fileID, err))
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read file %s: %w", fileID, err)
	}
	return nil
}

func (c *Client) Create(ctx context.Context, folderID, name, mimeType string, content io.Reader) (File, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return File{}, err
	}

	meta := &drive.File{
		Name:     name,
		MimeType: mimeType,
	}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	f, err := c.svc.Files.Create(meta).
		Media(content, googleapi.ContentType(mimeType)).
		Fields(googleapi.Field(fileFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, c.wrap(fmt.Errorf("create file %s: %w", name, err))
	}
	return fromDrive(f), nil
}

func (c *Client) Update(ctx context.Context, fileID, mimeType string, content io.Reader) (File, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return File{}, err
	}

	f, err := c.svc.Files.Update(fileID, &drive.File{}).
		Media(content, googleapi.ContentType(mimeType)).
		Fields(googleapi.Field(fileFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, c.wrap(fmt.Errorf("update file %s: %w", fileID, err))
	}
	return fromDrive(f), nil
}

func (c *Client) Delete(ctx context.Context, fileID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if err := c.svc.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return c.wrap(fmt.Errorf("delete file %s: %w", fileID, err))
	}
	return nil
}

// wrap backs off the limiter on quota errors and classifies the failure.
func (c *Client) wrap(err error) error {
	if IsRateLimited(err) {
		c.limiter.RecordRateLimitError(0)
	}
	return WrapError(err)
}

func fromDrive(f *drive.File) File {
	if f == nil {
		return File{}
	}
	return File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		Trashed:      f.Trashed,
		Parents:      f.Parents,
	}
}
