package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const listPageSize = 200

type gdriveClient struct {
	svc *drivev3.Service
}

func newGDriveClient(ctx context.Context, rawToken json.RawMessage) (*gdriveClient, error) {
	var token oauth2.Token
	if err := json.Unmarshal(rawToken, &token); err != nil {
		return nil, fmt.Errorf("failed to parse gdrive token: %w", err)
	}

	// Credentials are a snapshot taken at enqueue time; no refresh mid-job.
	svc, err := drivev3.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, fmt.Errorf("failed to build drive service: %w", err)
	}

	return &gdriveClient{svc: svc}, nil
}

func (c *gdriveClient) ListChildren(ctx context.Context, folderID, pageToken string) (Listing, error) {
	if folderID == "" {
		folderID = "root"
	}

	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))
	call := c.svc.Files.List().
		Q(q).
		PageSize(listPageSize).
		Fields("nextPageToken, files(id, name, mimeType, size)").
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Do()
	if err != nil {
		return Listing{}, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}

	listing := Listing{NextToken: res.NextPageToken}
	for _, f := range res.Files {
		listing.Items = append(listing.Items, Item{
			ID:       f.Id,
			Name:     f.Name,
			MIMEType: f.MimeType,
			Size:     f.Size,
		})
	}

	return listing, nil
}

func (c *gdriveClient) Fetch(ctx context.Context, item Item) (*Content, error) {
	format := ResolveExport(item.MIMEType)

	var (
		res *http.Response
		err error
	)
	if format.Convert {
		res, err = c.svc.Files.Export(item.ID, format.MIMEType).Context(ctx).Download()
	} else {
		res, err = c.svc.Files.Get(item.ID).Context(ctx).Download()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", item.Name, err)
	}

	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(res.Body)

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", item.Name, err)
	}

	return &Content{
		Name:     ExportName(item),
		MIMEType: format.MIMEType,
		Data:     data,
	}, nil
}

func (c *gdriveClient) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	f := &drivev3.File{
		Name:     name,
		MimeType: FolderMIMEType,
	}
	if parentID != "" {
		f.Parents = []string{parentID}
	}

	created, err := c.svc.Files.Create(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", name, err)
	}

	return created.Id, nil
}

func (c *gdriveClient) Upload(ctx context.Context, content *Content, parentID string) (string, error) {
	f := &drivev3.File{Name: content.Name}
	if parentID != "" {
		f.Parents = []string{parentID}
	}

	created, err := c.svc.Files.Create(f).
		Media(bytes.NewReader(content.Data), googleapi.ContentType(content.MIMEType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", content.Name, err)
	}

	return created.Id, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
