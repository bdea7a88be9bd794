package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"golang.org/x/oauth2"
)

const octetStream = "application/octet-stream"

// dropboxClient speaks the same Client contract as the Drive adapter.
// Dropbox addresses items by path, so item and folder IDs are paths here
// ("" is the account root). Dropbox has no proprietary document kinds, so the
// export table always falls through byte-for-byte.
type dropboxClient struct {
	client files.Client
}

func newDropboxClient(rawToken json.RawMessage) (*dropboxClient, error) {
	var token oauth2.Token
	if err := json.Unmarshal(rawToken, &token); err != nil {
		return nil, fmt.Errorf("failed to parse dropbox token: %w", err)
	}

	cfg := dropbox.Config{Token: token.AccessToken}
	return &dropboxClient{client: files.New(cfg)}, nil
}

func (c *dropboxClient) ListChildren(_ context.Context, folderID, pageToken string) (Listing, error) {
	var (
		res *files.ListFolderResult
		err error
	)
	if pageToken == "" {
		res, err = c.client.ListFolder(files.NewListFolderArg(folderID))
	} else {
		res, err = c.client.ListFolderContinue(files.NewListFolderContinueArg(pageToken))
	}
	if err != nil {
		return Listing{}, fmt.Errorf("failed to list dropbox folder %q: %w", folderID, err)
	}

	listing := Listing{}
	if res.HasMore {
		listing.NextToken = res.Cursor
	}

	for _, entry := range res.Entries {
		switch md := entry.(type) {
		case *files.FolderMetadata:
			listing.Items = append(listing.Items, Item{
				ID:       md.PathDisplay,
				Name:     md.Name,
				MIMEType: FolderMIMEType,
			})
		case *files.FileMetadata:
			listing.Items = append(listing.Items, Item{
				ID:       md.PathDisplay,
				Name:     md.Name,
				MIMEType: octetStream,
				Size:     int64(md.Size),
			})
		}
	}

	return listing, nil
}

func (c *dropboxClient) Fetch(_ context.Context, item Item) (*Content, error) {
	_, body, err := c.client.Download(files.NewDownloadArg(item.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", item.Name, err)
	}

	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(body)

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", item.Name, err)
	}

	return &Content{
		Name:     item.Name,
		MIMEType: octetStream,
		Data:     data,
	}, nil
}

func (c *dropboxClient) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	path := parentID + "/" + name

	if _, err := c.client.CreateFolderV2(files.NewCreateFolderArg(path)); err != nil {
		return "", fmt.Errorf("failed to create dropbox folder %s: %w", path, err)
	}

	return path, nil
}

func (c *dropboxClient) Upload(_ context.Context, content *Content, parentID string) (string, error) {
	path := parentID + "/" + content.Name

	arg := files.NewUploadArg(path)
	arg.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: "overwrite"}}
	arg.Autorename = false

	if _, err := c.client.Upload(arg, bytes.NewReader(content.Data)); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}

	return path, nil
}
