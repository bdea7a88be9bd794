package drive

import (
	"context"
	"fmt"

	"drivemigrate/internal/model"
)

// Item is one entry of a remote listing.
type Item struct {
	ID       string
	Name     string
	MIMEType string
	Size     int64
}

func (i Item) IsFolder() bool {
	return i.MIMEType == FolderMIMEType
}

// Listing is one page of a folder's children. A non-empty NextToken means the
// caller must keep draining before the folder is fully listed.
type Listing struct {
	Items     []Item
	NextToken string
}

// Content is a fetched file ready for upload. Name and MIMEType already
// reflect any export conversion.
type Content struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Client is the provider-independent storage contract. Both ends of a
// transfer speak this interface; the engine never sees provider types.
type Client interface {
	ListChildren(ctx context.Context, folderID, pageToken string) (Listing, error)
	Fetch(ctx context.Context, item Item) (*Content, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, content *Content, parentID string) (string, error)
}

// NewClient builds the adapter matching the credential's provider.
func NewClient(ctx context.Context, cred model.Credential) (Client, error) {
	switch cred.Provider {
	case model.ProviderGDrive:
		return newGDriveClient(ctx, cred.Token)
	case model.ProviderDropbox:
		return newDropboxClient(cred.Token)
	default:
		return nil, fmt.Errorf("unsupported provider: %q", cred.Provider)
	}
}

// ItemFromSelection converts a user-chosen root into a walkable item.
func ItemFromSelection(sel model.SelectionItem) Item {
	mimeType := sel.MIMEType
	if sel.Kind == model.ItemKindFolder {
		mimeType = FolderMIMEType
	}

	return Item{
		ID:       sel.ExternalID,
		Name:     sel.Name,
		MIMEType: mimeType,
		Size:     sel.Size,
	}
}
