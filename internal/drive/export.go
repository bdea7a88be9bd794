package drive

import "strings"

const FolderMIMEType = "application/vnd.google-apps.folder"

const googleAppsPrefix = "application/vnd.google-apps."

// ExportFormat describes how a source MIME type leaves the source account.
// Convert means the provider must export to the interchange format and the
// uploaded name gets Ext appended; otherwise bytes travel unchanged.
type ExportFormat struct {
	MIMEType string
	Ext      string
	Convert  bool
}

var exportFormats = map[string]ExportFormat{
	"application/vnd.google-apps.document": {
		MIMEType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Ext:      ".docx",
		Convert:  true,
	},
	"application/vnd.google-apps.spreadsheet": {
		MIMEType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Ext:      ".xlsx",
		Convert:  true,
	},
	"application/vnd.google-apps.presentation": {
		MIMEType: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		Ext:      ".pptx",
		Convert:  true,
	},
}

// ResolveExport maps a declared MIME type to its transfer format. It is total:
// types outside the table fall through byte-for-byte.
func ResolveExport(mimeType string) ExportFormat {
	if f, ok := exportFormats[mimeType]; ok {
		return f
	}

	return ExportFormat{MIMEType: mimeType}
}

// ExportName is the destination file name, with the interchange extension
// appended for converted kinds.
func ExportName(item Item) string {
	f := ResolveExport(item.MIMEType)
	if f.Convert {
		return item.Name + f.Ext
	}

	return item.Name
}

// IsSkippable reports proprietary kinds that can neither be exported nor
// downloaded as bytes (forms, maps, shortcuts and the like).
func IsSkippable(mimeType string) bool {
	if !strings.HasPrefix(mimeType, googleAppsPrefix) {
		return false
	}
	if mimeType == FolderMIMEType {
		return false
	}

	_, exportable := exportFormats[mimeType]
	return !exportable
}
