package model

import "encoding/json"

type Provider string

const (
	ProviderGDrive  Provider = "gdrive"
	ProviderDropbox Provider = "dropbox"
)

// Credential is an opaque authorization snapshot taken at enqueue time.
// The engine passes it through to the storage client and never inspects it.
type Credential struct {
	Provider Provider        `json:"provider"`
	Token    json.RawMessage `json:"token"`
}

// WorkItem is the queue's transport unit. Credentials travel by value so a
// running job is unaffected by later changes to the stored tokens.
type WorkItem struct {
	JobID            string          `json:"job_id"`
	SourceCredential Credential      `json:"source_credential"`
	DestCredential   Credential      `json:"dest_credential"`
	Selection        []SelectionItem `json:"selection"`
}
