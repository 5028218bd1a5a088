package archive

import "context"

// PageFetcher retrieves an HTML page, retrying per its configured policy.
// It returns the raw body or a *FetchError once retries are exhausted.
type PageFetcher interface {
	FetchPage(ctx context.Context, ref PageRef) ([]byte, error)
}

// Downloader streams a binary target to a local file under dir and returns
// the resulting artifact. Ownership of the file passes to the caller.
type Downloader interface {
	Download(ctx context.Context, ref PageRef, dir string) (Artifact, error)
}

// Sink persists an artifact remotely and removes the local copy on success.
// Ownership of the artifact transfers on call.
type Sink interface {
	Archive(ctx context.Context, artifact Artifact) (RemoteRef, error)
}

// Notifier publishes a completion event for each archived artifact.
type Notifier interface {
	UploadComplete(ctx context.Context, ref RemoteRef) error
}
