package archive

import "fmt"

// FetchError reports that a page or binary retrieval exhausted its retries.
type FetchError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// UploadError reports that the remote store rejected a write. The local file
// is retained so the operator can retry manually.
type UploadError struct {
	Name  string
	Cause error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s failed: %v", e.Name, e.Cause)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}
