// Package archive defines core types shared across the archiver subsystems.
package archive

import "time"

// PageKind tags a discovered link with the traversal level it belongs to.
type PageKind string

// Page kinds produced by the extractor.
const (
	KindRoot  PageKind = "root"
	KindYear  PageKind = "year"
	KindPaper PageKind = "paper"
	KindPDF   PageKind = "pdf"
)

// PageRef is an absolute URL plus the kind it was discovered as.
// Immutable once created.
type PageRef struct {
	URL  string
	Kind PageKind
}

// YearTask is a year listing page plus its sort key. The year is the integer
// formed by the digits of the URL; unparsable URLs sort last with year 0.
type YearTask struct {
	Ref  PageRef
	Year int
}

// PaperTask is a single paper detail page awaiting PDF resolution.
type PaperTask struct {
	Ref PageRef
}

// Artifact is a downloaded PDF on local disk. The downloading worker owns it
// until it is handed to the sink; the sink owns deletion after a successful
// remote write.
type Artifact struct {
	Name      string
	LocalPath string
	Size      int64
	SHA256    string
	SourceURL string
	Fetched   time.Time
}

// RemoteRef identifies an uploaded object in the remote store.
type RemoteRef struct {
	ID       string
	Name     string
	ViewLink string
}
