package domfinder

import (
	"time"

	"github.com/hazyhaar/domfinder/domfinder/internal/render"
	"github.com/hazyhaar/domfinder/domfinder/internal/resolve"
	"github.com/hazyhaar/domfinder/domfinder/internal/store"
)

// Titles recorded when a page yields no usable title.
const (
	TitleUnavailable      = resolve.TitleUnavailable
	TitleConnectionFailed = resolve.TitleConnectionFailed
)

// Record is one result row: domain, title, extraction timestamp.
type Record = store.Record

// Resolution is the outcome of fetching one page title.
type Resolution = resolve.Resolution

// Table is the ordered, duplicate-free result table.
type Table = store.Table

// Run is the outcome of one extraction.
type Run struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	URLs      []string  `json:"urls"`
	Hostnames []string  `json:"hostnames"`
	Records   []Record  `json:"records"`

	// ExistingRows is the size of the session snapshot before the merge.
	ExistingRows int `json:"existing_rows"`
	// StoredRows is the size of the storage table after the merge.
	StoredRows int `json:"stored_rows"`

	Report *render.Report `json:"-"`
}
