package scopedex

import "github.com/kailas-cloud/scopedex/internal/domain/document"

// Document is the flat projection of one entity.
type Document struct {
	ID     int64
	Fields map[string]any
}

// Page is one page of a list call. Previous and Next are nil at the edges.
type Page struct {
	Items    []Document
	Count    int
	PerPage  int
	Previous *int
	Next     *int
}

func fromDomain(d document.Document) Document {
	return Document{ID: d.ID(), Fields: d.Fields()}
}
