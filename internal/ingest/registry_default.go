package ingest

import (
	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/ingest/extract"
)

// NewDefaultRegistry registers an extractor for every supported file type
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(domain.FileTypeTXT, ExtractorFunc(extract.Text))
	r.Register(domain.FileTypeMD, ExtractorFunc(extract.Text))
	r.Register(domain.FileTypeCSV, ExtractorFunc(extract.CSV))
	r.Register(domain.FileTypeJSON, ExtractorFunc(extract.JSON))
	r.Register(domain.FileTypeHTML, ExtractorFunc(extract.HTML))
	r.Register(domain.FileTypeDOCX, ExtractorFunc(extract.DOCX))
	r.Register(domain.FileTypeEPUB, ExtractorFunc(extract.EPUB))
	r.Register(domain.FileTypePDF, ExtractorFunc(extract.PDF))
	return r
}
