package domain

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileType identifies the format of an uploaded document
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeCSV  FileType = "csv"
	FileTypeDOCX FileType = "docx"
	FileTypeEPUB FileType = "epub"
	FileTypeTXT  FileType = "txt"
	FileTypeMD   FileType = "md"
	FileTypeJSON FileType = "json"
	FileTypeHTML FileType = "html"
)

var supportedFileTypes = map[string]FileType{
	".pdf":  FileTypePDF,
	".csv":  FileTypeCSV,
	".docx": FileTypeDOCX,
	".epub": FileTypeEPUB,
	".txt":  FileTypeTXT,
	".md":   FileTypeMD,
	".json": FileTypeJSON,
	".html": FileTypeHTML,
	".htm":  FileTypeHTML,
}

// FileTypeFromName resolves the file type from a file name's extension
func FileTypeFromName(name string) (FileType, error) {
	ext := strings.ToLower(filepath.Ext(name))
	ft, ok := supportedFileTypes[ext]
	if !ok {
		if ext == "" {
			ext = "(none)"
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
	return ft, nil
}

// SupportedExtensions lists accepted upload extensions
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedFileTypes))
	for ext := range supportedFileTypes {
		exts = append(exts, ext)
	}
	return exts
}

// AgentFile is a document stored for an agent
type AgentFile struct {
	Path         string   `json:"path"`
	FileType     FileType `json:"file_type"`
	OriginalName string   `json:"original_name"`
	Chunks       int      `json:"chunks"`
}

// Agent is a tenant backed by its own documents and access token.
// Token holds the plaintext only between generation and the create response;
// persisted records carry TokenHash and TokenCipher instead.
type Agent struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Token       string      `json:"-"`
	TokenHash   string      `json:"-"`
	TokenCipher string      `json:"-"`
	TokenHint   string      `json:"-"`
	Files       []AgentFile `json:"files"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AgentPublic is the projection of an agent safe to expose in list views
type AgentPublic struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Token     string      `json:"token"`
	Files     []AgentFile `json:"files"`
	CreatedAt time.Time   `json:"created_at"`
}

// Public returns the masked projection of the agent
func (a *Agent) Public() AgentPublic {
	files := a.Files
	if files == nil {
		files = []AgentFile{}
	}
	return AgentPublic{
		ID:        a.ID,
		Name:      a.Name,
		Token:     a.TokenHint,
		Files:     files,
		CreatedAt: a.CreatedAt,
	}
}

// AgentCreated is returned once, right after creation, with the raw token
type AgentCreated struct {
	AgentPublic
	Token string `json:"token"`
}

// AgentDetails bundles an agent with its sessions for the admin dashboard
type AgentDetails struct {
	Agent    AgentPublic      `json:"agent"`
	Sessions []SessionSummary `json:"sessions"`
}

// AgentRepository defines the interface for agent storage
type AgentRepository interface {
	Create(ctx context.Context, agent *Agent) error
	Get(ctx context.Context, id uuid.UUID) (*Agent, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*Agent, error)
	List(ctx context.Context) ([]Agent, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}
