package security_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/Rrens/rag-agent/internal/security"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"C:\\Users\\me\\notes.txt", "notes.txt"},
		{"my file (1).docx", "my_file_1_.docx"},
		{".hidden.md", "hidden.md"},
		{"", "file"},
		{"/", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, security.SanitizeFileName(tt.input))
		})
	}
}

func TestSanitizeFileName_TruncatesKeepingExtension(t *testing.T) {
	name := strings.Repeat("a", 300) + ".pdf"
	got := security.SanitizeFileName(name)

	assert.Len(t, got, 128)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestStoredFileName(t *testing.T) {
	a := security.StoredFileName("doc.txt")
	b := security.StoredFileName("doc.txt")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "-doc.txt"))
	assert.Len(t, a, 36+1+len("doc.txt"))
}

func TestWithinDir(t *testing.T) {
	dir := t.TempDir()

	assert.True(t, security.WithinDir(dir, filepath.Join(dir, "a.txt")))
	assert.False(t, security.WithinDir(dir, filepath.Join(dir, "..", "a.txt")))
	assert.False(t, security.WithinDir(dir, dir))
}
