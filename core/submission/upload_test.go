package submission

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njautech/schoolhub/core"
)

func TestCheckFile(t *testing.T) {
	const maxSize = 10 << 20
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")

	tests := []struct {
		name     string
		file     File
		wantErr  bool
		wantType string
	}{
		{name: "no content", file: File{Name: "a.pdf", ContentType: "application/pdf"}, wantErr: true},
		{name: "no name", file: File{ContentType: "application/pdf", Content: bytes.NewReader(pdf)}, wantErr: true},
		{
			name: "png rejected", wantErr: true,
			file: File{Name: "a.png", ContentType: "image/png", Size: 10, Content: strings.NewReader("x")},
		},
		{
			name: "declared too large", wantErr: true,
			file: File{Name: "a.pdf", ContentType: "application/pdf", Size: maxSize + 1, Content: bytes.NewReader(pdf)},
		},
		{
			name: "exactly the max size", wantType: "application/pdf",
			file: File{Name: "a.pdf", ContentType: "application/pdf", Size: maxSize, Content: bytes.NewReader(pdf)},
		},
		{
			name: "parameters dropped", wantType: "text/plain",
			file: File{Name: "a.txt", ContentType: "Text/Plain; charset=utf-8", Content: strings.NewReader("hi")},
		},
		{
			name: "docx", wantType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			file: File{
				Name:        "a.docx",
				ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				Content:     strings.NewReader("PK"),
			},
		},
		{
			name: "sniffed when undeclared", wantType: "application/pdf",
			file: File{Name: "a.pdf", Content: bytes.NewReader(pdf)},
		},
		{
			name: "sniffed octet-stream", wantType: "text/plain",
			file: File{Name: "notes", ContentType: "application/octet-stream", Content: strings.NewReader("just some notes")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.file
			err := checkFile(&f, maxSize)
			if tt.wantErr {
				assert.True(t, core.IsValidation(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, f.ContentType)
		})
	}
}

func TestCheckFile_sniffKeepsContent(t *testing.T) {
	content := strings.Repeat("plain text line\n", 500) // longer than the sniffed head
	f := File{Name: "notes.txt", Content: strings.NewReader(content)}
	require.NoError(t, checkFile(&f, 10<<20))

	got, err := io.ReadAll(f.Content)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestReadFile(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		maxSize  int64
		wantErr  bool
		wantSize int64
	}{
		{name: "empty", content: "", maxSize: 10, wantErr: true},
		{name: "over the limit whatever was declared", content: "0123456789a", maxSize: 10, wantErr: true},
		{name: "at the limit", content: "0123456789", maxSize: 10, wantSize: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := File{Name: "a.txt", ContentType: "text/plain", Size: 1, Content: strings.NewReader(tt.content)}
			buf, err := readFile(&f, tt.maxSize)
			if tt.wantErr {
				assert.True(t, core.IsValidation(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, f.Size)
			assert.Equal(t, tt.content, buf.String())
		})
	}
}

func TestFileKey(t *testing.T) {
	now := time.Unix(0, 1700000000123456789)

	tests := []struct {
		name     string
		fileName string
		wantSufx string
	}{
		{name: "plain", fileName: "essay.pdf", wantSufx: "_essay.pdf"},
		{name: "spaces", fileName: "my essay (final).pdf", wantSufx: "_my_essay_final_.pdf"},
		{name: "path stripped", fileName: `..\..\etc/passwd`, wantSufx: "_passwd"},
		{name: "nothing usable", fileName: "???", wantSufx: "_document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := fileKey(now, tt.fileName)
			assert.True(t, strings.HasPrefix(key, FileKeyPrefix+"assignment_1700000000123456789_"), key)
			assert.True(t, strings.HasSuffix(key, tt.wantSufx), key)
			assert.NotContains(t, strings.TrimPrefix(key, FileKeyPrefix), "/")
		})
	}

	assert.NotEqual(t, fileKey(now, "a.pdf"), fileKey(now, "a.pdf"), "same name at the same instant")
}
