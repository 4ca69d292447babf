package submission

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/njautech/schoolhub/core"
)

// FileKeyPrefix is the storage prefix of every submission file.
const FileKeyPrefix = "submissions/"

// sniffLen is how many bytes are inspected when no content type is declared.
const sniffLen = 3072

// AcceptedContentTypes are the document types students may upload.
var AcceptedContentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":    true,
	"text/markdown": true,
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func fileError(msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: "file", Error: msg})
}

// FileTooLargeError is returned for files over maxSize bytes.
func FileTooLargeError(maxSize int64) error {
	return fileError(fmt.Sprintf("file must not exceed %d MiB", maxSize>>20))
}

// baseContentType drops parameters and lowers ct.
func baseContentType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return core.CleanString(ct, true /* lower */)
}

// checkFile validates the declared metadata of f before anything is read or stored.
func checkFile(f *File, maxSize int64) error {
	if f.Content == nil || f.Name == "" {
		return fileError("a file is required")
	}
	if f.Size > maxSize {
		return FileTooLargeError(maxSize)
	}

	f.ContentType = baseContentType(f.ContentType)
	if f.ContentType == "" || f.ContentType == "application/octet-stream" {
		// nothing usable declared: sniff the head of the content
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(f.Content, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return fileError("the file could not be read")
		}
		f.ContentType = baseContentType(mimetype.Detect(head[:n]).String())
		f.Content = io.MultiReader(bytes.NewReader(head[:n]), f.Content)
	}

	if !AcceptedContentTypes[f.ContentType] {
		return fileError("only PDF, Word, plain text and Markdown documents are accepted")
	}
	return nil
}

// readFile loads the content of f, failing when it is empty or exceeds maxSize whatever was declared.
func readFile(f *File, maxSize int64) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	n, err := io.Copy(buf, io.LimitReader(f.Content, maxSize+1))
	if err != nil {
		return nil, fileError("the file could not be read")
	}
	if n > maxSize {
		return nil, FileTooLargeError(maxSize)
	}
	if n == 0 {
		return nil, fileError("the file is empty")
	}
	f.Size = n
	return buf, nil
}

// fileKey derives a collision-resistant storage key from the upload time and the original name.
// A short random part keeps concurrent uploads of the same name apart.
func fileKey(now time.Time, name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "_.")
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%sassignment_%d_%s_%s", FileKeyPrefix, now.UnixNano(), uuid.NewString()[:8], base)
}
