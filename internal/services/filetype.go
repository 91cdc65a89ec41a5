package services

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"paperboard/internal/apperr"

	"github.com/gabriel-vasile/mimetype"
)

const (
	mimePDF  = "application/pdf"
	mimeDOC  = "application/msword"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var allowedTypes = map[string]string{
	mimePDF:  "pdf",
	mimeDOC:  "doc",
	mimeDOCX: "docx",
}

var allowedExtensions = map[string]string{
	".pdf":  "pdf",
	".doc":  "doc",
	".docx": "docx",
}

// DetectFileType classifies an upload as pdf, doc or docx. The declared
// content type is checked first, then the file name extension, and finally
// the content itself.
func DetectFileType(contentType, fileName string, data []byte) (string, error) {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ft, ok := allowedTypes[strings.ToLower(mt)]; ok {
			return ft, nil
		}
	}

	if ft, ok := allowedExtensions[strings.ToLower(filepath.Ext(fileName))]; ok {
		return ft, nil
	}

	if len(data) > 0 {
		detected := mimetype.Detect(data)
		for mt, ft := range allowedTypes {
			if detected.Is(mt) {
				return ft, nil
			}
		}
	}

	return "", fmt.Errorf("only PDF or Word (.doc, .docx) files are allowed: %w", apperr.ErrInvalidInput)
}
