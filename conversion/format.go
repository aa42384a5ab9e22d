package conversion

import (
	"path"
	"strings"

	"github.com/datalift/ingest-services/constants"
)

// DetectFormat decides which decoder to use for a raw object. The
// file extension wins; the upload content type is the fallback.
// Returns FormatUnknown for anything the converters can't decode.
func DetectFormat(key, contentType string) string {
	ext := strings.ToLower(path.Ext(key))
	if format, ok := constants.TabularExtensions[ext]; ok {
		return format
	}
	switch baseContentType(contentType) {
	case constants.ContentTypeCSV:
		return constants.FormatCSV
	case constants.ContentTypeJSON, constants.ContentTypeNDJSON:
		return constants.FormatNDJSON
	}
	return constants.FormatUnknown
}

// baseContentType strips parameters like "; charset=utf-8".
func baseContentType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(strings.ToLower(contentType))
}
