package document

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Supported document types
const (
	MimePDF   = "application/pdf"
	MimeText  = "text/plain"
	MimePNG   = "image/png"
	MimeJPEG  = "image/jpeg"
	MimeGIF   = "image/gif"
	MimeWebP  = "image/webp"
	MimeTIFF  = "image/tiff"
	MimeBMP   = "image/bmp"
	MimeZip   = "application/zip"
	MimeMSOLE = "application/x-ole-storage"
)

// DetectMimeType detects the type from content magic bytes, falling back to
// the declared type. Sources like object stores often declare
// "application/octet-stream" for everything.
func DetectMimeType(data []byte, declared string) string {
	if detected := detectMimeTypeFromMagicBytes(data); detected != "" {
		return detected
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if looksLikeText(data) {
		return MimeText
	}
	return "application/octet-stream"
}

// IsImage reports whether mimeType is an image OCR can read
func IsImage(mimeType string) bool {
	switch mimeType {
	case MimePNG, MimeJPEG, MimeGIF, MimeWebP, MimeTIFF, MimeBMP:
		return true
	}
	return false
}

// detectMimeTypeFromMagicBytes detects the actual MIME type from file content magic bytes
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return MimePDF
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return MimePNG
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return MimeJPEG
	}

	// GIF: 'G' 'I' 'F' '8' ('7' or '9') 'a'
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return MimeGIF
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return MimeWebP
	}

	// TIFF: little-endian or big-endian byte order mark
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return MimeTIFF
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return MimeBMP
	}

	// ZIP containers (XLSX, DOCX)
	if bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}) {
		return MimeZip
	}

	// Legacy Office (XLS, DOC)
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}) {
		return MimeMSOLE
	}

	return ""
}

// looksLikeText accepts valid UTF-8 with no NUL bytes in the first 8KB
func looksLikeText(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	head := data
	if len(head) > 8192 {
		head = head[:8192]
		// Don't reject a rune split at the cut
		for i := 0; i < utf8.UTFMax && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	return utf8.Valid(head) && !strings.ContainsRune(string(head), 0)
}
