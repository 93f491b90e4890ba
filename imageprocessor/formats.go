package imageprocessor

import (
	"path/filepath"
	"sort"
	"strings"
)

// Extensions handled by every command, matched case-insensitively
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// IsImageFile checks if a file is a supported image based on extension
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return imageExtensions[ext]
}

// GetFileFormat returns the lowercase file extension without the dot
func GetFileFormat(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// SupportedExtensions returns all supported image file extensions, sorted
func SupportedExtensions() []string {
	extensions := make([]string, 0, len(imageExtensions))
	for ext := range imageExtensions {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}
