package browse

import "fmt"

// Size unit constants for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
	sizeTB = 1024 * 1024 * 1024 * 1024
)

// UnknownSize is shown for a zero size (folders, native documents).
const UnknownSize = "—"

// FormatSize returns a human-readable size with one decimal and 1024-step
// units, e.g. "512.0 B", "1.5 KB". Zero is UnknownSize.
func FormatSize(bytes int64) string {
	abs := bytes
	if abs < 0 {
		abs = -abs
	}

	switch {
	case bytes == 0:
		return UnknownSize
	case abs >= sizeTB:
		return fmt.Sprintf("%3.1f TB", float64(bytes)/float64(sizeTB))
	case abs >= sizeGB:
		return fmt.Sprintf("%3.1f GB", float64(bytes)/float64(sizeGB))
	case abs >= sizeMB:
		return fmt.Sprintf("%3.1f MB", float64(bytes)/float64(sizeMB))
	case abs >= sizeKB:
		return fmt.Sprintf("%3.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%3.1f B", float64(bytes))
	}
}
