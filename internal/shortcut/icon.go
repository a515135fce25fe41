package shortcut

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxIconBytes caps icons embedded as data URLs.
const MaxIconBytes = 256 * 1024

// IconDataURL reads an image file and returns it as a data: URL. Files
// that are missing, too large, or not images are reported with an error
// so the caller can skip the icon.
func IconDataURL(path string, maxBytes int64) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no icon path")
	}
	// Windows icon locations may carry a ",index" suffix.
	if i := strings.LastIndex(path, ","); i > 0 {
		if _, err := strconv.Atoi(path[i+1:]); err == nil {
			path = path[:i]
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat icon: %w", err)
	}
	if info.IsDir() || info.Size() == 0 || info.Size() > maxBytes {
		return "", fmt.Errorf("icon %s is not a usable file (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read icon: %w", err)
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("icon %s has non-image type %s", path, mtype.String())
	}
	mime, _, _ := strings.Cut(mtype.String(), ";")
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
