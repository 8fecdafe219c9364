// backend/src/formats/detect.go
package formats

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/username/kabufolio/src/logger"
)

// ErrUnknownFormat is returned when no registered layout matches a file.
// The caller must supply a layout explicitly or give up on the file.
var ErrUnknownFormat = errors.New("unknown CSV format")

// headerMatchThreshold is the minimum number of alias-matching canonical
// columns a header must show before a layout is accepted. Fixed count, not a
// percentage, so a three-column layout can still qualify.
const headerMatchThreshold = 3

// MatchFilename tests the lower-cased base name of path against each
// registered layout's detection pattern, in registration order.
func (r *Registry) MatchFilename(path string) (*Layout, bool) {
	name := strings.ToLower(filepath.Base(path))
	for _, l := range r.layouts {
		if l.MatchesFilename(name) {
			logger.L.Debug("format detected from filename", "path", path, "layout", l.Name)
			return l, true
		}
	}
	return nil, false
}

// MatchHeader scans layouts in registration order and returns the first one
// whose header match count meets the threshold. First adequate match wins;
// there is no best-score search across the registry.
func (r *Registry) MatchHeader(header []string) (*Layout, bool) {
	for _, l := range r.layouts {
		if n := l.HeaderMatchCount(header); n >= headerMatchThreshold {
			logger.L.Debug("format detected from header", "layout", l.Name, "matches", n)
			return l, true
		}
	}
	return nil, false
}

// Detect picks the layout for a file: filename heuristic first, header
// heuristic second. A nil header skips the header heuristic.
func (r *Registry) Detect(path string, header []string) (*Layout, error) {
	if l, ok := r.MatchFilename(path); ok {
		return l, nil
	}
	if header != nil {
		if l, ok := r.MatchHeader(header); ok {
			return l, nil
		}
	}
	return nil, ErrUnknownFormat
}
