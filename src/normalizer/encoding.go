// backend/src/normalizer/encoding.go
package normalizer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"

	"github.com/username/kabufolio/src/logger"
)

// ErrEncoding is returned when no candidate encoding decodes a file cleanly.
// No partial or best-effort decode is ever produced.
var ErrEncoding = errors.New("could not decode file with any known encoding")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacyCandidates are tried, in order, after UTF-8 fails. ShiftJIS in
// x/text follows the Windows (CP932) table, which is what broker downloads
// actually use.
var legacyCandidates = []struct {
	name string
	enc  encoding.Encoding
}{
	{"shift_jis", japanese.ShiftJIS},
	{"euc-jp", japanese.EUCJP},
}

// DecodeFile reads the whole file and decodes it against a fixed candidate
// list: UTF-8 with BOM, plain UTF-8, then the legacy Japanese encodings. The
// first encoding that decodes without loss wins. The BOM is checked before
// the legacy decoders because its bytes also happen to form valid Shift-JIS
// sequences.
func DecodeFile(path string) (string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	return decodeBytes(path, raw)
}

func decodeBytes(path string, raw []byte) (string, string, error) {
	if bytes.HasPrefix(raw, utf8BOM) {
		stripped := raw[len(utf8BOM):]
		if utf8.Valid(stripped) {
			logger.L.Debug("decoded file", "path", path, "encoding", "utf-8-sig")
			return string(stripped), "utf-8-sig", nil
		}
	}
	if utf8.Valid(raw) {
		logger.L.Debug("decoded file", "path", path, "encoding", "utf-8")
		return string(raw), "utf-8", nil
	}
	for _, cand := range legacyCandidates {
		decoded, err := cand.enc.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		// The decoders substitute U+FFFD for bytes they cannot map instead
		// of failing, so a replacement rune in the output means this was not
		// the file's real encoding.
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		logger.L.Debug("decoded file", "path", path, "encoding", cand.name)
		return string(decoded), cand.name, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrEncoding, path)
}
