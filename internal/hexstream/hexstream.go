// Package hexstream turns ASCII hex dumps of the sensor serial stream into
// raw byte buffers for the frame scanner.
package hexstream

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/banshee-data/uwb.report/internal/fsutil"
)

var (
	// ErrOddLength is returned when a dump holds an odd number of hex digits.
	ErrOddLength = errors.New("odd number of hex digits")
	// ErrInvalidHex is returned when a dump contains a non-hex, non-space character.
	ErrInvalidHex = errors.New("invalid hex character")
)

// DefaultPreviewBytes is how much of a file Info shows.
const DefaultPreviewBytes = 1000

// Buffer is one decoded source. Data must not be modified after Load.
type Buffer struct {
	Source string
	Data   []byte
}

// FileInfo describes an input file without decoding it.
type FileInfo struct {
	Path    string
	Size    int64
	Preview string
}

// Loader reads hex dumps from a filesystem.
type Loader struct {
	FS fsutil.FileSystem
}

// NewLoader returns a loader backed by the OS filesystem.
func NewLoader() *Loader {
	return &Loader{FS: fsutil.OSFileSystem{}}
}

func (l *Loader) fs() fsutil.FileSystem {
	if l == nil || l.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return l.FS
}

// Load reads and decodes one dump.
func (l *Loader) Load(path string) (*Buffer, error) {
	text, err := l.fs().ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data, err := Decode(text)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &Buffer{Source: path, Data: data}, nil
}

// Glob lists input files matching pattern in sorted order.
func (l *Loader) Glob(pattern string) ([]string, error) {
	paths, err := l.fs().Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	return paths, nil
}

// Info returns the size of path and up to previewBytes of its text.
func (l *Loader) Info(path string, previewBytes int) (*FileInfo, error) {
	fsys := l.fs()
	st, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	text, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if previewBytes <= 0 {
		previewBytes = DefaultPreviewBytes
	}
	if len(text) > previewBytes {
		text = text[:previewBytes]
	}
	return &FileInfo{Path: path, Size: st.Size(), Preview: string(text)}, nil
}

// BytesPerLine is how many byte pairs Encode writes per line.
const BytesPerLine = 16

// Encode renders data the way the capture tool does: upper-case byte pairs
// separated by spaces, BytesPerLine per line, with a trailing newline.
func Encode(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	out := make([]byte, 0, len(data)*3)
	var pair [2]byte
	for i, c := range data {
		if i > 0 {
			if i%BytesPerLine == 0 {
				out = append(out, '\n')
			} else {
				out = append(out, ' ')
			}
		}
		hex.Encode(pair[:], []byte{c})
		out = append(out, bytes.ToUpper(pair[:])...)
	}
	return append(out, '\n')
}

// Decode strips ASCII whitespace from text and decodes the remaining hex
// digit pairs. Digits are case-insensitive.
func Decode(text []byte) ([]byte, error) {
	digits := make([]byte, 0, len(text))
	for _, c := range text {
		switch c {
		case ' ', '\t', '\r', '\n', '\v', '\f':
			continue
		}
		digits = append(digits, c)
	}

	out := make([]byte, hex.DecodedLen(len(digits)))
	n, err := hex.Decode(out, digits)
	if err != nil {
		var inv hex.InvalidByteError
		if errors.As(err, &inv) {
			return nil, fmt.Errorf("%w %q at digit %d", ErrInvalidHex, byte(inv), n*2+invalidOffset(digits[n*2:], byte(inv)))
		}
		if errors.Is(err, hex.ErrLength) {
			return nil, fmt.Errorf("%w: %d digits", ErrOddLength, len(digits))
		}
		return nil, err
	}
	return out[:n], nil
}

func invalidOffset(rest []byte, c byte) int {
	for i, b := range rest {
		if b == c {
			return i
		}
	}
	return 0
}
