package report

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrFontMissing is returned by LoadFonts when a font file is absent.
var ErrFontMissing = errors.New("font file missing")

// Font files expected in the fonts directory.
const (
	FontRegular = "DejaVuSans.ttf"
	FontBold    = "DejaVuSans-Bold.ttf"
	FontItalic  = "DejaVuSans-Oblique.ttf"
)

// Fonts holds the TrueType faces embedded in generated PDFs.
type Fonts struct {
	Family  string
	Regular []byte
	Bold    []byte
	Italic  []byte
}

// LoadFonts reads the regular, bold and italic faces from dir. Every face is
// required: a missing file is an error wrapping ErrFontMissing.
func LoadFonts(dir string) (*Fonts, error) {
	f := &Fonts{Family: "dejavu"}
	faces := []struct {
		name string
		dst  *[]byte
	}{
		{FontRegular, &f.Regular},
		{FontBold, &f.Bold},
		{FontItalic, &f.Italic},
	}

	for _, face := range faces {
		path := filepath.Join(dir, face.name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFontMissing, path)
		}
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", path, err)
		}
		if !isTrueType(data) {
			return nil, fmt.Errorf("font %s is not a TrueType file", path)
		}
		*face.dst = data
	}
	return f, nil
}

func isTrueType(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	return bytes.Equal(b[:4], []byte{0x00, 0x01, 0x00, 0x00}) || string(b[:4]) == "true"
}
