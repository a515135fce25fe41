package shortcut

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Shell link (.lnk) layout constants.
const (
	lnkHeaderSize = 0x4C

	flagHasIDList       = 1 << 0
	flagHasLinkInfo     = 1 << 1
	flagHasName         = 1 << 2
	flagHasRelativePath = 1 << 3
	flagHasWorkingDir   = 1 << 4
	flagHasArguments    = 1 << 5
	flagHasIconLocation = 1 << 6
	flagIsUnicode       = 1 << 7

	linkInfoHasLocalPath = 1 << 0
)

var lnkCLSID = []byte{
	0x01, 0x14, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46,
}

var errTruncated = errors.New("shortcut: truncated link file")

// Link is the decoded subset of a shell link that launching needs.
type Link struct {
	LocalPath    string
	Name         string
	RelativePath string
	WorkingDir   string
	Arguments    string
	IconLocation string
}

// ResolveLnk reads a Windows shell link and returns its target. The target
// is the LinkInfo local path when present, else the relative path
// resolved against the link's directory.
func ResolveLnk(path string) (Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Target{}, fmt.Errorf("failed to read shortcut: %w", err)
	}
	link, err := ParseLnk(data)
	if err != nil {
		return Target{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	target := expandWindowsEnv(link.LocalPath)
	if target == "" && link.RelativePath != "" {
		rel := expandWindowsEnv(link.RelativePath)
		target = filepath.Clean(filepath.Join(filepath.Dir(path), filepath.FromSlash(strings.ReplaceAll(rel, `\`, "/"))))
	}
	if target == "" {
		return Target{}, ErrNoTarget
	}

	icon := expandWindowsEnv(link.IconLocation)
	if icon == "" {
		icon = target
	}
	return Target{
		Path:       target,
		Args:       strings.TrimSpace(link.Arguments),
		WorkingDir: expandWindowsEnv(link.WorkingDir),
		IconPath:   icon,
	}, nil
}

// ParseLnk decodes the header, LinkInfo, and StringData sections of a
// shell link. Extra data blocks are ignored.
func ParseLnk(data []byte) (Link, error) {
	var link Link
	if len(data) < lnkHeaderSize {
		return link, errTruncated
	}
	if binary.LittleEndian.Uint32(data[0:4]) != lnkHeaderSize || !bytes.Equal(data[4:20], lnkCLSID) {
		return link, errors.New("shortcut: not a shell link")
	}
	flags := binary.LittleEndian.Uint32(data[0x14:0x18])
	r := &lnkReader{data: data, pos: lnkHeaderSize}

	if flags&flagHasIDList != 0 {
		size, err := r.uint16()
		if err != nil {
			return link, err
		}
		if err := r.skip(int(size)); err != nil {
			return link, err
		}
	}

	if flags&flagHasLinkInfo != 0 {
		local, err := r.linkInfo()
		if err != nil {
			return link, err
		}
		link.LocalPath = local
	}

	unicodeStrings := flags&flagIsUnicode != 0
	fields := []struct {
		flag uint32
		dst  *string
	}{
		{flagHasName, &link.Name},
		{flagHasRelativePath, &link.RelativePath},
		{flagHasWorkingDir, &link.WorkingDir},
		{flagHasArguments, &link.Arguments},
		{flagHasIconLocation, &link.IconLocation},
	}
	for _, f := range fields {
		if flags&f.flag == 0 {
			continue
		}
		s, err := r.countedString(unicodeStrings)
		if err != nil {
			return link, err
		}
		*f.dst = s
	}
	return link, nil
}

type lnkReader struct {
	data []byte
	pos  int
}

func (r *lnkReader) skip(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return errTruncated
	}
	r.pos += n
	return nil
}

func (r *lnkReader) uint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, errTruncated
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *lnkReader) countedString(wide bool) (string, error) {
	count, err := r.uint16()
	if err != nil {
		return "", err
	}
	n := int(count)
	if wide {
		n *= 2
	}
	if r.pos+n > len(r.data) {
		return "", errTruncated
	}
	raw := r.data[r.pos : r.pos+n]
	r.pos += n
	if wide {
		return decodeUTF16(raw)
	}
	return decodeANSI(raw)
}

// linkInfo reads the LinkInfo structure and returns LocalBasePath joined
// with CommonPathSuffix, preferring the Unicode variants when present.
func (r *lnkReader) linkInfo() (string, error) {
	start := r.pos
	if start+0x1C > len(r.data) {
		return "", errTruncated
	}
	le := binary.LittleEndian
	size := int(le.Uint32(r.data[start:]))
	if size < 0x1C || start+size > len(r.data) {
		return "", errTruncated
	}
	block := r.data[start : start+size]
	r.pos = start + size

	headerSize := le.Uint32(block[4:])
	infoFlags := le.Uint32(block[8:])
	if infoFlags&linkInfoHasLocalPath == 0 {
		return "", nil
	}

	if headerSize >= 0x24 && len(block) >= 0x24 {
		localW := int(le.Uint32(block[0x1C:]))
		suffixW := int(le.Uint32(block[0x20:]))
		if localW > 0 {
			local, err := cStringUTF16(block, localW)
			if err != nil {
				return "", err
			}
			suffix := ""
			if suffixW > 0 {
				if suffix, err = cStringUTF16(block, suffixW); err != nil {
					return "", err
				}
			}
			return local + suffix, nil
		}
	}

	local, err := cStringANSI(block, int(le.Uint32(block[0x10:])))
	if err != nil {
		return "", err
	}
	suffix := ""
	if off := int(le.Uint32(block[0x18:])); off > 0 {
		if suffix, err = cStringANSI(block, off); err != nil {
			return "", err
		}
	}
	return local + suffix, nil
}

func cStringANSI(block []byte, off int) (string, error) {
	if off <= 0 || off >= len(block) {
		return "", errTruncated
	}
	end := bytes.IndexByte(block[off:], 0)
	if end < 0 {
		return "", errTruncated
	}
	return decodeANSI(block[off : off+end])
}

func cStringUTF16(block []byte, off int) (string, error) {
	if off <= 0 || off >= len(block) {
		return "", errTruncated
	}
	for i := off; i+1 < len(block); i += 2 {
		if block[i] == 0 && block[i+1] == 0 {
			return decodeUTF16(block[off:i])
		}
	}
	return "", errTruncated
}

func decodeANSI(b []byte) (string, error) {
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("shortcut: decoding ANSI string: %w", err)
	}
	return string(out), nil
}

func decodeUTF16(b []byte) (string, error) {
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("shortcut: decoding UTF-16 string: %w", err)
	}
	return string(out), nil
}

var windowsEnvRef = regexp.MustCompile(`%([A-Za-z0-9_()]+)%`)

// expandWindowsEnv expands %VAR% references. Unknown variables are left
// as written.
func expandWindowsEnv(s string) string {
	return windowsEnvRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := os.LookupEnv(strings.Trim(ref, "%")); ok {
			return v
		}
		return ref
	})
}
