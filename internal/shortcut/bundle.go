package shortcut

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ResolveBundle resolves a macOS .app bundle. The target is the bundle
// itself; Info.plist supplies the display name and icon when it is an XML
// plist. Binary plists fall back to the bundle name.
func ResolveBundle(path string) (Target, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Target{}, fmt.Errorf("failed to stat bundle: %w", err)
	}
	if !info.IsDir() {
		return Target{}, ErrNoTarget
	}

	t := Target{Path: path}
	plist, err := readInfoPlist(filepath.Join(path, "Contents", "Info.plist"))
	if err != nil {
		return t, nil
	}

	for _, key := range []string{"CFBundleDisplayName", "CFBundleName"} {
		if v := plist[key]; v != "" {
			t.Name = v
			break
		}
	}
	if icon := plist["CFBundleIconFile"]; icon != "" {
		if filepath.Ext(icon) == "" {
			icon += ".icns"
		}
		t.IconPath = filepath.Join(path, "Contents", "Resources", icon)
	}
	return t, nil
}

// readInfoPlist collects the top-level <key>/<string> pairs of an XML
// property list.
func readInfoPlist(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parsePlistStrings(f)
}

func parsePlistStrings(r io.Reader) (map[string]string, error) {
	dec := xml.NewDecoder(r)
	values := make(map[string]string)
	depth := 0
	pendingKey := ""
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse plist: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			text.Reset()
		case xml.CharData:
			text.Write(el)
		case xml.EndElement:
			// plist > dict > key|string sits at depth 3.
			if depth == 3 {
				switch el.Name.Local {
				case "key":
					pendingKey = strings.TrimSpace(text.String())
				case "string":
					if pendingKey != "" {
						values[pendingKey] = strings.TrimSpace(text.String())
					}
					pendingKey = ""
				default:
					pendingKey = ""
				}
			}
			depth--
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("plist has no string values")
	}
	return values, nil
}
