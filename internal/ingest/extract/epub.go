package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// EPUB extracts chapter text in reading (spine) order
func EPUB(ctx context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open epub: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	chapters, err := epubChapters(files)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, name := range chapters {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		f, ok := files[name]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open chapter %s: %w", name, err)
		}
		text, err := htmlText(io.LimitReader(rc, maxTextBytes))
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("chapter %s: %w", name, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// epubChapters resolves the spine through META-INF/container.xml and the OPF
// package; archives without one fall back to every (x)html file by name.
func epubChapters(files map[string]*zip.File) ([]string, error) {
	var container epubContainer
	if err := decodeZipXML(files["META-INF/container.xml"], &container); err != nil || len(container.Rootfiles) == 0 {
		return htmlFilesByName(files), nil
	}

	opfPath := container.Rootfiles[0].FullPath
	var pkg epubPackage
	if err := decodeZipXML(files[opfPath], &pkg); err != nil {
		return nil, fmt.Errorf("failed to read epub package %s: %w", opfPath, err)
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}

	base := path.Dir(opfPath)
	chapters := make([]string, 0, len(pkg.Spine))
	for _, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		if i := strings.IndexByte(href, '#'); i >= 0 {
			href = href[:i]
		}
		chapters = append(chapters, path.Join(base, href))
	}
	if len(chapters) == 0 {
		return htmlFilesByName(files), nil
	}
	return chapters, nil
}

func decodeZipXML(f *zip.File, v any) error {
	if f == nil {
		return fmt.Errorf("missing file")
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(io.LimitReader(rc, maxTextBytes)).Decode(v)
}

func htmlFilesByName(files map[string]*zip.File) []string {
	var names []string
	for name := range files {
		ext := strings.ToLower(path.Ext(name))
		if ext == ".xhtml" || ext == ".html" || ext == ".htm" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
