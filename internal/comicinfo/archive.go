package comicinfo

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const entryName = "ComicInfo.xml"

// ReadWriter reads and writes the embedded metadata of a comic file.
type ReadWriter interface {
	// Read returns the embedded metadata. found is false when the file has
	// no metadata entry.
	Read(path string) (md Metadata, found bool, err error)
	Write(path string, md Metadata) error
}

// Converter is implemented by readers that can change a file's container
// format before metadata is written.
type Converter interface {
	NeedsConversion(path string) bool
	Convert(path string) (string, error)
}

// Archive reads and writes ComicInfo.xml inside zip-based comic archives.
type Archive struct {
	// ConvertZip renames .zip archives to .cbz during apply.
	ConvertZip bool
}

var (
	_ ReadWriter = (*Archive)(nil)
	_ Converter  = (*Archive)(nil)
)

// NewArchive returns a CBZ reader/writer.
func NewArchive(convertZip bool) *Archive {
	return &Archive{ConvertZip: convertZip}
}

type document struct {
	XMLName xml.Name `xml:"ComicInfo"`
	XSI     string   `xml:"xmlns:xsi,attr,omitempty"`
	XSD     string   `xml:"xmlns:xsd,attr,omitempty"`
	Metadata
	Pages *rawElement  `xml:"Pages,omitempty"`
	Extra []rawElement `xml:",any"`
}

type rawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// Read implements ReadWriter.
func (a *Archive) Read(path string) (Metadata, bool, error) {
	doc, found, err := readDocument(path)
	if err != nil || !found {
		return Metadata{}, found, err
	}
	return doc.Metadata, true, nil
}

func readDocument(path string) (document, bool, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return document{}, false, fmt.Errorf("open archive %s: %w", filepath.Base(path), err)
	}
	defer reader.Close()

	entry := findEntry(reader.File)
	if entry == nil {
		return document{}, false, nil
	}
	rc, err := entry.Open()
	if err != nil {
		return document{}, false, fmt.Errorf("open %s: %w", entryName, err)
	}
	defer rc.Close()

	var doc document
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return document{}, false, fmt.Errorf("decode %s: %w", entryName, err)
	}
	return doc, true, nil
}

// Write implements ReadWriter. Entries other than ComicInfo.xml are copied
// unchanged; unknown ComicInfo elements such as Pages are preserved.
func (a *Archive) Write(path string, md Metadata) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	existing, _, err := readDocument(path)
	if err != nil {
		return err
	}
	existing.Metadata = md
	existing.XSI = "http://www.w3.org/2001/XMLSchema-instance"
	existing.XSD = "http://www.w3.org/2001/XMLSchema"
	payload, err := encodeDocument(existing)
	if err != nil {
		return err
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", filepath.Base(path), err)
	}
	defer reader.Close()

	// The temp file lives beside the target so the final rename is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".shortbox-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	writer := zip.NewWriter(tmp)
	for _, f := range reader.File {
		if isEntry(f.Name) {
			continue
		}
		if err := writer.Copy(f); err != nil {
			cleanup()
			return fmt.Errorf("copy entry %s: %w", f.Name, err)
		}
	}
	w, err := writer.CreateHeader(&zip.FileHeader{Name: entryName, Method: zip.Deflate, Modified: info.ModTime()})
	if err != nil {
		cleanup()
		return fmt.Errorf("create %s: %w", entryName, err)
	}
	if _, err := w.Write(payload); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", entryName, err)
	}
	if err := writer.Close(); err != nil {
		cleanup()
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod archive: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

// NeedsConversion implements Converter.
func (a *Archive) NeedsConversion(path string) bool {
	return a.ConvertZip && strings.EqualFold(filepath.Ext(path), ".zip")
}

// Convert renames a .zip archive to .cbz and returns the new path.
func (a *Archive) Convert(path string) (string, error) {
	if !a.NeedsConversion(path) {
		return path, nil
	}
	target := strings.TrimSuffix(path, filepath.Ext(path)) + ".cbz"
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("convert %s: %s already exists", filepath.Base(path), filepath.Base(target))
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", filepath.Base(target), err)
	}
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("convert %s: %w", filepath.Base(path), err)
	}
	return target, nil
}

func encodeDocument(doc document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode %s: %w", entryName, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func findEntry(files []*zip.File) *zip.File {
	for _, f := range files {
		if isEntry(f.Name) {
			return f
		}
	}
	return nil
}

func isEntry(name string) bool {
	return strings.EqualFold(filepath.Base(name), entryName) && !strings.Contains(strings.Trim(name, "/"), "/")
}

// WriteNewArchive creates a CBZ at path holding the given pages and
// metadata. It is used when seeding libraries and in tests.
func WriteNewArchive(path string, pages map[string][]byte, md *Metadata) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	writer := zip.NewWriter(file)
	for name, data := range pages {
		w, err := writer.Create(name)
		if err != nil {
			file.Close()
			return fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
			file.Close()
			return fmt.Errorf("write entry %s: %w", name, err)
		}
	}
	if md != nil {
		payload, err := encodeDocument(document{Metadata: *md})
		if err != nil {
			file.Close()
			return err
		}
		w, err := writer.Create(entryName)
		if err != nil {
			file.Close()
			return fmt.Errorf("create %s: %w", entryName, err)
		}
		if _, err := w.Write(payload); err != nil {
			file.Close()
			return fmt.Errorf("write %s: %w", entryName, err)
		}
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	return file.Close()
}
