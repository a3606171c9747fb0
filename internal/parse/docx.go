package parse

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// docxExpansion bounds the decompressed body at this multiple of the upload
// limit.
const docxExpansion = 10

func isDOCX(b []byte) bool {
	if len(b) < 4 || string(b[:4]) != "PK\x03\x04" {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == docxBody {
			return true
		}
	}
	return false
}

// parseDOCX reads word/document.xml, emitting a blank-line separated block per
// paragraph and a new page at every explicit page break. The body may expand
// to at most docxExpansion times maxSize.
func parseDOCX(data []byte, maxSize int64) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrUnreadable, docxBody)
	}

	limit := maxSize * docxExpansion
	if body.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: %s expands past %d bytes", ErrFileTooLarge, docxBody, limit)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer rc.Close()

	lr := &io.LimitedReader{R: rc, N: limit + 1}
	pages, err := docxPages(lr)
	if lr.N <= 0 {
		return nil, fmt.Errorf("%w: %s expands past %d bytes", ErrFileTooLarge, docxBody, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	return joinPages(pages), nil
}

func docxPages(r io.Reader) ([]string, error) {
	var (
		pages   []string
		current strings.Builder
		inText  bool
	)

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				if isPageBreak(t) {
					pages = append(pages, current.String())
					current.Reset()
				} else {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				current.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return append(pages, current.String()), nil
}

func isPageBreak(el xml.StartElement) bool {
	for _, attr := range el.Attr {
		if attr.Name.Local == "type" && attr.Value == "page" {
			return true
		}
	}
	return false
}
