// Package detect classifies an ingested document's bytes: which
// compression (if any) wraps it, and which of the seven supported formats
// the decompressed payload is. Detection never fully unmarshals a payload;
// it peeks at a handful of top-level fields with gjson, the way a
// dispatching loader only needs to know "which parser do I hand this to",
// not the parsed document itself.
package detect

import (
	"bytes"
	"compress/bzip2"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"

	"github.com/tidwall/gjson"
	"github.com/ulikunitz/xz"

	"github.com/quay/vexgraph"
)

// Format identifies one of the document kinds the ingestion pipeline
// understands.
type Format string

// Recognized formats, per SPEC_FULL.md C3.
const (
	FormatCycloneDX      Format = "cyclonedx"
	FormatSPDX           Format = "spdx"
	FormatCSAF           Format = "csaf"
	FormatCVE            Format = "cve"
	FormatOSV            Format = "osv"
	FormatCWE            Format = "cwe"
	FormatClearlyDefined Format = "clearlydefined"
)

// Compression identifies the compression wrapping a payload, or its
// absence.
type Compression int

// Recognized compressions. None of the magics overlap, so the order in
// which SniffCompression checks them doesn't affect correctness.
const (
	CompressionNone Compression = iota
	CompressionBzip2
	CompressionXZ
)

func (c Compression) String() string {
	switch c {
	case CompressionBzip2:
		return "bzip2"
	case CompressionXZ:
		return "xz"
	default:
		return "none"
	}
}

var (
	bzip2Magic = []byte("BZh")
	xzMagic    = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
)

// SniffCompression inspects a payload's leading bytes for a known
// compression magic number.
func SniffCompression(b []byte) Compression {
	switch {
	case bytes.HasPrefix(b, xzMagic):
		return CompressionXZ
	case bytes.HasPrefix(b, bzip2Magic):
		return CompressionBzip2
	default:
		return CompressionNone
	}
}

// ParseCompressionHint maps a declared content-type suffix ("+bz2", "+xz")
// to a Compression. An empty hint means no compression was declared.
func ParseCompressionHint(suffix string) (Compression, error) {
	switch suffix {
	case "", "+none":
		return CompressionNone, nil
	case "+bz2", "+bzip2":
		return CompressionBzip2, nil
	case "+xz":
		return CompressionXZ, nil
	default:
		return CompressionNone, &vexgraph.Error{Op: "detect.ParseCompressionHint", Kind: vexgraph.ErrUnsupportedFormat, Message: fmt.Sprintf("unknown compression hint %q", suffix)}
	}
}

// Decompress returns a reader over b's decompressed contents according to
// c, bounded by limit bytes (a limit of 0 means unbounded). Exceeding the
// limit yields an [vexgraph.ErrPayloadTooLarge] error from the returned
// reader's Read, matching the spec's decompression-bomb guard.
func Decompress(b []byte, c Compression, limit int64) (io.Reader, error) {
	var r io.Reader
	switch c {
	case CompressionNone:
		r = bytes.NewReader(b)
	case CompressionBzip2:
		r = bzip2.NewReader(bytes.NewReader(b))
	case CompressionXZ:
		zr, err := xz.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, &vexgraph.Error{Op: "detect.Decompress", Kind: vexgraph.ErrInputParse, Inner: err}
		}
		r = zr
	default:
		return nil, &vexgraph.Error{Op: "detect.Decompress", Kind: vexgraph.ErrUnsupportedFormat, Message: "unknown compression"}
	}
	if limit > 0 {
		r = &limitedReader{r: io.LimitReader(r, limit+1), limit: limit}
	}
	return r, nil
}

// limitedReader errors instead of silently truncating once more than limit
// bytes have been read.
type limitedReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		return n, &vexgraph.Error{Op: "detect.Decompress", Kind: vexgraph.ErrPayloadTooLarge, Message: fmt.Sprintf("payload exceeds %d byte limit", l.limit)}
	}
	return n, err
}

var osvIDPattern = regexp.MustCompile(`^[A-Z]+-`)

// Classify peeks at decompressed payload bytes and reports which format
// they are, per SPEC_FULL.md C3's discrimination order.
func Classify(b []byte) (Format, error) {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	switch {
	case len(trimmed) > 0 && trimmed[0] == '<':
		return classifyXML(trimmed)
	case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
		return classifyJSON(trimmed)
	default:
		return "", &vexgraph.Error{Op: "detect.Classify", Kind: vexgraph.ErrUnsupportedFormat, Message: "payload is neither JSON nor XML"}
	}
}

func classifyJSON(b []byte) (Format, error) {
	if !gjson.ValidBytes(b) {
		return "", &vexgraph.Error{Op: "detect.Classify", Kind: vexgraph.ErrInputParse, Message: "invalid JSON"}
	}
	doc := gjson.ParseBytes(b)

	if doc.Get("bomFormat").String() == "CycloneDX" {
		return FormatCycloneDX, nil
	}
	if v := doc.Get("spdxVersion"); v.Exists() && len(v.String()) >= len("SPDX-") && v.String()[:5] == "SPDX-" {
		return FormatSPDX, nil
	}
	if doc.Get("document.category").Exists() && doc.Get("document.csaf_version").Exists() {
		return FormatCSAF, nil
	}
	if doc.Get("dataType").String() == "CVE_RECORD" {
		return FormatCVE, nil
	}
	if sv := doc.Get("schema_version"); sv.Exists() && len(sv.String()) >= 2 && sv.String()[:2] == "1." {
		if id := doc.Get("id"); id.Exists() && osvIDPattern.MatchString(id.String()) {
			return FormatOSV, nil
		}
	}
	if doc.Get("_id").Exists() && doc.Get("coordinates").Exists() {
		return FormatClearlyDefined, nil
	}
	return "", &vexgraph.Error{Op: "detect.Classify", Kind: vexgraph.ErrUnsupportedFormat, Message: "unrecognized JSON document shape"}
}

func classifyXML(b []byte) (Format, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", &vexgraph.Error{Op: "detect.Classify", Kind: vexgraph.ErrInputParse, Inner: err}
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local == "Weakness_Catalog" {
				return FormatCWE, nil
			}
			return "", &vexgraph.Error{Op: "detect.Classify", Kind: vexgraph.ErrUnsupportedFormat, Message: fmt.Sprintf("unrecognized XML root %q", start.Name.Local)}
		}
	}
}
