package detect

import (
	"bytes"
	"io"
	"testing"

	"github.com/quay/vexgraph"
)

func TestSniffCompressionNone(t *testing.T) {
	if got := SniffCompression([]byte(`{"bomFormat":"CycloneDX"}`)); got != CompressionNone {
		t.Fatalf("SniffCompression(plain JSON) = %v, want CompressionNone", got)
	}
}

func TestSniffCompressionXZ(t *testing.T) {
	b := append([]byte{0xFD, '7', 'z', 'X', 'Z', 0x00}, "rest of payload"...)
	if got := SniffCompression(b); got != CompressionXZ {
		t.Fatalf("SniffCompression(xz magic) = %v, want CompressionXZ", got)
	}
}

func TestSniffCompressionBzip2(t *testing.T) {
	b := append([]byte("BZh9"), "rest of payload"...)
	if got := SniffCompression(b); got != CompressionBzip2 {
		t.Fatalf("SniffCompression(bzip2 magic) = %v, want CompressionBzip2", got)
	}
}

func TestParseCompressionHint(t *testing.T) {
	tt := []struct {
		hint    string
		want    Compression
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"+none", CompressionNone, false},
		{"+bz2", CompressionBzip2, false},
		{"+bzip2", CompressionBzip2, false},
		{"+xz", CompressionXZ, false},
		{"+gz", CompressionNone, true},
	}
	for _, tc := range tt {
		got, err := ParseCompressionHint(tc.hint)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseCompressionHint(%q): expected error, got nil", tc.hint)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCompressionHint(%q): unexpected error: %v", tc.hint, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseCompressionHint(%q) = %v, want %v", tc.hint, got, tc.want)
		}
	}
}

func TestCompressionString(t *testing.T) {
	tt := []struct {
		c    Compression
		want string
	}{
		{CompressionNone, "none"},
		{CompressionBzip2, "bzip2"},
		{CompressionXZ, "xz"},
	}
	for _, tc := range tt {
		if got := tc.c.String(); got != tc.want {
			t.Errorf("Compression(%d).String() = %q, want %q", tc.c, got, tc.want)
		}
	}
}

func TestDecompressNone(t *testing.T) {
	want := []byte("hello world")
	r, err := Decompress(want, CompressionNone, 0)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Decompress(none) = %q, want %q", got, want)
	}
}

func TestDecompressUnknownCompression(t *testing.T) {
	if _, err := Decompress([]byte("x"), Compression(99), 0); err == nil {
		t.Fatal("Decompress(unknown compression): expected error")
	}
}

func TestDecompressXZInvalidStream(t *testing.T) {
	if _, err := Decompress([]byte{0xFD, '7', 'z', 'X', 'Z', 0x00, 0x01, 0x02}, CompressionXZ, 0); err == nil {
		t.Fatal("Decompress(malformed xz stream): expected error")
	}
}

func TestDecompressPayloadTooLarge(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 100)
	r, err := Decompress(payload, CompressionNone, 10)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	_, err = io.ReadAll(r)
	if err == nil {
		t.Fatal("ReadAll: expected ErrPayloadTooLarge, got nil")
	}
	var verr *vexgraph.Error
	if !asVexgraphError(err, &verr) {
		t.Fatalf("expected *vexgraph.Error, got %T: %v", err, err)
	}
	if verr.Kind != vexgraph.ErrPayloadTooLarge {
		t.Fatalf("error kind = %v, want ErrPayloadTooLarge", verr.Kind)
	}
}

func TestDecompressWithinLimit(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 10)
	r, err := Decompress(payload, CompressionNone, 10)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: unexpected error for payload exactly at the limit: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("read %d bytes, want 10", len(got))
	}
}

func asVexgraphError(err error, target **vexgraph.Error) bool {
	verr, ok := err.(*vexgraph.Error)
	if !ok {
		return false
	}
	*target = verr
	return true
}

func TestClassifyCycloneDX(t *testing.T) {
	b := []byte(`{"bomFormat":"CycloneDX","specVersion":"1.5"}`)
	got, err := Classify(b)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != FormatCycloneDX {
		t.Fatalf("Classify = %v, want %v", got, FormatCycloneDX)
	}
}

func TestClassifySPDX(t *testing.T) {
	b := []byte(`{"spdxVersion":"SPDX-2.3","name":"doc"}`)
	got, err := Classify(b)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != FormatSPDX {
		t.Fatalf("Classify = %v, want %v", got, FormatSPDX)
	}
}

func TestClassifyCSAF(t *testing.T) {
	b := []byte(`{"document":{"category":"csaf_vex","csaf_version":"2.0"}}`)
	got, err := Classify(b)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != FormatCSAF {
		t.Fatalf("Classify = %v, want %v", got, FormatCSAF)
	}
}

func TestClassifyCVE(t *testing.T) {
	b := []byte(`{"dataType":"CVE_RECORD","dataVersion":"5.0"}`)
	got, err := Classify(b)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != FormatCVE {
		t.Fatalf("Classify = %v, want %v", got, FormatCVE)
	}
}

func TestClassifyOSV(t *testing.T) {
	b := []byte(`{"schema_version":"1.6.0","id":"GHSA-xxxx-yyyy-zzzz"}`)
	got, err := Classify(b)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != FormatOSV {
		t.Fatalf("Classify = %v, want %v", got, FormatOSV)
	}
}

func TestClassifyOSVRequiresMatchingID(t *testing.T) {
	// schema_version alone, without an uppercase-prefixed id, must not be
	// mistaken for an OSV record.
	b := []byte(`{"schema_version":"1.6.0","id":"not-an-osv-id"}`)
	if _, err := Classify(b); err == nil {
		t.Fatal("Classify: expected error for schema_version without a matching OSV id")
	}
}

func TestClassifyClearlyDefined(t *testing.T) {
	b := []byte(`{"_id":"abc","coordinates":{"type":"npm"}}`)
	got, err := Classify(b)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != FormatClearlyDefined {
		t.Fatalf("Classify = %v, want %v", got, FormatClearlyDefined)
	}
}

func TestClassifyCWE(t *testing.T) {
	b := []byte(`<?xml version="1.0"?><Weakness_Catalog Name="CWE"></Weakness_Catalog>`)
	got, err := Classify(b)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != FormatCWE {
		t.Fatalf("Classify = %v, want %v", got, FormatCWE)
	}
}

func TestClassifyUnrecognizedXML(t *testing.T) {
	b := []byte(`<?xml version="1.0"?><SomethingElse></SomethingElse>`)
	if _, err := Classify(b); err == nil {
		t.Fatal("Classify: expected error for unrecognized XML root")
	}
}

func TestClassifyUnrecognizedJSON(t *testing.T) {
	b := []byte(`{"foo":"bar"}`)
	if _, err := Classify(b); err == nil {
		t.Fatal("Classify: expected error for unrecognized JSON shape")
	}
}

func TestClassifyInvalidJSON(t *testing.T) {
	b := []byte(`{not valid json`)
	if _, err := Classify(b); err == nil {
		t.Fatal("Classify: expected error for invalid JSON")
	}
}

func TestClassifyNeitherJSONNorXML(t *testing.T) {
	if _, err := Classify([]byte("plain text")); err == nil {
		t.Fatal("Classify: expected error for payload that is neither JSON nor XML")
	}
}

func TestClassifySkipsLeadingWhitespace(t *testing.T) {
	b := []byte("  \n\t{\"bomFormat\":\"CycloneDX\"}")
	got, err := Classify(b)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != FormatCycloneDX {
		t.Fatalf("Classify = %v, want %v", got, FormatCycloneDX)
	}
}
