package sig

import (
	"bytes"
	"context"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"

	"github.com/quay/vexgraph"
)

type fakeLookup struct {
	sigs    []vexgraph.SourceDocumentSignature
	anchors []vexgraph.TrustAnchor
}

func (f *fakeLookup) SignaturesForDocument(ctx context.Context, documentID vexgraph.Id) ([]vexgraph.SourceDocumentSignature, error) {
	return f.sigs, nil
}

func (f *fakeLookup) EnabledTrustAnchors(ctx context.Context, typ vexgraph.TrustAnchorType) ([]vexgraph.TrustAnchor, error) {
	var out []vexgraph.TrustAnchor
	for _, a := range f.anchors {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out, nil
}

func genKey(t *testing.T) *openpgp.Entity {
	t.Helper()
	e, err := openpgp.NewEntity("Test Signer", "", "signer@example.com", nil)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return e
}

func armoredPublicKey(t *testing.T, e *openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode: %v", err)
	}
	if err := e.Serialize(w); err != nil {
		t.Fatalf("serializing public key: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing armor writer: %v", err)
	}
	return buf.Bytes()
}

func detachSign(t *testing.T, e *openpgp.Entity, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, e, bytes.NewReader(content), nil); err != nil {
		t.Fatalf("signing: %v", err)
	}
	return buf.Bytes()
}

func TestVerifyDocumentMatches(t *testing.T) {
	content := []byte("the document contents, byte for byte")
	signer := genKey(t)
	sigBytes := detachSign(t, signer, content)

	lookup := &fakeLookup{
		sigs: []vexgraph.SourceDocumentSignature{
			{Type: vexgraph.TrustAnchorPGP, Payload: sigBytes},
		},
		anchors: []vexgraph.TrustAnchor{
			{Description: "release key", Type: vexgraph.TrustAnchorPGP, Payload: armoredPublicKey(t, signer)},
		},
	}
	v := NewVerifier(lookup)
	results, err := v.VerifyDocument(context.Background(), vexgraph.Id{}, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(results), 1; got != want {
		t.Fatalf("got: %d results, want: %d", got, want)
	}
	if got, want := len(results[0].MatchedAnchors), 1; got != want {
		t.Fatalf("got: %d matched anchors, want: %d", got, want)
	}
}

func TestVerifyDocumentWrongKey(t *testing.T) {
	content := []byte("the document contents")
	signer := genKey(t)
	other := genKey(t)
	sigBytes := detachSign(t, signer, content)

	lookup := &fakeLookup{
		sigs: []vexgraph.SourceDocumentSignature{
			{Type: vexgraph.TrustAnchorPGP, Payload: sigBytes},
		},
		anchors: []vexgraph.TrustAnchor{
			{Type: vexgraph.TrustAnchorPGP, Payload: armoredPublicKey(t, other)},
		},
	}
	v := NewVerifier(lookup)
	results, err := v.VerifyDocument(context.Background(), vexgraph.Id{}, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(results[0].MatchedAnchors), 0; got != want {
		t.Fatalf("got: %d matched anchors, want: %d", got, want)
	}
}

func TestVerifyDocumentDisabledAnchorSkipped(t *testing.T) {
	content := []byte("the document contents")
	signer := genKey(t)
	sigBytes := detachSign(t, signer, content)

	lookup := &fakeLookup{
		sigs: []vexgraph.SourceDocumentSignature{
			{Type: vexgraph.TrustAnchorPGP, Payload: sigBytes},
		},
		anchors: []vexgraph.TrustAnchor{
			{Type: vexgraph.TrustAnchorPGP, Disabled: true, Payload: armoredPublicKey(t, signer)},
		},
	}
	v := NewVerifier(lookup)
	results, err := v.VerifyDocument(context.Background(), vexgraph.Id{}, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(results[0].MatchedAnchors), 0; got != want {
		t.Fatalf("got: %d matched anchors, want: %d", got, want)
	}
}
