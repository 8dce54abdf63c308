// Package ingest is the public entrypoint spec §6 names "Ingest API" and
// "Dataset ingest": it wires format detection (internal/detect), the
// content-addressed blob store (storage), and the seven format loaders
// (internal/ingest/*) behind two operations, Ingest and DatasetIngest.
//
// Construction follows the teacher's libvuln.New shape: an Options struct
// with a Validate method, defaulted inside New.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/detect"
	"github.com/quay/vexgraph/internal/ingest"
	"github.com/quay/vexgraph/internal/ingest/clearlydefined"
	"github.com/quay/vexgraph/internal/ingest/csaf"
	"github.com/quay/vexgraph/internal/ingest/cve"
	"github.com/quay/vexgraph/internal/ingest/cwe"
	"github.com/quay/vexgraph/internal/ingest/cyclonedx"
	"github.com/quay/vexgraph/internal/ingest/osv"
	"github.com/quay/vexgraph/internal/ingest/spdx"
	"github.com/quay/vexgraph/internal/store/postgres"
	"github.com/quay/vexgraph/storage"
)

// Result is the IngestResult named in spec §6.
type Result = ingest.Result

// defaultMaxPayloadSize bounds a single document's decompressed size
// absent an explicit override, per spec §5's decompression-bomb guard.
const defaultMaxPayloadSize = 256 << 20

// loaderFunc is the shape every C7 loader is normalized to once the
// CycloneDX JSON/XML split is resolved by the caller.
type loaderFunc func(ctx context.Context, db *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, sourceDocID vexgraph.Id) (ingest.Result, error)

// Options configures a [Service].
type Options struct {
	// Storage is the content-addressed blob backend (C1).
	Storage storage.Store
	// DB is the graph persistence backend (C6).
	DB *postgres.Store
	// MaxPayloadSize bounds a single decompressed document, 0 means the
	// default of 256MiB.
	MaxPayloadSize int64
}

// Validate fills in defaults and rejects unusable configuration.
func (o *Options) Validate() error {
	if o.Storage == nil {
		return fmt.Errorf("ingest: Storage is required")
	}
	if o.DB == nil {
		return fmt.Errorf("ingest: DB is required")
	}
	if o.MaxPayloadSize == 0 {
		o.MaxPayloadSize = defaultMaxPayloadSize
	}
	return nil
}

// Service is the public Ingest API of spec §6.
type Service struct {
	storage  storage.Store
	db       *postgres.Store
	maxBytes int64
}

// New constructs a Service.
func New(ctx context.Context, opts *Options) (*Service, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Service{storage: opts.Storage, db: opts.DB, maxBytes: opts.MaxPayloadSize}, nil
}

var loaders = map[detect.Format]loaderFunc{
	detect.FormatSPDX: func(ctx context.Context, db *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, srcID vexgraph.Id) (ingest.Result, error) {
		return spdx.Load(ctx, db, tx, raw, labels, srcID)
	},
	detect.FormatCycloneDX: func(ctx context.Context, db *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, srcID vexgraph.Id) (ingest.Result, error) {
		format := cyclonedx.FormatJSON
		if t := bytes.TrimLeft(raw, " \t\r\n"); len(t) > 0 && t[0] == '<' {
			format = cyclonedx.FormatXML
		}
		return cyclonedx.Load(ctx, db, tx, raw, format, labels, srcID)
	},
	detect.FormatCSAF: func(ctx context.Context, db *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, srcID vexgraph.Id) (ingest.Result, error) {
		return csaf.Load(ctx, db, tx, raw, labels, srcID)
	},
	detect.FormatCVE: func(ctx context.Context, db *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, srcID vexgraph.Id) (ingest.Result, error) {
		return cve.Load(ctx, db, tx, raw, labels, srcID)
	},
	detect.FormatOSV: func(ctx context.Context, db *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, srcID vexgraph.Id) (ingest.Result, error) {
		return osv.Load(ctx, db, tx, raw, labels, srcID)
	},
	detect.FormatCWE: func(ctx context.Context, db *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, srcID vexgraph.Id) (ingest.Result, error) {
		return cwe.Load(ctx, db, tx, raw, labels, srcID)
	},
	detect.FormatClearlyDefined: func(ctx context.Context, db *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, srcID vexgraph.Id) (ingest.Result, error) {
		return clearlydefined.Load(ctx, db, tx, raw, labels, srcID)
	},
}

// Ingest implements spec §6's Ingest API: auto-detects compression and
// (absent formatHint) format, records the raw bytes in the content store,
// and drives the matching C7 loader inside one committed transaction.
func (s *Service) Ingest(ctx context.Context, raw []byte, formatHint detect.Format, labels vexgraph.Labels) (ingest.Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ingest.Service")

	digests, err := s.storage.Put(ctx, bytes.NewReader(raw))
	if err != nil {
		return ingest.Result{}, err
	}
	sourceDocID, existed, err := s.db.FindOrCreateSourceDocument(ctx, digests.SHA256, digests.SHA384, digests.SHA512)
	if err != nil {
		return ingest.Result{}, err
	}
	if existed {
		zlog.Info(ctx).Str("document_id", sourceDocID.String()).Msg("document already ingested, skipping")
		return ingest.Result{ID: sourceDocID, DocumentID: sourceDocID.String(), Warnings: []string{"already ingested"}}, nil
	}

	decompressed, err := decompress(raw, s.maxBytes)
	if err != nil {
		return ingest.Result{}, err
	}

	format := formatHint
	if format == "" {
		format, err = detect.Classify(decompressed)
		if err != nil {
			return ingest.Result{}, err
		}
	}
	loader, ok := loaders[format]
	if !ok {
		return ingest.Result{}, &vexgraph.Error{Op: "ingest.Ingest", Kind: vexgraph.ErrUnsupportedFormat, Message: fmt.Sprintf("no loader for format %q", format)}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ingest.Result{}, err
	}
	res, err := loader(ctx, s.db, tx, decompressed, labels, sourceDocID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return ingest.Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ingest.Result{}, &vexgraph.Error{Op: "ingest.Ingest", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return res, nil
}

// AttachSignature records a detached signature for an already-ingested
// SourceDocument, per spec §4.1's "capture signatures during ingest,
// verify later" split: callers that have an out-of-band .asc/.sig file
// alongside the document they just fed to Ingest call this once with the
// resulting document id. It opens its own single-statement transaction
// rather than sharing Ingest's, since the signature usually arrives as a
// separate upload.
func (s *Service) AttachSignature(ctx context.Context, documentID vexgraph.Id, typ vexgraph.TrustAnchorType, payload []byte) (vexgraph.Id, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return vexgraph.Id{}, err
	}
	id, err := s.db.CreateSourceDocumentSignature(ctx, tx, vexgraph.SourceDocumentSignature{
		DocumentID: documentID, Type: typ, Payload: payload,
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return vexgraph.Id{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return vexgraph.Id{}, &vexgraph.Error{Op: "ingest.AttachSignature", Kind: vexgraph.ErrDatabase, Inner: err}
	}
	return id, nil
}

// DatasetIngest implements spec §6's Dataset ingest: a ZIP archive whose
// top-level directories are named after detect.Format values. Per
// SPEC_FULL §12, a malformed entry degrades to a warning-only Result
// keyed by its archive path rather than aborting the whole archive.
func (s *Service) DatasetIngest(ctx context.Context, r io.ReaderAt, size int64, labels vexgraph.Labels) (map[string]ingest.Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ingest.Service.DatasetIngest")
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &vexgraph.Error{Op: "ingest.DatasetIngest", Kind: vexgraph.ErrInputParse, Inner: err}
	}

	out := make(map[string]ingest.Result, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		res, err := s.ingestEntry(ctx, f, labels)
		if err != nil {
			out[f.Name] = ingest.Result{Warnings: []string{err.Error()}}
			zlog.Error(ctx).Err(err).Str("entry", f.Name).Msg("dataset entry failed, downgraded to warning")
			continue
		}
		out[f.Name] = res
	}
	return out, nil
}

func (s *Service) ingestEntry(ctx context.Context, f *zip.File, labels vexgraph.Labels) (ingest.Result, error) {
	top := strings.SplitN(f.Name, "/", 2)[0]
	hint := detect.Format(top)
	if _, ok := loaders[hint]; !ok {
		hint = ""
	}

	rc, err := f.Open()
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest: opening entry %q: %w", f.Name, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest: reading entry %q: %w", f.Name, err)
	}

	if c, err := compressionForSuffix(f.Name); err == nil && c != detect.CompressionNone {
		dr, err := detect.Decompress(raw, c, s.maxBytes)
		if err != nil {
			return ingest.Result{}, fmt.Errorf("ingest: decompressing entry %q: %w", f.Name, err)
		}
		raw, err = io.ReadAll(dr)
		if err != nil {
			return ingest.Result{}, fmt.Errorf("ingest: decompressing entry %q: %w", f.Name, err)
		}
	}

	return s.Ingest(ctx, raw, hint, labels)
}

func compressionForSuffix(name string) (detect.Compression, error) {
	switch path.Ext(name) {
	case ".bz2":
		return detect.CompressionBzip2, nil
	case ".xz":
		return detect.CompressionXZ, nil
	default:
		return detect.CompressionNone, nil
	}
}

func decompress(raw []byte, maxBytes int64) ([]byte, error) {
	c := detect.SniffCompression(raw)
	if c == detect.CompressionNone {
		return raw, nil
	}
	r, err := detect.Decompress(raw, c, maxBytes)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
