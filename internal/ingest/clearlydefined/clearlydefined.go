// Package clearlydefined loads ClearlyDefined package-definition records,
// per spec §4.7.
package clearlydefined

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/quay/zlog"
	"github.com/tidwall/gjson"

	"github.com/quay/vexgraph"
	"github.com/quay/vexgraph/internal/ingest"
	"github.com/quay/vexgraph/internal/store/postgres"
)

// clearlyDefinedToPurlType maps a ClearlyDefined coordinate "type"
// segment to the purl type it corresponds to; entries absent here pass
// through unchanged (ClearlyDefined and purl agree on most type names).
var clearlyDefinedToPurlType = map[string]string{
	"maven":  "maven",
	"npm":    "npm",
	"pypi":   "pypi",
	"gem":    "gem",
	"crate":  "cargo",
	"nuget":  "nuget",
	"go":     "golang",
	"deb":    "deb",
	"git":    "github",
}

// coordinatesToPurl parses a ClearlyDefined coordinates path of the form
// "<type>/<provider>/<ns-or-'-'>/<name>/<version>" into a purl string.
func coordinatesToPurl(coord string) (string, error) {
	parts := strings.Split(coord, "/")
	if len(parts) != 5 {
		return "", fmt.Errorf("clearlydefined: malformed coordinates %q", coord)
	}
	typ, _, namespace, name, version := parts[0], parts[1], parts[2], parts[3], parts[4]
	if t, ok := clearlyDefinedToPurlType[typ]; ok {
		typ = t
	}
	var b strings.Builder
	b.WriteString("pkg:")
	b.WriteString(typ)
	b.WriteByte('/')
	if namespace != "-" && namespace != "" {
		b.WriteString(namespace)
		b.WriteByte('/')
	}
	b.WriteString(name)
	b.WriteByte('@')
	b.WriteString(version)
	return b.String(), nil
}

// Load ingests one ClearlyDefined definition document: derives a purl
// from its coordinates and records the declared license as a
// package-level assertion.
func Load(ctx context.Context, s *postgres.Store, tx pgx.Tx, raw []byte, labels vexgraph.Labels, sourceDocID vexgraph.Id) (ingest.Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ingest.clearlydefined")
	if !gjson.ValidBytes(raw) {
		return ingest.Result{}, &vexgraph.Error{Op: "clearlydefined.Load", Kind: vexgraph.ErrInputParse, Message: "invalid JSON"}
	}
	doc := gjson.ParseBytes(raw)

	c := doc.Get("coordinates")
	coord := c.String()
	if c.IsObject() {
		// Some ClearlyDefined exports nest the coordinate segments as an
		// object rather than a flattened path string; reassemble it.
		coord = strings.Join([]string{
			c.Get("type").String(), c.Get("provider").String(),
			orDash(c.Get("namespace").String()), c.Get("name").String(), c.Get("revision").String(),
		}, "/")
	}

	purlStr, err := coordinatesToPurl(coord)
	if err != nil {
		return ingest.Result{}, &vexgraph.Error{Op: "clearlydefined.Load", Kind: vexgraph.ErrInputParse, Inner: err}
	}

	res := ingest.Result{DocumentID: coord}

	pc := s.NewPurlCreator()
	canonical, err := ingest.QueuePurl(pc, purlStr)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/clearlydefined: %w", err)
	}
	ids, err := pc.Flush(ctx, tx)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/clearlydefined: %w", err)
	}
	purlID, ok := ids[canonical]
	if !ok {
		return ingest.Result{}, &vexgraph.Error{Op: "clearlydefined.Load", Kind: vexgraph.ErrStorage, Message: "purl resolution did not return an id"}
	}
	res.ID = purlID

	declared := doc.Get("licensed.declared").String()
	if declared == "" {
		res.AddWarning("no declared license for %s", coord)
		return res, nil
	}
	licenseID, err := s.UpsertLicense(ctx, tx, declared)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/clearlydefined: %w", err)
	}
	if err := s.CreatePackageLicenseAssertion(ctx, tx, purlID, licenseID, sourceDocID); err != nil {
		return ingest.Result{}, fmt.Errorf("ingest/clearlydefined: %w", err)
	}
	return res, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
