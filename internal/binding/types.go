package binding

import (
	"github.com/google/uuid"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/respool"
)

// LibraryVersion is the version Connect compares a caller's client_version
// against when opts.WarnVersionMismatch is set.
const LibraryVersion = "1.0.0"

// Format selects the wire shape of a packed item body.
type Format int32

const (
	FormatJSON  Format = 0
	FormatCJSON Format = 1
)

// ConnectOpts mirrors the opts argument of connect.
type ConnectOpts struct {
	WarnVersionMismatch bool
}

// CtxInfo is the opaque (instance, request) identifier cancel_context and
// every long-running call thread through, per the GLOSSARY's "Context
// info" entry.
type CtxInfo struct {
	Instance int64
	CtxID    uuid.UUID
}

// Buffer is the `{err_code, out={len, data_ptr, results_ptr}}` shape every
// result-producing binding call returns. ErrCode
// nonzero means Data carries the formatted error message and
// ResultsHandle is zero: nothing beyond the message needs freeing.
type Buffer struct {
	ErrCode       int32
	Data          []byte
	ResultsHandle int64
}

// OK builds a success buffer with an optional results handle.
func OK(data []byte, resultsHandle int64) Buffer {
	return Buffer{ErrCode: 0, Data: data, ResultsHandle: resultsHandle}
}

// ErrBuffer builds a failure buffer from err, encoding its Kind as ErrCode
// (1-based, KindOK never appears here since an OK result never reaches this
// path) and the formatted message as Data.
func ErrBuffer(err error) Buffer {
	return Buffer{ErrCode: int32(coreerrors.KindOf(err)) + 1, Data: []byte(err.Error())}
}

func (b Buffer) IsError() bool { return b.ErrCode != 0 }

// Err reconstructs a structured error from an error buffer, the inverse of
// ErrBuffer — used by Go-native callers (pkg/client) that would rather
// handle an error value than inspect ErrCode/Data directly.
func (b Buffer) Err() error {
	if !b.IsError() {
		return nil
	}
	return coreerrors.New(coreerrors.Kind(b.ErrCode-1), "%s", string(b.Data))
}

// SchemaField describes one field of a set_schema payload — a minimal,
// self-contained JSON schema shape since no schema-definition module is
// specified beyond PayloadType/Field themselves (see DESIGN.md).
type SchemaField struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	IsArray bool   `json:"is_array"`
	Width   int    `json:"width"`
}

// IndexDef is the minimal add_index/update_index payload shape: a field
// name plus an index type. "text"/"fulltext" wires a fulltext.DataHolder for
// that field; any other type is recorded as opaque metadata only, since no
// secondary-index data structure besides full-text is specified by this
// module (see DESIGN.md).
type IndexDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// LogWriterFunc is the host-supplied sink enable_logger installs.
type LogWriterFunc func(level int, msg string)

// logWriterAdapter lets a LogWriterFunc satisfy io.Writer so it can be
// plugged directly into logger.Logger.SetOutput. The ABI's per-line level
// tag is folded into the formatted message itself (logger.Level.String()),
// so level is always reported as -1 here rather than re-parsed out of the
// line.
type logWriterAdapter struct{ fn LogWriterFunc }

func (a logWriterAdapter) Write(p []byte) (int, error) {
	a.fn(-1, string(p))
	return len(p), nil
}

// How re-exports respool.How so binding callers don't need to import
// internal/respool directly for cancel_context's second argument.
type How = respool.How

const (
	HowExplicit = respool.HowExplicit
	HowTimeout  = respool.HowTimeout
)
