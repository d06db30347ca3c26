// Package binding implements the opaque-pointer foreign binding surface: a
// process-wide handle registry fronting the query codec, payload/tags,
// full-text, results and transaction packages, plus the buffer protocol,
// cancellation and logging hooks a foreign-language host drives it
// through. Handles stand in for the raw pointers a real cgo boundary
// would pass.
package binding

import (
	"sync"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/logger"
	"github.com/kartikbazzad/docucore/internal/metrics"
	"github.com/kartikbazzad/docucore/internal/respool"
	"github.com/kartikbazzad/docucore/internal/results"
	"github.com/kartikbazzad/docucore/internal/txn"
)

// instances is the process-wide singleton table of live Instance handles.
var instances = newHandles[*Instance]()

// logMu/logTarget implement the process-wide log writer: set at most once
// under a mutex, every Instance's Logger shares this single rewritable
// sink rather than each carrying its own.
var (
	logMu     sync.Mutex
	logTarget = logger.Default()
)

// Executor is the collaborator that actually runs a decoded Query against
// stored data and produces a *results.QueryResults. No query execution
// engine is specified by this module, so
// select/select_query/update_query/delete_query externalize it here rather
// than inventing one — the same pattern results.Fetcher already uses to
// externalize lazy batch fetch.
type Executor interface {
	Execute(ns *results.Namespace, q []byte, asJSON bool) (*results.QueryResults, error)
}

// Instance is one connected engine handle: its namespaces, transaction
// manager, result pool and cancellation table.
type Instance struct {
	mu sync.RWMutex

	namespaces map[string]*namespaceEntry

	txns    *txn.Manager
	pool    *respool.Pool
	ctx     *respool.ContextTable
	metrics *metrics.Registry
	log     *logger.Logger

	results    *handles[*results.QueryResults]
	txnHandles *handles[*txn.Transaction]
	exec       Executor

	connected     bool
	dsn           string
	clientVersion string
}

// Init allocates a fresh Instance and returns its handle. Mirrors
// `init(config?) → handle`.
func Init() int64 {
	reg := metrics.NewRegistry(nil)
	in := &Instance{
		namespaces: make(map[string]*namespaceEntry),
		txns:       txn.NewManager(),
		pool:       respool.New(logTarget, reg),
		ctx:        respool.NewContextTable(reg),
		metrics:    reg,
		log:        logTarget,
		results:    newHandles[*results.QueryResults](),
		txnHandles: newHandles[*txn.Transaction](),
	}
	return instances.put(in)
}

// Destroy tears down the Instance identified by handle. Mirrors
// `destroy(handle)`.
func Destroy(handle int64) error {
	_, ok := instances.delete(handle)
	if !ok {
		return coreerrors.New(coreerrors.KindNotFound, "no instance with handle %d", handle)
	}
	return nil
}

// SetExecutor wires the query-execution collaborator for handle. Not part
// of the external ABI surface itself — a host process wires this once
// after Init, the same way it would link in a storage engine.
func SetExecutor(handle int64, exec Executor) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	in.mu.Lock()
	in.exec = exec
	in.mu.Unlock()
	return nil
}

func getInstance(handle int64) (*Instance, error) {
	in, ok := instances.get(handle)
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "no instance with handle %d", handle)
	}
	return in, nil
}

// Connect records dsn/clientVersion for handle and, when
// opts.WarnVersionMismatch is set and the client reports a different
// version than LibraryVersion, emits a single warning line.
func Connect(handle int64, dsn string, opts ConnectOpts, clientVersion string) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.connected = true
	in.dsn = dsn
	in.clientVersion = clientVersion
	if opts.WarnVersionMismatch && clientVersion != "" && clientVersion != LibraryVersion {
		in.log.Warn("binding: client version %s does not match library version %s", clientVersion, LibraryVersion)
	}
	return nil
}

// EnableLogger installs w as the process-wide log sink. Mirrors
// `enable_logger(writer)`.
func EnableLogger(w LogWriterFunc) {
	logMu.Lock()
	defer logMu.Unlock()
	logTarget.SetOutput(logWriterAdapter{fn: w})
}

// DisableLogger discards all subsequent log output. Mirrors
// `disable_logger()`.
func DisableLogger() {
	logMu.Lock()
	defer logMu.Unlock()
	logTarget.SetOutput(discardWriter{})
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// CancelContext marks info's context canceled. Mirrors
// `cancel_context(ctx_info, how)`.
func CancelContext(info CtxInfo, how How) error {
	in, err := getInstance(info.Instance)
	if err != nil {
		return err
	}
	return in.ctx.Cancel(info.CtxID, how)
}

// AcquireContext hands out a fresh cancellation context scoped to handle,
// the ABI-facing counterpart of respool.ContextTable.Acquire used by every
// long-running call below.
func AcquireContext(handle int64) (CtxInfo, *respool.ScopedContext, error) {
	in, err := getInstance(handle)
	if err != nil {
		return CtxInfo{}, nil, err
	}
	sc, err := in.ctx.Acquire()
	if err != nil {
		return CtxInfo{}, nil, err
	}
	return CtxInfo{Instance: handle, CtxID: sc.ID()}, sc, nil
}

// FreeBuffer releases the result handle carried by b exactly once. Mirrors
// `free_buffer(resbuffer)`.
func FreeBuffer(handle int64, b Buffer) error {
	if b.ResultsHandle == 0 {
		return nil
	}
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	qr, ok := in.results.delete(b.ResultsHandle)
	if !ok {
		return coreerrors.ErrHandleFreedTwice
	}
	in.pool.Release(qr)
	return nil
}

// FreeBuffers releases every buffer in bs. Mirrors `free_buffers(list)`.
// It keeps releasing the remaining buffers even if one has already been
// freed, returning the first error encountered.
func FreeBuffers(handle int64, bs []Buffer) error {
	var first error
	for _, b := range bs {
		if err := FreeBuffer(handle, b); err != nil && first == nil {
			first = err
		}
	}
	return first
}
