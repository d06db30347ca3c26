package binding

import (
	"context"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/query"
	"github.com/kartikbazzad/docucore/internal/results"
)

// Select runs a SQL-text query against ns and registers its results.
// Mirrors `select(sql, as_json, pt_versions…)`. Parsing sql into a Query
// and actually matching it against stored data is entirely the wired
// Executor's job; this function only owns the handle-table plumbing.
func Select(handle int64, ns string, sql string, asJSON bool, ptVersions []int) Buffer {
	in, err := getInstance(handle)
	if err != nil {
		return ErrBuffer(err)
	}
	e, err := in.namespace(ns)
	if err != nil {
		return ErrBuffer(err)
	}
	return in.runSelect(e.ns, []byte(sql), asJSON, ptVersions)
}

// SelectQuery runs a binary-encoded Query against ns. Mirrors
// `select_query(binary)`.
func SelectQuery(handle int64, ns string, data []byte, asJSON bool, ptVersions []int) Buffer {
	in, err := getInstance(handle)
	if err != nil {
		return ErrBuffer(err)
	}
	e, err := in.namespace(ns)
	if err != nil {
		return ErrBuffer(err)
	}
	return in.runSelect(e.ns, data, asJSON, ptVersions)
}

func (in *Instance) runSelect(ns *results.Namespace, q []byte, asJSON bool, ptVersions []int) Buffer {
	in.mu.RLock()
	exec := in.exec
	in.mu.RUnlock()
	if exec == nil {
		return ErrBuffer(coreerrors.New(coreerrors.KindLogic, "select: no Executor wired for this instance"))
	}
	qr, err := exec.Execute(ns, q, asJSON)
	if err != nil {
		return ErrBuffer(err)
	}
	qr.SetPtVersions(ptVersions)
	rh := in.results.put(qr)
	return OK(nil, rh)
}

// UpdateQuery decodes a binary Query, forces it to update type and applies
// it via the wired MutationExecutor. Mirrors `update_query(binary)`.
func UpdateQuery(handle int64, ns string, data []byte) Buffer {
	return runMutationQuery(handle, ns, data, query.TypeUpdate)
}

// DeleteQuery decodes a binary Query, forces it to delete type and applies
// it via the wired MutationExecutor. Mirrors `delete_query(binary)`.
func DeleteQuery(handle int64, ns string, data []byte) Buffer {
	return runMutationQuery(handle, ns, data, query.TypeDelete)
}

func runMutationQuery(handle int64, ns string, data []byte, typ query.Type) Buffer {
	in, err := getInstance(handle)
	if err != nil {
		return ErrBuffer(err)
	}
	e, err := in.namespace(ns)
	if err != nil {
		return ErrBuffer(err)
	}
	q, err := query.Decode(data)
	if err != nil {
		return ErrBuffer(err)
	}
	q.Type = typ

	in.mu.RLock()
	exec := in.exec
	in.mu.RUnlock()
	me, ok := exec.(MutationExecutor)
	if !ok {
		return ErrBuffer(coreerrors.New(coreerrors.KindLogic, "update_query/delete_query: no MutationExecutor wired for this instance"))
	}
	affected, err := me.Apply(e.ns, q)
	if err != nil {
		return ErrBuffer(err)
	}
	return bufferForCount(in, e.ns, affected)
}

// CJSONFromPointer re-encodes a single result-set item as a standalone
// CJSON body. Mirrors `cptr2cjson(results_ptr, cptr, ns_id)`, minus the raw
// pointer arithmetic the C ABI needs: the handle table already gives every
// item a stable address, so cptr here is just the frame index within qr.
func CJSONFromPointer(resultsHandle int64, in *Instance, itemIndex int) ([]byte, error) {
	qr, ok := in.results.get(resultsHandle)
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "no results with handle %d", resultsHandle)
	}
	it := qr.Begin()
	for i := 0; i <= itemIndex; i++ {
		ok, err := it.Next(context.Background())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, coreerrors.New(coreerrors.KindNotFound, "no item at index %d in result set", itemIndex)
		}
	}
	item, err := it.GetItem()
	if err != nil {
		return nil, err
	}
	return results.EncodeCJSON(item)
}

// CollectJSON drains every item in the result set buf points at, rendering
// each as a JSON body. A Go-native caller (pkg/client) uses this instead of
// reaching into the handle tables itself.
func CollectJSON(handle int64, buf Buffer) ([][]byte, error) {
	if err := buf.Err(); err != nil {
		return nil, err
	}
	if buf.ResultsHandle == 0 {
		return nil, nil
	}
	in, err := getInstance(handle)
	if err != nil {
		return nil, err
	}
	qr, ok := in.results.get(buf.ResultsHandle)
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "no results with handle %d", buf.ResultsHandle)
	}

	it := qr.Begin()
	var out [][]byte
	for {
		has, err := it.Next(context.Background())
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		body, err := it.GetJSON()
		if err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	return out, nil
}

// FirstItemJSON returns the first (and normally only) item's JSON body
// from buf, the shape a single modify_item_packed reply carries.
func FirstItemJSON(handle int64, buf Buffer) ([]byte, error) {
	bodies, err := CollectJSON(handle, buf)
	if err != nil {
		return nil, err
	}
	if len(bodies) == 0 {
		return nil, coreerrors.New(coreerrors.KindNotFound, "result set is empty")
	}
	return bodies[0], nil
}

// AffectedCount reads back the total-count sidecar bufferForCount stamped
// onto a commit/update_query/delete_query reply, the number of rows the
// mutation touched.
func AffectedCount(handle int64, buf Buffer) int {
	if buf.IsError() || buf.ResultsHandle == 0 {
		return 0
	}
	in, err := getInstance(handle)
	if err != nil {
		return 0
	}
	qr, ok := in.results.get(buf.ResultsHandle)
	if !ok {
		return 0
	}
	return qr.TotalCount()
}

// FreeCJSON exists to mirror `free_cjson(buffer)` at the call-site level;
// Go's garbage collector reclaims the byte slice CJSONFromPointer returns
// on its own, so this is a documented no-op rather than a real release.
func FreeCJSON([]byte) {}
