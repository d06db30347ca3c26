package binding

import (
	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/payload"
	"github.com/kartikbazzad/docucore/internal/results"
	"github.com/kartikbazzad/docucore/internal/tags"
	"github.com/kartikbazzad/docucore/internal/txn"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// classifier decides whether a given error kind should be retried once
// rather than surfaced straight to the caller.
var classifier = coreerrors.NewClassifier()

// Mode re-exports txn.ItemMode so binding callers don't need to import
// internal/txn directly for modify_item_packed's mode argument.
type Mode = txn.ItemMode

const (
	ModeUpsert = txn.ModeUpsert
	ModeInsert = txn.ModeInsert
	ModeUpdate = txn.ModeUpdate
	ModeDelete = txn.ModeDelete
)

func decodeBody(format Format, data []byte, t *payload.Type, matcher *tags.Matcher) (map[string]variant.Variant, error) {
	switch format {
	case FormatCJSON:
		return results.DecodeCJSON(data, matcher)
	case FormatJSON:
		return results.DecodeJSON(data, t)
	default:
		return nil, coreerrors.New(coreerrors.KindParams, "modify_item_packed: unknown format %d", format)
	}
}

// itemKey resolves the store key fields should live under: the value of
// the namespace's own "id" field when its schema has one and fields
// carries it nonzero, falling back to requestedID (the caller-supplied
// item id, used by namespaces with no "id" field of their own).
func itemKey(ns *results.Namespace, fields map[string]variant.Variant, requestedID int64) (key int64, hasIDField bool) {
	if ns.Type.FieldByName("id") < 0 {
		return requestedID, false
	}
	if v, ok := fields["id"]; ok && v.AsInt64() != 0 {
		return v.AsInt64(), true
	}
	return requestedID, true
}

// applyItemStep executes one item step directly against e's in-memory
// store — the minimal stand-in this module uses in place of an unspecified
// storage engine (see DESIGN.md). fields is the field set the step wants
// applied: for insert/upsert-as-insert it seeds a brand new value, for
// update/upsert-as-update it is merged onto the existing stored value via
// results.ApplyFields. Returns the id the step touched and, for anything
// but a delete, the resulting stored value.
func applyItemStep(e *namespaceEntry, fields map[string]variant.Variant, mode Mode, requestedID int64) (int64, *payload.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, hasIDField := itemKey(e.ns, fields, requestedID)

	switch mode {
	case ModeDelete:
		if key == 0 {
			return 0, nil, coreerrors.New(coreerrors.KindParams, "delete requires an existing item id")
		}
		if _, ok := e.items[key]; !ok {
			return 0, nil, coreerrors.New(coreerrors.KindNotFound, "no item with id %d", key)
		}
		delete(e.items, key)
		return key, nil, nil

	case ModeUpdate:
		if key == 0 {
			return 0, nil, coreerrors.New(coreerrors.KindNotFound, "update requires an existing item id")
		}
		existing, ok := e.items[key]
		if !ok {
			return 0, nil, coreerrors.New(coreerrors.KindNotFound, "no item with id %d", key)
		}
		item := results.NewItem(e.ns, existing)
		results.ApplyFields(item, fields)
		return key, item.Value(), nil

	case ModeInsert:
		if key != 0 {
			if _, exists := e.items[key]; exists {
				return 0, nil, coreerrors.New(coreerrors.KindConflict, "item %d already exists", key)
			}
		} else {
			key = e.nextID
			e.nextID++
		}
		val := e.buildStoredValue(key, fields, hasIDField)
		e.items[key] = val
		if key >= e.nextID {
			e.nextID = key + 1
		}
		return key, val, nil

	default: // ModeUpsert
		if key != 0 {
			if existing, ok := e.items[key]; ok {
				item := results.NewItem(e.ns, existing)
				results.ApplyFields(item, fields)
				e.items[key] = item.Value()
				return key, item.Value(), nil
			}
		} else {
			key = e.nextID
			e.nextID++
		}
		val := e.buildStoredValue(key, fields, hasIDField)
		e.items[key] = val
		if key >= e.nextID {
			e.nextID = key + 1
		}
		return key, val, nil
	}
}

// buildStoredValue materializes a brand-new value for key from fields,
// stamping the namespace's "id" field with key when the schema has one
// (so a caller-supplied id, or one just auto-assigned, round-trips back
// out of the stored item).
func (e *namespaceEntry) buildStoredValue(key int64, fields map[string]variant.Variant, hasIDField bool) *payload.Value {
	item := results.ItemFromFields(e.ns, fields)
	if hasIDField {
		results.ApplyFields(item, map[string]variant.Variant{"id": variant.Int64(key)})
	}
	return item.Value()
}

// ModifyItemPacked applies one packed item modification directly (outside
// any transaction). A stale stateToken fails hard with state-invalidated.
// decodeBody itself can also report a tags-missmatch, when data carries a
// tag the matcher doesn't resolve at the moment CheckToken ran; that case
// is retried once, re-decoding and re-applying against whatever the
// matcher and the stored item look like by then, the same one-retry
// contract Transaction.ModifyItemPacked gives its staged path. Mirrors
// `modify_item_packed(ns, args=[format, mode, state_token, precepts], data)`.
func ModifyItemPacked(handle int64, ns string, format Format, mode Mode, stateToken int64, itemID int64, data []byte) Buffer {
	in, err := getInstance(handle)
	if err != nil {
		return ErrBuffer(err)
	}
	e, err := in.namespace(ns)
	if err != nil {
		return ErrBuffer(err)
	}

	if err := e.ns.Matcher.CheckToken(stateToken); err != nil {
		return ErrBuffer(coreerrors.New(coreerrors.KindStateInvalidated, "modify_item_packed: %v", err))
	}

	id, val, err := decodeAndApplyItem(e, format, data, mode, itemID)
	if err != nil && classifier.ShouldRetryOnce(coreerrors.KindOf(err)) {
		id, val, err = decodeAndApplyItem(e, format, data, mode, itemID)
	}
	if err != nil {
		return ErrBuffer(err)
	}
	if val == nil { // delete
		return OK(nil, 0)
	}

	item := results.NewItem(e.ns, val)
	body, err := results.EncodeCJSON(item)
	if err != nil {
		return ErrBuffer(err)
	}
	return bufferForSingleItem(in, e.ns, id, body)
}

// decodeAndApplyItem decodes a packed body against e's current namespace
// matcher and applies the resulting field set as one item step. Both the
// decode and the apply re-read e's live state, so calling this twice in a
// row is a real retry: a tags-missmatch the first time around can clear
// once the matcher has caught up, and applyItemStep always re-fetches
// whatever is currently stored under the target id rather than working
// from a cached copy.
func decodeAndApplyItem(e *namespaceEntry, format Format, data []byte, mode Mode, itemID int64) (int64, *payload.Value, error) {
	fields, err := decodeBody(format, data, e.ns.Type, e.ns.Matcher)
	if err != nil {
		return 0, nil, err
	}
	return applyItemStep(e, fields, mode, itemID)
}

func bufferForSingleItem(in *Instance, ns *results.Namespace, id int64, body []byte) Buffer {
	flags := results.FlagWithItemID | results.FlagCJSON | results.FlagWithHeaderLen
	frame := results.ResultSerializer{}.WriteItem(flags, results.ItemParams{ID: int32(id)}, body)

	qr, err := in.pool.Acquire(flags)
	if err != nil {
		return ErrBuffer(err)
	}
	if err := qr.Bind(ns, nil, frame, 0, 0, 0); err != nil {
		in.pool.Release(qr)
		return ErrBuffer(err)
	}
	rh := in.results.put(qr)
	return OK(nil, rh)
}

// bufferForCount returns an itemless result buffer carrying only
// affected as its total count, the shape a commit/update_query/
// delete_query reply needs when the caller wants a number, not rows.
func bufferForCount(in *Instance, ns *results.Namespace, affected int) Buffer {
	qr, err := in.pool.Acquire(0)
	if err != nil {
		return ErrBuffer(err)
	}
	if err := qr.Bind(ns, nil, []byte{}, 0, 0, 0); err != nil {
		in.pool.Release(qr)
		return ErrBuffer(err)
	}
	qr.SetMeta(affected, nil, "", nil, nil)
	rh := in.results.put(qr)
	return OK(nil, rh)
}

// StartTransaction opens a transaction on ns. Mirrors `start_transaction(ns)`.
func StartTransaction(handle int64, ns string) (int64, error) {
	in, err := getInstance(handle)
	if err != nil {
		return 0, err
	}
	e, err := in.namespace(ns)
	if err != nil {
		return 0, err
	}
	tx := in.txns.Begin(e.ns)
	return in.txnHandles.put(tx), nil
}
