package binding

import (
	"sync"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/fulltext"
	"github.com/kartikbazzad/docucore/internal/payload"
	"github.com/kartikbazzad/docucore/internal/results"
	"github.com/kartikbazzad/docucore/internal/tags"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// namespaceEntry is one namespace's full state inside an Instance: its
// binding (PayloadType + TagsMatcher), a minimal in-memory item store
// backing item ops so they round-trip end to end, per-field full-text
// indexes, opaque index metadata for types this module doesn't otherwise
// model, and the flat string meta store put_meta/get_meta address (see
// DESIGN.md — there is no storage/MVCC module in scope here, only enough
// of an item store to exercise modify_item_packed and select).
type namespaceEntry struct {
	mu sync.Mutex

	ns *results.Namespace

	items  map[int64]*payload.Value
	nextID int64

	fulltextIdx map[string]*fulltext.DataHolder
	indexDefs   map[string]IndexDef
	meta        map[string]string
}

func newNamespaceEntry(name string, pt *payload.Type) *namespaceEntry {
	return &namespaceEntry{
		ns:          &results.Namespace{Name: name, Type: pt, Matcher: tags.New()},
		items:       make(map[int64]*payload.Value),
		nextID:      1,
		fulltextIdx: make(map[string]*fulltext.DataHolder),
		indexDefs:   make(map[string]IndexDef),
		meta:        make(map[string]string),
	}
}

func kindFromSchemaString(s string) (variant.Kind, bool) {
	switch s {
	case "int":
		return variant.KindInt, true
	case "int64":
		return variant.KindInt64, true
	case "double":
		return variant.KindDouble, true
	case "string":
		return variant.KindString, true
	case "bool":
		return variant.KindBool, true
	default:
		return 0, false
	}
}

// OpenNamespace registers a namespace with an empty schema, if it does not
// already exist. Mirrors `open`.
func OpenNamespace(handle int64, name string) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.namespaces[name]; ok {
		return nil
	}
	in.namespaces[name] = newNamespaceEntry(name, payload.NewTypeBuilder(name).Build())
	return nil
}

func (in *Instance) namespace(name string) (*namespaceEntry, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	e, ok := in.namespaces[name]
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "namespace %q is not open", name)
	}
	return e, nil
}

// CloseNamespace drops the in-process handle to name without discarding its
// data — a no-op beyond validating the namespace exists, since this module
// keeps no open-file-descriptor-like resource per namespace. Mirrors
// `close`.
func CloseNamespace(handle int64, name string) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	_, err = in.namespace(name)
	return err
}

// DropNamespace removes name and all its data. Mirrors `drop`.
func DropNamespace(handle int64, name string) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.namespaces[name]; !ok {
		return coreerrors.New(coreerrors.KindNotFound, "namespace %q is not open", name)
	}
	delete(in.namespaces, name)
	return nil
}

// TruncateNamespace removes every item from name but keeps its schema and
// indexes. Mirrors `truncate`.
func TruncateNamespace(handle int64, name string) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	e, err := in.namespace(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = make(map[int64]*payload.Value)
	e.nextID = 1
	return nil
}

// RenameNamespace moves src's entry to dst. Mirrors `rename`.
func RenameNamespace(handle int64, src, dst string) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	e, ok := in.namespaces[src]
	if !ok {
		return coreerrors.New(coreerrors.KindNotFound, "namespace %q is not open", src)
	}
	if _, exists := in.namespaces[dst]; exists {
		return coreerrors.New(coreerrors.KindConflict, "namespace %q already exists", dst)
	}
	e.ns.Name = dst
	in.namespaces[dst] = e
	delete(in.namespaces, src)
	return nil
}

// AddIndex registers def on name. A "text"/"fulltext" type wires a fresh
// fulltext.DataHolder for the field; any other type is recorded as opaque
// metadata only (see DESIGN.md). Mirrors `add_index(json)` (json already
// decoded by the caller into def).
func AddIndex(handle int64, name string, def IndexDef) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	e, err := in.namespace(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.indexDefs[def.Name]; exists {
		return coreerrors.New(coreerrors.KindConflict, "index %q already exists on namespace %q", def.Name, name)
	}
	e.indexDefs[def.Name] = def
	if def.Type == "text" || def.Type == "fulltext" {
		e.fulltextIdx[def.Name] = fulltext.New(2, nil)
	}
	return nil
}

// UpdateIndex replaces an existing index definition, rebuilding its
// full-text holder from scratch if the new type is text-shaped. Mirrors
// `update_index(json)`.
func UpdateIndex(handle int64, name string, def IndexDef) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	e, err := in.namespace(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.indexDefs[def.Name]; !exists {
		return coreerrors.New(coreerrors.KindNotFound, "index %q does not exist on namespace %q", def.Name, name)
	}
	e.indexDefs[def.Name] = def
	delete(e.fulltextIdx, def.Name)
	if def.Type == "text" || def.Type == "fulltext" {
		e.fulltextIdx[def.Name] = fulltext.New(2, nil)
	}
	return nil
}

// DropIndex removes the named index. Mirrors `drop_index(name)`.
func DropIndex(handle int64, name, indexName string) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	e, err := in.namespace(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.indexDefs[indexName]; !exists {
		return coreerrors.New(coreerrors.KindNotFound, "index %q does not exist on namespace %q", indexName, name)
	}
	delete(e.indexDefs, indexName)
	delete(e.fulltextIdx, indexName)
	return nil
}

// SetSchema rebuilds name's PayloadType from fields, replacing whatever
// schema it had before. Existing items are left under the old layout —
// reconciling already-stored items against a changed schema is a
// migration concern this module's Non-goals explicitly exclude. Mirrors `set_schema(json)`.
func SetSchema(handle int64, name string, fields []SchemaField) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	e, err := in.namespace(name)
	if err != nil {
		return err
	}
	b := payload.NewTypeBuilder(name)
	for _, f := range fields {
		kind, ok := kindFromSchemaString(f.Kind)
		if !ok {
			return coreerrors.New(coreerrors.KindParams, "set_schema: unknown field kind %q for %q", f.Kind, f.Name)
		}
		b = b.AddScalar(f.Name, kind, f.IsArray, f.Width)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ns.Type = b.Build()
	return nil
}

// PutMeta stores key/data as namespace-scoped metadata. Mirrors
// `put_meta(ns,key,data)`.
func PutMeta(handle int64, name, key, data string) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	e, err := in.namespace(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.meta[key] = data
	return nil
}

// GetMeta retrieves namespace-scoped metadata. Mirrors `get_meta(ns,key)`.
func GetMeta(handle int64, name, key string) (string, error) {
	in, err := getInstance(handle)
	if err != nil {
		return "", err
	}
	e, err := in.namespace(name)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.meta[key]
	if !ok {
		return "", coreerrors.New(coreerrors.KindNotFound, "no meta key %q on namespace %q", key, name)
	}
	return data, nil
}
