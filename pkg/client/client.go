// Package client is a Go-native convenience wrapper over internal/binding,
// mirroring the fluent Database/Collection-handle ergonomics of
// docdb/pkg/client and bundoc/client — except there is no socket in
// between: the engine is embedded in the same process, so every call here
// is a direct, in-process call through the opaque-handle binding surface.
package client

import (
	"encoding/json"

	"github.com/kartikbazzad/docucore/internal/binding"
)

// Client is one connected engine instance.
type Client struct {
	handle int64
}

// Open allocates a fresh engine instance and connects it under dsn.
func Open(dsn string) (*Client, error) {
	handle := binding.Init()
	if err := binding.Connect(handle, dsn, binding.ConnectOpts{WarnVersionMismatch: true}, binding.LibraryVersion); err != nil {
		_ = binding.Destroy(handle)
		return nil, err
	}
	return &Client{handle: handle}, nil
}

// Close tears down the underlying instance.
func (c *Client) Close() error { return binding.Destroy(c.handle) }

// SetExecutor wires the query-execution collaborator select/select_query
// and update_query/delete_query delegate to.
func (c *Client) SetExecutor(exec binding.Executor) error { return binding.SetExecutor(c.handle, exec) }

// EnableLogger installs w as the process-wide log sink.
func (c *Client) EnableLogger(w binding.LogWriterFunc) { binding.EnableLogger(w) }

// DisableLogger discards all subsequent log output.
func (c *Client) DisableLogger() { binding.DisableLogger() }

// Namespace opens (creating if absent) and returns a handle to name.
func (c *Client) Namespace(name string) (*Namespace, error) {
	if err := binding.OpenNamespace(c.handle, name); err != nil {
		return nil, err
	}
	return &Namespace{client: c, name: name}, nil
}

// Namespace is a handle to one open namespace, the unit Insert/Update/
// Select/transactions operate against.
type Namespace struct {
	client *Client
	name   string
}

func (ns *Namespace) Close() error    { return binding.CloseNamespace(ns.client.handle, ns.name) }
func (ns *Namespace) Drop() error     { return binding.DropNamespace(ns.client.handle, ns.name) }
func (ns *Namespace) Truncate() error { return binding.TruncateNamespace(ns.client.handle, ns.name) }

// SetSchema replaces the namespace's field layout.
func (ns *Namespace) SetSchema(fields []binding.SchemaField) error {
	return binding.SetSchema(ns.client.handle, ns.name, fields)
}

func (ns *Namespace) AddIndex(def binding.IndexDef) error {
	return binding.AddIndex(ns.client.handle, ns.name, def)
}

func (ns *Namespace) UpdateIndex(def binding.IndexDef) error {
	return binding.UpdateIndex(ns.client.handle, ns.name, def)
}

func (ns *Namespace) DropIndex(name string) error {
	return binding.DropIndex(ns.client.handle, ns.name, name)
}

func (ns *Namespace) PutMeta(key, data string) error {
	return binding.PutMeta(ns.client.handle, ns.name, key, data)
}

func (ns *Namespace) GetMeta(key string) (string, error) {
	return binding.GetMeta(ns.client.handle, ns.name, key)
}

func (ns *Namespace) modifyJSON(mode binding.Mode, id int64, doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	buf := binding.ModifyItemPacked(ns.client.handle, ns.name, binding.FormatJSON, mode, 0, id, data)
	defer binding.FreeBuffer(ns.client.handle, buf)
	if err := buf.Err(); err != nil {
		return nil, err
	}
	if buf.ResultsHandle == 0 {
		return nil, nil // delete
	}
	body, err := binding.FirstItemJSON(ns.client.handle, buf)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert stores doc as a brand new item.
func (ns *Namespace) Insert(doc map[string]any) (map[string]any, error) {
	return ns.modifyJSON(binding.ModeInsert, 0, doc)
}

// Update merges doc onto the existing item identified by id.
func (ns *Namespace) Update(id int64, doc map[string]any) (map[string]any, error) {
	return ns.modifyJSON(binding.ModeUpdate, id, doc)
}

// Upsert inserts doc, or merges it onto the existing item its own id field
// names, whichever applies.
func (ns *Namespace) Upsert(doc map[string]any) (map[string]any, error) {
	return ns.modifyJSON(binding.ModeUpsert, 0, doc)
}

// Delete removes the item identified by id.
func (ns *Namespace) Delete(id int64) error {
	_, err := ns.modifyJSON(binding.ModeDelete, id, map[string]any{"id": id})
	return err
}

// Select runs sql against the namespace and decodes every matching item as
// a plain Go map. Actually matching predicates against stored data is
// entirely the wired Executor's job; Select just drains whatever it hands
// back.
func (ns *Namespace) Select(sql string) ([]map[string]any, error) {
	buf := binding.Select(ns.client.handle, ns.name, sql, true, nil)
	defer binding.FreeBuffer(ns.client.handle, buf)
	if err := buf.Err(); err != nil {
		return nil, err
	}
	bodies, err := binding.CollectJSON(ns.client.handle, buf)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(bodies))
	for _, b := range bodies {
		var doc map[string]any
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Begin opens a transaction scoped to this namespace.
func (ns *Namespace) Begin() (*Transaction, error) {
	h, err := binding.StartTransaction(ns.client.handle, ns.name)
	if err != nil {
		return nil, err
	}
	return &Transaction{client: ns.client, handle: h}, nil
}

// Transaction batches item modifications for atomic commit, mirroring
// Namespace's Insert/Update/Upsert/Delete shape one level down.
type Transaction struct {
	client *Client
	handle int64
}

func (tx *Transaction) modify(mode binding.Mode, id int64, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return binding.ModifyItemPackedTx(tx.client.handle, tx.handle, binding.FormatJSON, mode, 0, id, data)
}

func (tx *Transaction) Insert(doc map[string]any) error { return tx.modify(binding.ModeInsert, 0, doc) }

func (tx *Transaction) Update(id int64, doc map[string]any) error {
	return tx.modify(binding.ModeUpdate, id, doc)
}

func (tx *Transaction) Upsert(doc map[string]any) error {
	return tx.modify(binding.ModeUpsert, 0, doc)
}

func (tx *Transaction) Delete(id int64) error {
	return tx.modify(binding.ModeDelete, id, map[string]any{"id": id})
}

// Commit applies every staged step atomically, returning the number of
// items it touched.
func (tx *Transaction) Commit() (int, error) {
	buf := binding.CommitTransaction(tx.client.handle, tx.handle)
	defer binding.FreeBuffer(tx.client.handle, buf)
	if err := buf.Err(); err != nil {
		return 0, err
	}
	return binding.AffectedCount(tx.client.handle, buf), nil
}

// Rollback discards every staged step.
func (tx *Transaction) Rollback() error {
	return binding.RollbackTransaction(tx.client.handle, tx.handle)
}
