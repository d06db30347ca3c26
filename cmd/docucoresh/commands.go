package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kartikbazzad/docucore/internal/binding"
	"github.com/kartikbazzad/docucore/pkg/client"
)

// shell holds everything one interactive session needs: the connected
// engine, whichever namespace/transaction is currently active, and the
// line history liner keeps for us.
type shell struct {
	dsn     string
	cl      *client.Client
	ns      *client.Namespace
	nsName  string
	tx      *client.Transaction
	pretty  bool
	history []string
}

func newShell(dsn string) *shell {
	return &shell{dsn: dsn, pretty: true}
}

func (s *shell) connect() error {
	cl, err := client.Open(s.dsn)
	if err != nil {
		return err
	}
	s.cl = cl
	return nil
}

func (s *shell) close() {
	if s.tx != nil {
		_ = s.tx.Rollback()
	}
	if s.ns != nil {
		_ = s.ns.Close()
	}
	if s.cl != nil {
		_ = s.cl.Close()
	}
}

// result is the uniform shape every dot-command produces, mirrored on
// docdbsh's OK/ERROR banner-plus-body convention.
type result struct {
	err    error
	lines  []string
	isExit bool
}

func errResult(err error) result   { return result{err: err} }
func okResult(lines ...string) result { return result{lines: lines} }

func (r result) print(w io.Writer) {
	if r.err != nil {
		fmt.Fprintln(w, "ERROR")
		fmt.Fprintln(w, r.err.Error())
		return
	}
	fmt.Fprintln(w, "OK")
	for _, l := range r.lines {
		fmt.Fprintln(w, l)
	}
}

func (s *shell) requireNamespace() error {
	if s.ns == nil {
		return fmt.Errorf("no namespace open, use .open <name> first")
	}
	return nil
}

func (s *shell) execute(cmd *command) result {
	switch cmd.Name {
	case ".help":
		return okResult(helpText...)
	case ".exit", ".quit":
		return result{isExit: true}
	case ".open":
		return s.doOpen(cmd)
	case ".close":
		return s.doClose()
	case ".schema":
		return s.doSchema(cmd)
	case ".index":
		return s.doIndex(cmd)
	case ".insert":
		return s.doInsert(cmd)
	case ".update":
		return s.doUpdate(cmd)
	case ".upsert":
		return s.doUpsert(cmd)
	case ".delete":
		return s.doDelete(cmd)
	case ".select":
		return s.doSelect(cmd)
	case ".begin":
		return s.doBegin()
	case ".commit":
		return s.doCommit()
	case ".rollback":
		return s.doRollback()
	case ".meta-put":
		return s.doMetaPut(cmd)
	case ".meta-get":
		return s.doMetaGet(cmd)
	case ".pretty":
		return s.doPretty(cmd)
	case ".history":
		out := make([]string, len(s.history))
		for i, h := range s.history {
			out[i] = fmt.Sprintf("%3d: %s", i+1, h)
		}
		return okResult(out...)
	default:
		return errResult(fmt.Errorf("unknown command: %s", cmd.Name))
	}
}

var helpText = []string{
	"Meta:",
	"  .help                        show this message",
	"  .exit                        leave the shell",
	"  .history                     show command history",
	"Namespace lifecycle:",
	"  .open <ns>                   open (creating if absent) a namespace",
	"  .close                       close the current namespace",
	"  .schema name:kind[,name:kind ...]   set field layout, e.g. id:int64,name:string",
	"  .index <field> <type>        add an index (type text enables full text search)",
	"Item ops:",
	"  .insert <json>               insert a document",
	"  .update <id> <json>          merge json onto item id",
	"  .upsert <json>               insert, or merge if its id field already exists",
	"  .delete <id>                 delete item id",
	"  .select <sql>                run a query (bare lines are treated as .select)",
	"Transactions:",
	"  .begin / .commit / .rollback stage several item ops for atomic commit",
	"Namespace metadata:",
	"  .meta-put <key> <value>",
	"  .meta-get <key>",
	"Display:",
	"  .pretty on|off               toggle indented JSON output",
}

func (s *shell) doOpen(cmd *command) result {
	if err := validateArgs(cmd, 1); err != nil {
		return errResult(err)
	}
	ns, err := s.cl.Namespace(cmd.Args[0])
	if err != nil {
		return errResult(err)
	}
	s.ns = ns
	s.nsName = cmd.Args[0]
	return okResult(fmt.Sprintf("namespace=%s", s.nsName))
}

func (s *shell) doClose() result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := s.ns.Close(); err != nil {
		return errResult(err)
	}
	s.ns, s.nsName, s.tx = nil, "", nil
	return okResult()
}

// doSchema parses "name:kind[]" pairs, e.g. "id:int64,name:string,tags:string[]".
func (s *shell) doSchema(cmd *command) result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := validateArgs(cmd, 1); err != nil {
		return errResult(err)
	}
	var fields []binding.SchemaField
	for _, part := range strings.Split(strings.Join(cmd.Args, " "), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		nameKind := strings.SplitN(part, ":", 2)
		if len(nameKind) != 2 {
			return errResult(fmt.Errorf("invalid field spec %q, want name:kind", part))
		}
		f := binding.SchemaField{Name: nameKind[0], Kind: nameKind[1]}
		if strings.HasSuffix(f.Kind, "[]") {
			f.Kind = strings.TrimSuffix(f.Kind, "[]")
			f.IsArray = true
		}
		fields = append(fields, f)
	}
	if err := s.ns.SetSchema(fields); err != nil {
		return errResult(err)
	}
	return okResult(fmt.Sprintf("fields=%d", len(fields)))
}

func (s *shell) doIndex(cmd *command) result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := validateArgs(cmd, 2); err != nil {
		return errResult(err)
	}
	if err := s.ns.AddIndex(binding.IndexDef{Name: cmd.Args[0], Type: cmd.Args[1]}); err != nil {
		return errResult(err)
	}
	return okResult()
}

func parseDoc(joined string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(joined), &doc); err != nil {
		return nil, fmt.Errorf("invalid json document: %w", err)
	}
	return doc, nil
}

func (s *shell) formatDoc(doc map[string]any) (string, error) {
	var body []byte
	var err error
	if s.pretty {
		body, err = json.MarshalIndent(doc, "", "  ")
	} else {
		body, err = json.Marshal(doc)
	}
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s *shell) doInsert(cmd *command) result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := validateArgs(cmd, 1); err != nil {
		return errResult(err)
	}
	doc, err := parseDoc(strings.Join(cmd.Args, " "))
	if err != nil {
		return errResult(err)
	}
	if s.tx != nil {
		if err := s.tx.Insert(doc); err != nil {
			return errResult(err)
		}
		return okResult("staged")
	}
	out, err := s.ns.Insert(doc)
	if err != nil {
		return errResult(err)
	}
	body, err := s.formatDoc(out)
	if err != nil {
		return errResult(err)
	}
	return okResult(body)
}

func (s *shell) doUpdate(cmd *command) result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := validateArgs(cmd, 2); err != nil {
		return errResult(err)
	}
	id, err := parseInt64(cmd.Args[0])
	if err != nil {
		return errResult(fmt.Errorf("invalid id: %w", err))
	}
	doc, err := parseDoc(strings.Join(cmd.Args[1:], " "))
	if err != nil {
		return errResult(err)
	}
	if s.tx != nil {
		if err := s.tx.Update(id, doc); err != nil {
			return errResult(err)
		}
		return okResult("staged")
	}
	out, err := s.ns.Update(id, doc)
	if err != nil {
		return errResult(err)
	}
	body, err := s.formatDoc(out)
	if err != nil {
		return errResult(err)
	}
	return okResult(body)
}

func (s *shell) doUpsert(cmd *command) result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := validateArgs(cmd, 1); err != nil {
		return errResult(err)
	}
	doc, err := parseDoc(strings.Join(cmd.Args, " "))
	if err != nil {
		return errResult(err)
	}
	if s.tx != nil {
		if err := s.tx.Upsert(doc); err != nil {
			return errResult(err)
		}
		return okResult("staged")
	}
	out, err := s.ns.Upsert(doc)
	if err != nil {
		return errResult(err)
	}
	body, err := s.formatDoc(out)
	if err != nil {
		return errResult(err)
	}
	return okResult(body)
}

func (s *shell) doDelete(cmd *command) result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := validateArgs(cmd, 1); err != nil {
		return errResult(err)
	}
	id, err := parseInt64(cmd.Args[0])
	if err != nil {
		return errResult(fmt.Errorf("invalid id: %w", err))
	}
	if s.tx != nil {
		if err := s.tx.Delete(id); err != nil {
			return errResult(err)
		}
		return okResult("staged")
	}
	if err := s.ns.Delete(id); err != nil {
		return errResult(err)
	}
	return okResult()
}

func (s *shell) doSelect(cmd *command) result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := validateArgs(cmd, 1); err != nil {
		return errResult(err)
	}
	docs, err := s.ns.Select(strings.Join(cmd.Args, " "))
	if err != nil {
		return errResult(err)
	}
	lines := make([]string, 0, len(docs)+1)
	lines = append(lines, fmt.Sprintf("count=%d", len(docs)))
	for _, doc := range docs {
		body, err := s.formatDoc(doc)
		if err != nil {
			return errResult(err)
		}
		lines = append(lines, body)
	}
	return okResult(lines...)
}

func (s *shell) doBegin() result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if s.tx != nil {
		return errResult(fmt.Errorf("transaction already active"))
	}
	tx, err := s.ns.Begin()
	if err != nil {
		return errResult(err)
	}
	s.tx = tx
	return okResult()
}

func (s *shell) doCommit() result {
	if s.tx == nil {
		return errResult(fmt.Errorf("no active transaction"))
	}
	n, err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return errResult(err)
	}
	return okResult(fmt.Sprintf("affected=%d", n))
}

func (s *shell) doRollback() result {
	if s.tx == nil {
		return errResult(fmt.Errorf("no active transaction"))
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return errResult(err)
	}
	return okResult()
}

func (s *shell) doMetaPut(cmd *command) result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := validateArgs(cmd, 2); err != nil {
		return errResult(err)
	}
	if err := s.ns.PutMeta(cmd.Args[0], strings.Join(cmd.Args[1:], " ")); err != nil {
		return errResult(err)
	}
	return okResult()
}

func (s *shell) doMetaGet(cmd *command) result {
	if err := s.requireNamespace(); err != nil {
		return errResult(err)
	}
	if err := validateArgs(cmd, 1); err != nil {
		return errResult(err)
	}
	v, err := s.ns.GetMeta(cmd.Args[0])
	if err != nil {
		return errResult(err)
	}
	return okResult(v)
}

func (s *shell) doPretty(cmd *command) result {
	if len(cmd.Args) == 0 {
		return okResult(fmt.Sprintf("pretty=%t", s.pretty))
	}
	switch strings.ToLower(cmd.Args[0]) {
	case "on":
		s.pretty = true
	case "off":
		s.pretty = false
	default:
		return errResult(fmt.Errorf("usage: .pretty on|off"))
	}
	return okResult(fmt.Sprintf("pretty=%t", s.pretty))
}
