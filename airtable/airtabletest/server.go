// ABOUTME: In-memory fake of the hosted table API for tests
// ABOUTME: Serves records, paging, batched writes, schema metadata and scripted failures
package airtabletest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// Record mirrors the API's record shape.
type Record struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime,omitempty"`
}

// Field mirrors a schema field.
type Field struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Options map[string]any `json:"options,omitempty"`
}

type table struct {
	ID      string
	Name    string
	Fields  []Field
	Records []Record
}

// Request is one request the server received.
type Request struct {
	Method string
	// Table is the table name or id from the path; empty for metadata calls.
	Table string
	Path  string
	Query url.Values
	Body  []byte
}

type fault struct {
	start    int
	statuses []int
}

// Server is a fake API bound to one base id.
type Server struct {
	BaseID string

	mu        sync.Mutex
	srv       *httptest.Server
	tables    []*table
	requests  []Request
	perMethod map[string]int
	faults    map[string][]fault
	metaDown  bool
}

// New starts a fake server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		BaseID:    "appTEST00000000001",
		perMethod: map[string]int{},
		faults:    map[string][]fault{},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API root to put in the client config.
func (s *Server) URL() string {
	return s.srv.URL + "/v0"
}

// AddTable creates a table with the given text fields and returns its id.
func (s *Server) AddTable(name string, fieldNames ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &table{ID: newID("tbl"), Name: name}
	for _, f := range fieldNames {
		t.Fields = append(t.Fields, Field{ID: newID("fld"), Name: f, Type: "singleLineText"})
	}
	s.tables = append(s.tables, t)
	return t.ID
}

// Seed inserts records directly and returns them with ids.
func (s *Server) Seed(tableName string, fields ...map[string]any) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(tableName)
	if t == nil {
		panic("airtabletest: unknown table " + tableName)
	}
	out := make([]Record, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			f = map[string]any{}
		}
		r := Record{ID: newID("rec"), Fields: f, CreatedTime: "2024-01-01T00:00:00.000Z"}
		t.Records = append(t.Records, r)
		out = append(out, r)
	}
	return out
}

// Records returns a copy of a table's records.
func (s *Server) Records(tableName string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(tableName)
	if t == nil {
		return nil
	}
	return append([]Record(nil), t.Records...)
}

// Fields returns a copy of a table's schema fields.
func (s *Server) Fields(tableName string) []Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(tableName)
	if t == nil {
		return nil
	}
	return append([]Field(nil), t.Fields...)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts requests by method ("" for all).
func (s *Server) CountRequests(method string) int {
	n := 0
	for _, r := range s.Requests() {
		if method == "" || r.Method == method {
			n++
		}
	}
	return n
}

// FailWith makes the nth request (1-based, counted per method) and the ones
// after it answer with the given statuses, one status per request.
func (s *Server) FailWith(method string, nth int, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = append(s.faults[method], fault{start: nth, statuses: statuses})
}

// MetadataDown makes the schema endpoint answer 403.
func (s *Server) MetadataDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaDown = true
}

func (s *Server) table(nameOrID string) *table {
	for _, t := range s.tables {
		if t.Name == nameOrID || t.ID == nameOrID {
			return t
		}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	segments := splitPath(r.URL.EscapedPath())

	s.mu.Lock()
	defer s.mu.Unlock()

	req := Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body}
	if len(segments) == 3 && segments[0] == "v0" {
		req.Table = segments[2]
	}
	s.requests = append(s.requests, req)
	s.perMethod[r.Method]++
	n := s.perMethod[r.Method]

	for _, f := range s.faults[r.Method] {
		if n >= f.start && n < f.start+len(f.statuses) {
			writeError(w, f.statuses[n-f.start], "SCRIPTED_FAILURE", "scripted failure")
			return
		}
	}

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "missing bearer token")
		return
	}

	switch {
	case len(segments) >= 5 && segments[0] == "v0" && segments[1] == "meta":
		s.handleMeta(w, r.Method, segments[3], segments[5:], body)
	case len(segments) == 3 && segments[0] == "v0":
		if segments[1] != s.BaseID {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown base")
			return
		}
		t := s.table(segments[2])
		if t == nil {
			writeError(w, http.StatusNotFound, "TABLE_NOT_FOUND", "unknown table "+segments[2])
			return
		}
		s.handleRecords(w, r, t, body)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown path")
	}
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request, t *table, body []byte) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		size, _ := strconv.Atoi(q.Get("pageSize"))
		if size <= 0 || size > 100 {
			size = 100
		}
		start := 0
		if off := q.Get("offset"); off != "" {
			start, _ = strconv.Atoi(strings.TrimPrefix(off, "itr"))
		}
		end := min(start+size, len(t.Records))
		resp := map[string]any{"records": t.Records[min(start, end):end]}
		if end < len(t.Records) {
			resp["offset"] = "itr" + strconv.Itoa(end)
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodPost, http.MethodPatch:
		var payload struct {
			Records []Record `json:"records"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_BODY", err.Error())
			return
		}
		if len(payload.Records) > 10 {
			writeError(w, http.StatusUnprocessableEntity, "INVALID_RECORDS", "too many records")
			return
		}
		for _, rec := range payload.Records {
			for name := range rec.Fields {
				if !t.hasField(name) {
					writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_FIELD_NAME",
						fmt.Sprintf("Unknown field name: %q", name))
					return
				}
			}
		}
		out := make([]Record, 0, len(payload.Records))
		for _, rec := range payload.Records {
			if r.Method == http.MethodPost {
				rec.ID = newID("rec")
				rec.CreatedTime = "2024-01-01T00:00:00.000Z"
				t.Records = append(t.Records, rec)
				out = append(out, rec)
				continue
			}
			i := t.index(rec.ID)
			if i < 0 {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown record "+rec.ID)
				return
			}
			if t.Records[i].Fields == nil {
				t.Records[i].Fields = map[string]any{}
			}
			for k, v := range rec.Fields {
				t.Records[i].Fields[k] = v
			}
			out = append(out, t.Records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": out})

	case http.MethodDelete:
		ids := r.URL.Query()["records[]"]
		var out []map[string]any
		for _, id := range ids {
			i := t.index(id)
			if i < 0 {
				continue
			}
			t.Records = append(t.Records[:i], t.Records[i+1:]...)
			out = append(out, map[string]any{"id": id, "deleted": true})
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": out})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method)
	}
}

// handleMeta serves /v0/meta/bases/{base}/tables[/{table}/fields[/{field}]].
func (s *Server) handleMeta(w http.ResponseWriter, method, baseID string, rest []string, body []byte) {
	if s.metaDown {
		writeError(w, http.StatusForbidden, "INVALID_PERMISSIONS", "schema access denied")
		return
	}
	if baseID != s.BaseID {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown base")
		return
	}

	if len(rest) == 0 && method == http.MethodGet {
		tables := make([]map[string]any, 0, len(s.tables))
		for _, t := range s.tables {
			primary := ""
			if len(t.Fields) > 0 {
				primary = t.Fields[0].ID
			}
			tables = append(tables, map[string]any{
				"id": t.ID, "name": t.Name, "primaryFieldId": primary, "fields": t.Fields,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
		return
	}

	if len(rest) < 2 || rest[1] != "fields" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown metadata path")
		return
	}
	t := s.table(rest[0])
	if t == nil {
		writeError(w, http.StatusNotFound, "TABLE_NOT_FOUND", rest[0])
		return
	}

	switch {
	case len(rest) == 2 && method == http.MethodPost:
		var f Field
		if err := json.Unmarshal(body, &f); err != nil || f.Name == "" {
			writeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_BODY", "field needs a name")
			return
		}
		if t.hasField(f.Name) {
			writeError(w, http.StatusUnprocessableEntity, "DUPLICATE_OR_EMPTY_FIELD_NAME", f.Name)
			return
		}
		f.ID = newID("fld")
		t.Fields = append(t.Fields, f)
		writeJSON(w, http.StatusOK, f)

	case len(rest) == 3 && method == http.MethodPatch:
		var patch struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(body, &patch)
		for i := range t.Fields {
			if t.Fields[i].ID == rest[2] {
				old := t.Fields[i].Name
				t.Fields[i].Name = patch.Name
				for _, rec := range t.Records {
					if v, ok := rec.Fields[old]; ok {
						delete(rec.Fields, old)
						rec.Fields[patch.Name] = v
					}
				}
				writeJSON(w, http.StatusOK, t.Fields[i])
				return
			}
		}
		writeError(w, http.StatusNotFound, "FIELD_NOT_FOUND", rest[2])

	case len(rest) == 3 && method == http.MethodDelete:
		for i := range t.Fields {
			if t.Fields[i].ID == rest[2] {
				name := t.Fields[i].Name
				t.Fields = append(t.Fields[:i], t.Fields[i+1:]...)
				for _, rec := range t.Records {
					delete(rec.Fields, name)
				}
				writeJSON(w, http.StatusOK, map[string]any{"id": rest[2], "deleted": true})
				return
			}
		}
		writeError(w, http.StatusNotFound, "FIELD_NOT_FOUND", rest[2])

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", method)
	}
}

func (t *table) hasField(name string) bool {
	// A table declared without fields accepts anything.
	if len(t.Fields) == 0 {
		return true
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (t *table) index(id string) int {
	for i, r := range t.Records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func splitPath(escaped string) []string {
	var out []string
	for _, seg := range strings.Split(strings.Trim(escaped, "/"), "/") {
		if v, err := url.PathUnescape(seg); err == nil {
			out = append(out, v)
		} else {
			out = append(out, seg)
		}
	}
	return out
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"type": kind, "message": msg}})
}
