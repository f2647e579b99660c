// ABOUTME: Record reads (lazy pagination) and batched record writes
// ABOUTME: Writes are split into batches that run sequentially with a pause between them
package airtable

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Fields is a record's field map. Values are strings, numbers, bools or
// lists (multi-select options, linked record ids).
type Fields map[string]any

// Record is one row of a table.
type Record struct {
	ID          string `json:"id,omitempty"`
	Fields      Fields `json:"fields"`
	CreatedTime string `json:"createdTime,omitempty"`
}

// String returns a field as text. Lists are joined with ", ".
func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Strings returns a list field (links, multi-select). A plain string becomes a one-item list.
func (f Fields) Strings(name string) []string {
	switch v := f[name].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Has reports whether the field is present with a non-empty value.
func (f Fields) Has(name string) bool {
	switch v := f[name].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	}
	return true
}

type listQuery struct {
	fields   []string
	view     string
	formula  string
	pageSize int
}

// ListOption narrows a record listing.
type ListOption func(*listQuery)

// WithFields limits the returned fields.
func WithFields(names ...string) ListOption {
	return func(q *listQuery) { q.fields = append(q.fields, names...) }
}

// WithView lists records of a named view, in that view's order.
func WithView(name string) ListOption {
	return func(q *listQuery) { q.view = name }
}

// WithFilterFormula passes a filterByFormula expression.
func WithFilterFormula(formula string) ListOption {
	return func(q *listQuery) { q.formula = formula }
}

// WithPageSize sets records per page, capped at the API maximum.
func WithPageSize(n int) ListOption {
	return func(q *listQuery) { q.pageSize = n }
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// Records lazily walks every record of table, one request per page, in server
// order. The first error is yielded once and ends the sequence.
func (c *Client) Records(ctx context.Context, table string, opts ...ListOption) iter.Seq2[Record, error] {
	q := listQuery{pageSize: c.cfg.PageSize}
	for _, opt := range opts {
		opt(&q)
	}
	if q.pageSize <= 0 || q.pageSize > c.cfg.PageSize {
		q.pageSize = c.cfg.PageSize
	}

	return func(yield func(Record, error) bool) {
		offset := ""
		page := 0
		for {
			params := url.Values{}
			params.Set("pageSize", strconv.Itoa(q.pageSize))
			if offset != "" {
				params.Set("offset", offset)
			}
			for _, f := range q.fields {
				params.Add("fields[]", f)
			}
			if q.view != "" {
				params.Set("view", q.view)
			}
			if q.formula != "" {
				params.Set("filterByFormula", q.formula)
			}

			var resp listResponse
			if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+params.Encode(), nil, &resp); err != nil {
				yield(Record{}, fmt.Errorf("failed to list %s: %w", table, err))
				return
			}
			page++
			c.logger.Debug("fetched page", "table", table, "page", page, "records", len(resp.Records))

			for _, r := range resp.Records {
				if r.Fields == nil {
					r.Fields = Fields{}
				}
				if !yield(r, nil) {
					return
				}
			}
			if resp.Offset == "" {
				return
			}
			offset = resp.Offset
		}
	}
}

// FetchAll collects every record of table.
func (c *Client) FetchAll(ctx context.Context, table string, opts ...ListOption) ([]Record, error) {
	var records []Record
	for r, err := range c.Records(ctx, table, opts...) {
		if err != nil {
			return records, err
		}
		records = append(records, r)
	}
	return records, nil
}

type writeRequest struct {
	Records  []Record `json:"records"`
	Typecast bool     `json:"typecast"`
}

type writeResponse struct {
	Records []Record `json:"records"`
}

// Create inserts records. The returned records carry server ids, in input order.
// On failure the records created by earlier batches are returned with the error.
func (c *Client) Create(ctx context.Context, table string, fields []Fields) ([]Record, error) {
	records := make([]Record, len(fields))
	for i, f := range fields {
		records[i] = Record{Fields: f}
	}
	return c.write(ctx, http.MethodPost, table, records)
}

// Update patches the given fields of existing records; other fields are untouched.
func (c *Client) Update(ctx context.Context, table string, records []Record) ([]Record, error) {
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("failed to update %s: record %d has no id", table, i)
		}
	}
	return c.write(ctx, http.MethodPatch, table, records)
}

func (c *Client) write(ctx context.Context, method, table string, records []Record) ([]Record, error) {
	var written []Record
	err := c.eachBatch(ctx, len(records), func(lo, hi int) error {
		batch := make([]Record, 0, hi-lo)
		for _, r := range records[lo:hi] {
			// createdTime is read-only
			batch = append(batch, Record{ID: r.ID, Fields: r.Fields})
		}
		var resp writeResponse
		if err := c.do(ctx, method, c.tableURL(table), writeRequest{Records: batch, Typecast: true}, &resp); err != nil {
			return fmt.Errorf("failed to write batch %d-%d to %s: %w", lo+1, hi, table, err)
		}
		written = append(written, resp.Records...)
		return nil
	})
	return written, err
}

type deleteResponse struct {
	Records []struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	} `json:"records"`
}

// Delete removes records by id and returns the ids the server confirmed.
func (c *Client) Delete(ctx context.Context, table string, ids []string) ([]string, error) {
	var deleted []string
	err := c.eachBatch(ctx, len(ids), func(lo, hi int) error {
		params := url.Values{}
		for _, id := range ids[lo:hi] {
			params.Add("records[]", id)
		}
		var resp deleteResponse
		if err := c.do(ctx, http.MethodDelete, c.tableURL(table)+"?"+params.Encode(), nil, &resp); err != nil {
			return fmt.Errorf("failed to delete batch %d-%d from %s: %w", lo+1, hi, table, err)
		}
		for _, r := range resp.Records {
			if r.Deleted {
				deleted = append(deleted, r.ID)
			}
		}
		return nil
	})
	return deleted, err
}

// eachBatch calls fn for consecutive [lo,hi) windows of BatchSize, pausing
// BatchDelay between calls. It stops at the first error.
func (c *Client) eachBatch(ctx context.Context, n int, fn func(lo, hi int) error) error {
	for lo := 0; lo < n; lo += c.cfg.BatchSize {
		if lo > 0 {
			if err := c.sleep(ctx, c.cfg.BatchDelay); err != nil {
				return err
			}
		}
		hi := min(lo+c.cfg.BatchSize, n)
		if err := fn(lo, hi); err != nil {
			return err
		}
	}
	return nil
}
