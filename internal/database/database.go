package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Collection names shared by the services.
const (
	CollectionUsers           = "users"
	CollectionProblems        = "problems"
	CollectionBiddingSessions = "biddingSessions"
	CollectionBids            = "bids"
	CollectionGreenCredits    = "greenCredits"
	CollectionOneCredits      = "oneCredits"
	CollectionRedemptions     = "redemptions"
	CollectionRewards         = "rewards"
	CollectionJobs            = "n8nJobs"
)

var (
	// ErrNotFound is returned by typed lookups when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnsupportedOperator is returned for filter operators other than == and in.
	ErrUnsupportedOperator = errors.New("unsupported query operator")
)

// Document is a single schemaless record. Values are plain JSON types:
// string, float64, bool, nil, []any and map[string]any.
type Document map[string]any

// GetResult reports whether a document exists and carries it when it does.
type GetResult struct {
	Exists bool
	ID     string
	Data   Document
}

// Operator is a single-field filter operator.
type Operator string

const (
	OpEqual Operator = "=="
	OpIn    Operator = "in"
)

// Filter selects documents whose Field matches Value under Op.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders query results by a single field.
type Sort struct {
	Field     string
	Direction Direction
}

// Store is the minimal document-database contract every backend implements.
//
// Get never fails for a missing document; it returns a result with Exists
// false. Update is a silent no-op when the document does not exist. Query
// returns documents in backend scan order and QueryWithSort sorts that scan
// stably, so equal keys keep their scan order.
type Store interface {
	Get(ctx context.Context, collection, id string) (GetResult, error)
	Set(ctx context.Context, collection, id string, data Document) error
	Update(ctx context.Context, collection, id string, partial Document) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)
	QueryWithSort(ctx context.Context, collection string, filter *Filter, order Sort) ([]Document, error)
	All(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

// Options selects and configures a Store backend.
type Options struct {
	Backend       string // file, memory, sqlite, postgres, mongo
	DataDir       string
	DSN           string
	MongoURI      string
	MongoDatabase string
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "file":
		return NewFileStore(opts.DataDir)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		return NewSQLStore(DialectSQLite, opts.DSN)
	case "postgres", "postgresql":
		return NewSQLStore(DialectPostgres, opts.DSN)
	case "mongo", "mongodb":
		return NewMongoStore(ctx, opts.MongoURI, opts.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// ToDocument converts any JSON-serializable value into a Document.
func ToDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Decode fills dest from doc.
func (d Document) Decode(dest any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Document(t).Clone())
	case Document:
		return map[string]any(t.Clone())
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// normalize coerces arbitrary Go values into plain JSON types so that
// equality and ordering behave the same on every backend.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, float64, bool:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}
	return out, nil
}

func normalizeDocument(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	return ToDocument(map[string]any(doc))
}

// prepared is a validated filter with its value already normalized.
type prepared struct {
	field  string
	op     Operator
	value  any
	values []any
}

func prepareFilter(f Filter) (*prepared, error) {
	p := &prepared{field: f.Field, op: f.Op}
	switch f.Op {
	case OpEqual:
		v, err := normalize(f.Value)
		if err != nil {
			return nil, err
		}
		p.value = v
	case OpIn:
		v, err := normalize(f.Value)
		if err != nil {
			return nil, err
		}
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("operator in requires a list value for field %q", f.Field)
		}
		p.values = list
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, f.Op)
	}
	return p, nil
}

func (p *prepared) matches(doc Document) bool {
	got, ok := doc[p.field]
	if !ok {
		return false
	}
	switch p.op {
	case OpEqual:
		return reflect.DeepEqual(got, p.value)
	case OpIn:
		for _, want := range p.values {
			if reflect.DeepEqual(got, want) {
				return true
			}
		}
	}
	return false
}

// filterDocuments keeps the documents matching f, in scan order.
func filterDocuments(docs []Document, f *Filter) ([]Document, error) {
	if f == nil {
		return docs, nil
	}
	p, err := prepareFilter(*f)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if p.matches(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func sortDocuments(docs []Document, order Sort) error {
	switch order.Direction {
	case Asc, Desc:
	default:
		return fmt.Errorf("unsupported sort direction %q", order.Direction)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		c := compareValues(docs[i][order.Field], docs[j][order.Field])
		if order.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
	return nil
}

// compareValues orders numbers, strings, booleans and RFC3339 timestamps.
// Values of different or non-comparable kinds compare as equal.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0
		}
		at, aerr := time.Parse(time.RFC3339Nano, av)
		bt, berr := time.Parse(time.RFC3339Nano, bv)
		if aerr == nil && berr == nil {
			return at.Compare(bt)
		}
		return strings.Compare(av, bv)
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if !av {
				return -1
			}
			return 1
		}
	}
	return 0
}

// applyQuery filters then optionally sorts a scan result.
func applyQuery(docs []Document, filter *Filter, order *Sort) ([]Document, error) {
	out, err := filterDocuments(docs, filter)
	if err != nil {
		return nil, err
	}
	if order != nil {
		if err := sortDocuments(out, *order); err != nil {
			return nil, err
		}
	}
	return out, nil
}
