// Package postgres is the PostgreSQL docstore backend. Each collection is a
// table of (id, version, doc JSONB); filters and sorts are evaluated on the
// JSON document.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/pkg/database"
)

// Collection is a docstore.Collection stored in one table.
type Collection[T any] struct {
	db    database.DBTX
	table string
}

var _ docstore.Collection[struct{}] = (*Collection[struct{}])(nil)

// New returns a collection over table. The table name is spliced into SQL,
// so it must be a plain identifier.
func New[T any](db database.DBTX, table string) (*Collection[T], error) {
	if !docstore.ValidField(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Collection[T]{db: db, table: table}, nil
}

func (c *Collection[T]) trace(ctx context.Context, op, sql string) (context.Context, func(error)) {
	return database.TraceOp(ctx, database.SystemPostgres, c.table+"."+op, sql)
}

func (c *Collection[T]) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) (out []T, err error) {
	where, args, err := BuildWhere(filter, nil)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT doc FROM %s WHERE %s", c.table, where)
	if len(opts.Sort) > 0 {
		parts := make([]string, 0, len(opts.Sort))
		for _, s := range opts.Sort {
			if err := docstore.CheckField(s.Field); err != nil {
				return nil, err
			}
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			parts = append(parts, sortExpr(s.Field)+" "+dir)
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Skip > 0 {
		args = append(args, opts.Skip)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	query := sb.String()

	ctx, end := c.trace(ctx, "find", query)
	defer func() { end(err) }()

	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.table, err)
	}
	defer rows.Close()

	out = make([]T, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.table, err)
		}
		v, err := decode[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.table, err)
	}
	return out, nil
}

func (c *Collection[T]) FindOne(ctx context.Context, filter docstore.Filter) (doc *T, err error) {
	where, args, err := BuildWhere(filter, nil)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT doc FROM %s WHERE %s LIMIT 1", c.table, where)

	ctx, end := c.trace(ctx, "find_one", query)
	defer func() { end(ignoreNotFound(err)) }()
	return c.queryDoc(ctx, query, args...)
}

func (c *Collection[T]) FindByID(ctx context.Context, id string) (doc *T, err error) {
	query := fmt.Sprintf("SELECT doc FROM %s WHERE id = $1", c.table)

	ctx, end := c.trace(ctx, "find_by_id", query)
	defer func() { end(ignoreNotFound(err)) }()
	return c.queryDoc(ctx, query, id)
}

func (c *Collection[T]) queryDoc(ctx context.Context, query string, args ...any) (*T, error) {
	var raw []byte
	err := c.db.QueryRow(ctx, query, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, mapError(c.table, err)
	}
	return decode[T](raw)
}

func (c *Collection[T]) Insert(ctx context.Context, doc *T) (err error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.table, err)
	}
	var head struct {
		ID      string `json:"id"`
		Version int64  `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return fmt.Errorf("encode %s: %w", c.table, err)
	}
	if head.ID == "" {
		return fmt.Errorf("insert %s: document has no id", c.table)
	}
	query := fmt.Sprintf("INSERT INTO %s (id, version, doc) VALUES ($1, $2, $3)", c.table)

	ctx, end := c.trace(ctx, "insert", query)
	defer func() { end(err) }()

	if _, err := c.db.Exec(ctx, query, head.ID, head.Version, string(raw)); err != nil {
		return mapError(c.table, err)
	}
	return nil
}

func (c *Collection[T]) UpdateByID(ctx context.Context, id string, patch docstore.Patch, opts docstore.UpdateOptions) (doc *T, err error) {
	patch, keys, err := docstore.Prepare(patch)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := docstore.ValidatePatch[T](patch, keys); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}

	query := fmt.Sprintf(`UPDATE %s
		SET doc = doc || $2::jsonb || jsonb_build_object('version', version + 1),
		    version = version + 1
		WHERE id = $1`, c.table)
	args := []any{id, string(raw)}
	if opts.IfVersion != 0 {
		query += " AND version = $3"
		args = append(args, opts.IfVersion)
	}
	query += " RETURNING doc"

	ctx, end := c.trace(ctx, "update", query)
	defer func() { end(err) }()
	return c.updateReturning(ctx, id, query, args, opts.IfVersion != 0, docstore.ErrConflict)
}

func (c *Collection[T]) IncrementByID(ctx context.Context, id, field string, delta int64, opts docstore.IncrementOptions) (doc *T, err error) {
	if err := docstore.CheckField(field); err != nil {
		return nil, err
	}
	current := fmt.Sprintf("COALESCE((doc->>'%s')::bigint, 0)", field)
	query := fmt.Sprintf(`UPDATE %s
		SET doc = jsonb_set(doc || jsonb_build_object('version', version + 1), '{%s}', to_jsonb(%s + $2)),
		    version = version + 1
		WHERE id = $1`, c.table, field, current)
	args := []any{id, delta}
	if opts.Floor != nil {
		query += fmt.Sprintf(" AND %s + $2 >= $3", current)
		args = append(args, *opts.Floor)
	}
	query += " RETURNING doc"

	ctx, end := c.trace(ctx, "increment", query)
	defer func() { end(err) }()
	return c.updateReturning(ctx, id, query, args, opts.Floor != nil, docstore.ErrBelowFloor)
}

// updateReturning runs a conditional UPDATE ... RETURNING doc. When no row
// comes back and the statement had a precondition, it checks whether the row
// exists to tell ErrNotFound from the precondition error.
func (c *Collection[T]) updateReturning(ctx context.Context, id, query string, args []any, conditional bool, precondition error) (*T, error) {
	doc, err := c.queryDoc(ctx, query, args...)
	if !errors.Is(err, docstore.ErrNotFound) || !conditional {
		return doc, err
	}
	var exists bool
	if err := c.db.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", c.table), id,
	).Scan(&exists); err != nil {
		return nil, mapError(c.table, err)
	}
	if !exists {
		return nil, docstore.ErrNotFound
	}
	return nil, precondition
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (err error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.table)

	ctx, end := c.trace(ctx, "delete", query)
	defer func() { end(err) }()

	tag, err := c.db.Exec(ctx, query, id)
	if err != nil {
		return mapError(c.table, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (c *Collection[T]) DeleteMany(ctx context.Context, filter docstore.Filter) (n int64, err error) {
	where, args, err := BuildWhere(filter, nil)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", c.table, where)

	ctx, end := c.trace(ctx, "delete_many", query)
	defer func() { end(err) }()

	tag, err := c.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(c.table, err)
	}
	return tag.RowsAffected(), nil
}

func (c *Collection[T]) Count(ctx context.Context, filter docstore.Filter) (n int64, err error) {
	where, args, err := BuildWhere(filter, nil)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", c.table, where)

	ctx, end := c.trace(ctx, "count", query)
	defer func() { end(err) }()

	if err := c.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError(c.table, err)
	}
	return n, nil
}

// BuildWhere renders f as a SQL condition. Placeholders are numbered after
// the arguments already in args, and the filter's values are appended to it.
func BuildWhere(f docstore.Filter, args []any) (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}
	if f.MatchesNothing() {
		return "FALSE", args, nil
	}
	if len(f) == 0 {
		return "TRUE", args, nil
	}

	clauses := make([]string, 0, len(f))
	for _, c := range f {
		clause, value, ok := condition(c)
		if !ok {
			return "FALSE", args, nil
		}
		if value != nil {
			args = append(args, value)
			clause = fmt.Sprintf(clause, len(args))
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), args, nil
}

var sqlOps = map[docstore.Op]string{
	docstore.OpEq:  "=",
	docstore.OpGt:  ">",
	docstore.OpGte: ">=",
	docstore.OpLt:  "<",
	docstore.OpLte: "<=",
}

// condition returns a clause with a single %d verb for its placeholder, or
// a literal clause and a nil value. ok is false when c can never match.
func condition(c docstore.Cond) (clause string, value any, ok bool) {
	text := fmt.Sprintf("(doc->>'%s')", c.Field)
	if c.Field == docstore.FieldID {
		text = "id"
	}

	if c.Op == docstore.OpContains {
		return text + ` ILIKE $%d ESCAPE '\'`, "%" + escapeLike(c.Value.(string)) + "%", true
	}
	op := sqlOps[c.Op]

	switch v := c.Value.(type) {
	case nil:
		if c.Op != docstore.OpEq {
			return "", nil, false
		}
		return text + " IS NULL", nil, true
	case string:
		return text + " " + op + " $%d", v, true
	case bool:
		return text + "::boolean " + op + " $%d", v, true
	case time.Time:
		return text + "::timestamptz " + op + " $%d", v.UTC(), true
	case int:
		return text + "::numeric " + op + " $%d", float64(v), true
	case int64:
		return text + "::numeric " + op + " $%d", float64(v), true
	case float64:
		return text + "::numeric " + op + " $%d", v, true
	}
	return "", nil, false
}

func sortExpr(field string) string {
	switch {
	case field == docstore.FieldID:
		return "id"
	case strings.HasSuffix(field, "_at"):
		return fmt.Sprintf("(doc->>'%s')::timestamptz", field)
	default:
		return fmt.Sprintf("doc->'%s'", field)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func decode[T any](raw []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &v, nil
}

func mapError(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return docstore.ErrDuplicate
	}
	return fmt.Errorf("%s: %w", table, err)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return err
}
