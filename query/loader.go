package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dubeme/eagerload/include"
	"github.com/dubeme/eagerload/logger"
	"github.com/dubeme/eagerload/metadata"
	"github.com/dubeme/eagerload/utils"
)

// Loader materializes related data from a SQL database, implementing
// include.RelatedSource. Reference slots are filled by walking a plan's
// operations in slot order, one lookup per populated foreign key; collection
// items are served per owner, as an immediate or channel-backed sequence
// depending on the execution mode.
//
// Field names are mapped to snake_case column names and scanned columns back
// to camelCase record keys. Queries use ? placeholders.
type Loader struct {
	db    *sql.DB
	log   logger.Logger
	async bool
}

// NewLoader creates a loader over an open database handle
func NewLoader(db *sql.DB, log logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Loader{db: db, log: log}
}

// SetAsync selects channel-backed sequences for collection loads
func (l *Loader) SetAsync(async bool) {
	l.async = async
}

// Slots materializes the positional related-object array for one owner. The
// array is sized and indexed by the plan's slot numbering; absent
// relationships leave their slot nil.
func (l *Loader) Slots(ctx context.Context, plan *include.Plan, owner metadata.Record) ([]any, error) {
	slots := make([]any, plan.Slots)
	if err := l.fillSlots(ctx, plan.Ops, owner, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (l *Loader) fillSlots(ctx context.Context, ops []include.Op, owner metadata.Record, slots []any) error {
	for _, op := range ops {
		refOp, ok := op.(*include.ReferenceOp)
		if !ok {
			// Collection subtrees are loaded when the buffer drains
			continue
		}

		related, err := l.loadReference(ctx, refOp.Relationship, owner)
		if err != nil {
			return err
		}
		if related == nil {
			continue
		}

		slots[refOp.Slot] = related
		if err := l.fillSlots(ctx, refOp.Nested, related, slots); err != nil {
			return err
		}
	}
	return nil
}

// Collection returns the sequence of related items for one owner of a
// collection operation
func (l *Loader) Collection(ctx context.Context, op *include.CollectionOp, owner metadata.Record) (include.Sequence, error) {
	rel := op.Relationship

	key, exists := owner[rel.References]
	if !exists || key == nil {
		return include.NewSliceSequence(nil), nil
	}

	query := collectionQuery(rel)

	if l.async {
		// The producer selects on a loader-owned context so that closing the
		// sequence unblocks it even when enumeration is abandoned before the
		// channel drains
		seqCtx, stop := context.WithCancel(ctx)
		ch := make(chan include.Result)
		go func() {
			defer close(ch)
			items, err := l.queryRecords(seqCtx, rel, query, key)
			if err != nil {
				select {
				case ch <- include.Result{Err: err}:
				case <-seqCtx.Done():
				}
				return
			}
			for _, item := range items {
				select {
				case ch <- include.Result{Item: item}:
				case <-seqCtx.Done():
					return
				}
			}
		}()
		return include.NewChanSequence(ch, stop), nil
	}

	items, err := l.queryRecords(ctx, rel, query, key)
	if err != nil {
		return nil, err
	}
	return include.NewSliceSequence(items), nil
}

func (l *Loader) loadReference(ctx context.Context, rel *metadata.Relationship, owner metadata.Record) (metadata.Record, error) {
	fk, exists := owner[rel.ForeignKey]
	if !exists || fk == nil {
		// Legitimately absent relationship
		return nil, nil
	}

	records, err := l.queryRecords(ctx, rel, referenceQuery(rel), fk)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (l *Loader) queryRecords(ctx context.Context, rel *metadata.Relationship, query string, args ...any) ([]metadata.Record, error) {
	start := time.Now()
	rows, err := l.db.QueryContext(ctx, query, args...)
	l.logSQL(query, args, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("loading %s.%s: %w", rel.Source.Name, rel.Name, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning %s.%s: %w", rel.Source.Name, rel.Name, err)
	}
	return records, nil
}

// referenceQuery builds the single-row lookup for a single-valued
// relationship: the owner's foreign key against the target's referenced
// column
func referenceQuery(rel *metadata.Relationship) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1",
		rel.Target.Table, utils.ToSnakeCase(rel.References))
}

// collectionQuery builds the item lookup for a collection relationship: the
// foreign key column on the target against the owner's referenced value
func collectionQuery(rel *metadata.Relationship) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = ?",
		rel.Target.Table, utils.ToSnakeCase(rel.ForeignKey))
}

// scanRecords scans all rows into map records keyed by camelCase field names
func scanRecords(rows *sql.Rows) ([]metadata.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var records []metadata.Record

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		record := make(metadata.Record, len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			record[utils.ToCamelCase(col)] = val
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

func (l *Loader) logSQL(query string, args []any, duration time.Duration) {
	if l.log.GetLevel() < logger.LogLevelDebug {
		return
	}

	l.log.Debug("SQL (%v): %s", duration, strings.TrimSpace(query))
	if len(args) > 0 {
		argsStr := make([]string, len(args))
		for i, arg := range args {
			argsStr[i] = fmt.Sprintf("%v", arg)
		}
		l.log.Debug("Args: [%s]", strings.Join(argsStr, ", "))
	}
}
