package arriba

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/arriba/block"
	"github.com/hupe1980/arriba/column"
	"github.com/hupe1980/arriba/execution"
	"github.com/hupe1980/arriba/internal/resource"
	"github.com/hupe1980/arriba/partition"
)

// MaxPartitionBits caps the number of partitions of a table at 2^16.
const MaxPartitionBits = 16

// hashChunkSize is the smallest number of rows hashed by one goroutine.
const hashChunkSize = 4096

// Table is a partitioned in-memory columnar table.
//
// Rows are routed to one of 2^n partitions by the top n bits of the hash of
// their ID. A Table is safe for concurrent use: queries share a read lock,
// writes and schema changes take the write lock and fan out over the
// partitions internally.
type Table struct {
	mu sync.RWMutex

	name          string
	partitionBits uint8
	capacity      int
	partitions    []*partition.Partition

	// saveMu serializes Save calls, which only hold the read lock.
	saveMu     sync.Mutex
	generation atomic.Uint64

	opts   options
	logger *Logger
	rc     *resource.Controller
	cache  *lru.Cache[string, any]
}

// New creates an empty table sized for expectedItemCount rows.
//
// The table gets 2^n partitions where n = ceil(log2(expected * 1.05)) - 16,
// clamped to [0, MaxPartitionBits], so every partition stays below
// partition.MaxItems rows when the estimate holds.
func New(name string, expectedItemCount int, optFns ...Option) *Table {
	o := applyOptions(optFns)
	bits := partitionBits(expectedItemCount)

	rc := resource.NewController(resource.Config{
		MaxConcurrentIO:    int64(o.parallelism),
		IOLimitBytesPerSec: o.ioBytesPerSec,
	})

	t := &Table{
		name:          name,
		partitionBits: bits,
		capacity:      initialCapacity(expectedItemCount, bits),
		partitions:    newPartitions(bits),
		opts:          o,
		logger:        o.logger.WithTable(name),
		rc:            rc,
	}
	if o.queryCacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		t.cache, _ = lru.New[string, any](o.queryCacheSize)
	}
	return t
}

func partitionBits(expected int) uint8 {
	if expected <= 0 {
		return 0
	}
	bits := int(math.Ceil(math.Log2(float64(expected)*1.05))) - 16
	return uint8(min(max(bits, 0), MaxPartitionBits))
}

func initialCapacity(expected int, bits uint8) int {
	if expected <= 0 {
		return 0
	}
	perPartition := int(math.Ceil(float64(expected)*1.05)) >> bits
	return min(perPartition, partition.MaxItems)
}

func newPartitions(bits uint8) []*partition.Partition {
	masks := partition.BuildSet(bits)
	parts := make([]*partition.Partition, len(masks))
	for i, m := range masks {
		parts[i] = partition.New(m)
	}
	return parts
}

// Name returns the table name.
func (t *Table) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

// PartitionCount returns the number of partitions.
func (t *Table) PartitionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.partitions)
}

// Count returns the number of rows across all partitions.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, p := range t.partitions {
		n += p.Count()
	}
	return n
}

// Generation returns the generation of the last Save or Load, 0 for a table
// that was never persisted.
func (t *Table) Generation() uint64 {
	return t.generation.Load()
}

// ColumnDetails returns the columns of the table in declaration order.
func (t *Table) ColumnDetails() []column.Details {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.partitions[0].ColumnDetails()
}

// AddColumn adds a column to every partition. Re-adding an existing column
// updates its metadata, or alters it when the kind differs.
//
// Schema changes are validated on every partition before any partition is
// modified, so a failing change leaves the whole table unchanged.
func (t *Table) AddColumn(d column.Details) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidateLocked()
	return translateError(t.changeSchemaLocked(func(p *partition.Partition) (partition.SchemaChange, error) {
		return p.PrepareAddColumn(d, t.capacity)
	}))
}

// AlterColumn changes the metadata or kind of a column, converting stored
// values. A value that does not convert fails the change with a
// *partition.RowError.
func (t *Table) AlterColumn(d column.Details) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidateLocked()
	return translateError(t.changeSchemaLocked(func(p *partition.Partition) (partition.SchemaChange, error) {
		return p.PrepareAlterColumn(d)
	}))
}

// RemoveColumn drops a column from every partition.
func (t *Table) RemoveColumn(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidateLocked()
	return translateError(t.changeSchemaLocked(func(p *partition.Partition) (partition.SchemaChange, error) {
		return p.PrepareRemoveColumn(name)
	}))
}

// changeSchemaLocked prepares a change on every partition and applies it
// only when all of them accepted it.
func (t *Table) changeSchemaLocked(prepare func(p *partition.Partition) (partition.SchemaChange, error)) error {
	changes := make([]partition.SchemaChange, len(t.partitions))
	for i, p := range t.partitions {
		c, err := prepare(p)
		if err != nil {
			return t.partitionError(p, err)
		}
		changes[i] = c
	}
	for _, c := range changes {
		c.Apply()
	}
	return nil
}

func (t *Table) partitionError(p *partition.Partition, err error) error {
	if len(t.partitions) == 1 {
		return err
	}
	return &PartitionError{Partition: p.Mask().String(), cause: err}
}

// AddOrUpdate inserts the rows of values and updates rows whose ID already
// exists. Rows are routed by the hash of their ID; each partition receives
// its rows in input order.
//
// Every partition validates its share of the batch before writing, but a
// batch spanning several partitions is not atomic: when one partition
// rejects its rows, others may already have applied theirs. A
// *partition.RowError reports the row index within values.
func (t *Table) AddOrUpdate(ctx context.Context, values block.ReadOnly, opts partition.Options) error {
	start := time.Now()

	t.mu.Lock()
	touched, err := t.addOrUpdateLocked(ctx, values, opts)
	t.mu.Unlock()

	err = translateError(err)
	t.opts.metricsCollector.RecordAddOrUpdate(values.RowCount(), time.Since(start), err)
	t.logger.LogAddOrUpdate(ctx, values.RowCount(), touched, err)
	return err
}

func (t *Table) addOrUpdateLocked(ctx context.Context, values block.ReadOnly, opts partition.Options) (int, error) {
	if values.RowCount() == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.invalidateLocked()

	if len(t.partitions) == 1 {
		return 1, t.partitions[0].AddOrUpdate(values, opts)
	}

	if err := t.prepareColumnsLocked(values, opts); err != nil {
		return 0, err
	}
	idBlockCol, idCol, err := t.idColumnLocked(values)
	if err != nil {
		return 0, err
	}
	hashes, err := t.hashIDs(ctx, values, idBlockCol, idCol)
	if err != nil {
		return 0, err
	}

	groups := groupRows(hashes, t.partitionBits, len(t.partitions))
	touched := 0
	for _, g := range groups {
		if len(g) > 0 {
			touched++
		}
	}

	err = t.fanOut(ctx, t.opts.runParallel, len(t.partitions), func(_ context.Context, i int) error {
		rows := groups[i]
		if len(rows) == 0 {
			return nil
		}
		p := t.partitions[i]
		if err := p.AddOrUpdate(block.Select(values, rows), opts); err != nil {
			var re *partition.RowError
			if errors.As(err, &re) && re.Row >= 0 && re.Row < len(rows) {
				re.Row = rows[re.Row]
			}
			return t.partitionError(p, err)
		}
		return nil
	})
	return touched, err
}

// prepareColumnsLocked checks the batch columns against the schema, adding
// missing ones to every partition when requested. Creating them up front
// gives every partition the same kind, inferred from the whole batch.
func (t *Table) prepareColumnsLocked(values block.ReadOnly, opts partition.Options) error {
	schema := t.partitions[0]
	for bc := 0; bc < values.ColumnCount(); bc++ {
		name := values.Column(bc).Name
		if _, ok := schema.Column(name); ok {
			continue
		}
		if !opts.AddMissingColumns {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		d := column.Details{Name: name, Kind: partition.InferKind(values, bc)}
		if err := t.changeSchemaLocked(func(p *partition.Partition) (partition.SchemaChange, error) {
			return p.PrepareAddColumn(d, t.capacity)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) idColumnLocked(values block.ReadOnly) (int, column.Details, error) {
	schema := t.partitions[0]
	idName := schema.IDColumn()
	if idName == "" {
		return -1, column.Details{}, ErrMissingIDColumn
	}
	for bc := 0; bc < values.ColumnCount(); bc++ {
		c, ok := schema.Column(values.Column(bc).Name)
		if ok && strings.EqualFold(c.Details().Name, idName) {
			return bc, c.Details(), nil
		}
	}
	return -1, column.Details{}, fmt.Errorf("%w: batch does not contain %q", ErrMissingIDColumn, idName)
}

// hashIDs computes the routing hash of every row ID in parallel chunks.
func (t *Table) hashIDs(ctx context.Context, values block.ReadOnly, idBlockCol int, idCol column.Details) ([]uint32, error) {
	rows := values.RowCount()
	hashes := make([]uint32, rows)
	chunks := max(1, min(t.opts.parallelism, (rows+hashChunkSize-1)/hashChunkSize))
	size := (rows + chunks - 1) / chunks

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < rows; lo += size {
		hi := min(lo+size, rows)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for r := lo; r < hi; r++ {
				h, err := partition.HashID(values.Value(r, idBlockCol), idCol.Kind)
				if err != nil {
					return fmt.Errorf("row %d: column %q: %w", r, idCol.Name, err)
				}
				hashes[r] = h
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// groupRows buckets row indexes by partition with a stable counting sort,
// so every bucket lists its rows in input order.
func groupRows(hashes []uint32, bits uint8, n int) [][]int {
	owner := make([]int, len(hashes))
	offsets := make([]int, n+1)
	for r, h := range hashes {
		i := partition.IndexOfHash(h, bits)
		owner[r] = i
		offsets[i+1]++
	}
	for i := 1; i <= n; i++ {
		offsets[i] += offsets[i-1]
	}

	order := make([]int, len(hashes))
	next := slices.Clone(offsets[:n])
	for r, i := range owner {
		order[next[i]] = r
		next[i]++
	}

	groups := make([][]int, n)
	for i := range groups {
		groups[i] = order[offsets[i]:offsets[i+1]:offsets[i+1]]
	}
	return groups
}

// Delete removes every row matched by where and returns the number of
// removed rows with the merged diagnostics of all partitions. A partition
// whose predicate evaluation fails deletes nothing.
func (t *Table) Delete(ctx context.Context, where partition.Predicate) (execution.DeleteResult, error) {
	start := time.Now()

	t.mu.Lock()
	res, err := t.deleteLocked(ctx, where)
	t.mu.Unlock()

	err = translateError(err)
	t.opts.metricsCollector.RecordDelete(res.Count, time.Since(start), err)
	t.logger.LogDelete(ctx, res.Count, err)
	return res, err
}

func (t *Table) deleteLocked(ctx context.Context, where partition.Predicate) (execution.DeleteResult, error) {
	res := execution.NewDeleteResult()
	if where == nil {
		return res, errors.New("arriba: delete requires a predicate")
	}
	t.invalidateLocked()

	partials := make([]execution.DeleteResult, len(t.partitions))
	err := t.fanOut(ctx, t.opts.runParallel, len(t.partitions), func(_ context.Context, i int) error {
		partials[i] = t.partitions[i].Delete(where)
		return nil
	})
	for _, p := range partials {
		if p.Details != nil {
			res.Merge(p)
		}
	}
	return res, err
}

// VerifyConsistency checks every partition and the table layout: partition
// masks, equal schemas and per-partition invariants. Problems are reported
// on the returned details; the error is only set when ctx is done.
func (t *Table) VerifyConsistency(ctx context.Context, level execution.Level) (*execution.Details, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	masks := partition.BuildSet(t.partitionBits)
	details := execution.New()
	if len(masks) != len(t.partitions) {
		details.AddError("table has %d partitions, expected %d", len(t.partitions), len(masks))
	}

	schema := t.partitions[0].ColumnDetails()
	partials := make([]*execution.Details, len(t.partitions))
	err := t.fanOut(ctx, true, len(t.partitions), func(_ context.Context, i int) error {
		p := t.partitions[i]
		d := execution.New()
		if i < len(masks) && p.Mask() != masks[i] {
			d.AddError("partition %d has mask %q, expected %q", i, p.Mask(), masks[i])
		}
		if !sameSchema(schema, p.ColumnDetails()) {
			d.AddError("partition %q: schema differs from partition %q", p.Mask(), t.partitions[0].Mask())
		}
		p.VerifyConsistency(level, d)
		partials[i] = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, d := range partials {
		details.Merge(d)
	}
	return details, nil
}

func sameSchema(a, b []column.Details) bool {
	return slices.EqualFunc(a, b, func(x, y column.Details) bool {
		return strings.EqualFold(x.Name, y.Name) && x.Kind == y.Kind && x.IsPrimaryKey == y.IsPrimaryKey
	})
}

// fanOut calls fn for partition indexes 0..n-1, concurrently up to the
// configured parallelism when parallel is set. It stops scheduling once ctx
// is done or fn fails and returns the first error.
func (t *Table) fanOut(ctx context.Context, parallel bool, n int, fn func(ctx context.Context, i int) error) error {
	if !parallel || n == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.parallelism)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (t *Table) invalidateLocked() {
	if t.cache != nil {
		t.cache.Purge()
	}
}
