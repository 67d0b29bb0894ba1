package partition

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/arriba/block"
	"github.com/hupe1980/arriba/column"
	"github.com/hupe1980/arriba/execution"
	"github.com/hupe1980/arriba/shortset"
	"github.com/hupe1980/arriba/value"
)

// MaxItems is the number of rows a single partition can hold. LIDs must fit
// a ShortSet, whose capacity is bounded by 65,535.
const MaxItems = 65534

// Options control AddOrUpdate.
type Options struct {
	// AddMissingColumns creates columns referenced by a batch that the
	// partition does not have yet instead of failing.
	AddMissingColumns bool
}

// Predicate selects rows of a partition.
type Predicate interface {
	// Evaluate ORs the LIDs of matching rows into result. Semantic problems
	// are recorded on details.
	Evaluate(p *Partition, result *shortset.ShortSet, details *execution.Details)
}

// Partition is one shard of a table: up to MaxItems rows stored column-wise
// and addressed by LID.
//
// A Partition is not safe for concurrent use; the owning table serializes
// access.
type Partition struct {
	mask     Mask
	count    int
	columns  []column.Column
	idColumn int
}

// New creates an empty partition owning the hashes matched by mask.
func New(mask Mask) *Partition {
	return &Partition{mask: mask, idColumn: -1}
}

// Mask returns the hash range of the partition.
func (p *Partition) Mask() Mask { return p.mask }

// Count returns the number of rows.
func (p *Partition) Count() int { return p.count }

// IDColumn returns the name of the primary key column, or "" when the
// partition has none.
func (p *Partition) IDColumn() string {
	if p.idColumn < 0 {
		return ""
	}
	return p.columns[p.idColumn].Details().Name
}

// Column looks a column up by name or alias.
func (p *Partition) Column(name string) (column.Column, bool) {
	if i := p.indexOf(name); i >= 0 {
		return p.columns[i], true
	}
	return nil, false
}

// ColumnDetails returns the details of every column in declaration order.
func (p *Partition) ColumnDetails() []column.Details {
	out := make([]column.Details, len(p.columns))
	for i, c := range p.columns {
		out[i] = c.Details()
	}
	return out
}

func (p *Partition) indexOf(name string) int {
	for i, c := range p.columns {
		if strings.EqualFold(c.Details().Name, name) {
			return i
		}
	}
	for i, c := range p.columns {
		if c.Details().Matches(name) {
			return i
		}
	}
	return -1
}

// SchemaChange is a validated column change that has not been applied yet.
// Apply cannot fail, so a caller can prepare a change on several partitions
// and apply it only once every partition accepted it.
type SchemaChange struct {
	apply func()
}

// Apply performs the change. The partition must not have been modified
// since the change was prepared.
func (c SchemaChange) Apply() {
	if c.apply != nil {
		c.apply()
	}
}

// AddColumn registers a column. Re-adding an existing column with the same
// kind updates its metadata; a different kind alters the column.
func (p *Partition) AddColumn(d column.Details, initialCapacity int) error {
	c, err := p.PrepareAddColumn(d, initialCapacity)
	if err != nil {
		return err
	}
	c.Apply()
	return nil
}

// PrepareAddColumn validates AddColumn without modifying the partition.
func (p *Partition) PrepareAddColumn(d column.Details, initialCapacity int) (SchemaChange, error) {
	if err := d.Validate(); err != nil {
		return SchemaChange{}, err
	}

	if d.IsPrimaryKey && p.idColumn >= 0 && !strings.EqualFold(p.IDColumn(), d.Name) {
		return SchemaChange{}, fmt.Errorf("%w: %q, cannot add %q", ErrDuplicatePrimaryKey, p.IDColumn(), d.Name)
	}

	if i := p.indexOf(d.Name); i >= 0 && strings.EqualFold(p.columns[i].Details().Name, d.Name) {
		if p.columns[i].Kind() != d.Kind {
			return p.PrepareAlterColumn(d)
		}
		return p.prepareDetails(i, d)
	}

	c, err := column.New(d, max(initialCapacity, p.count))
	if err != nil {
		return SchemaChange{}, err
	}
	c.SetSize(p.count)
	c.Commit()
	return SchemaChange{apply: func() {
		p.columns = append(p.columns, c)
		if d.IsPrimaryKey {
			p.idColumn = len(p.columns) - 1
		}
	}}, nil
}

func (p *Partition) prepareDetails(i int, d column.Details) (SchemaChange, error) {
	c := p.columns[i]
	wasID := i == p.idColumn
	if p.count > 0 {
		switch {
		case wasID && !d.IsPrimaryKey:
			return SchemaChange{}, fmt.Errorf("%w: %q holds %d rows", ErrIDColumnInUse, c.Details().Name, p.count)
		case !wasID && d.IsPrimaryKey:
			if err := p.checkIDs(c); err != nil {
				return SchemaChange{}, err
			}
		}
	}
	return SchemaChange{apply: func() {
		c.UpdateDetails(d)
		switch {
		case d.IsPrimaryKey:
			p.idColumn = i
		case wasID:
			p.idColumn = -1
		}
	}}, nil
}

// AlterColumn changes the kind (and metadata) of an existing column,
// converting every stored value. A value that does not convert fails the
// change with a *RowError whose Row is the LID of the value, and the column
// is left unchanged.
func (p *Partition) AlterColumn(d column.Details) error {
	c, err := p.PrepareAlterColumn(d)
	if err != nil {
		return err
	}
	c.Apply()
	return nil
}

// PrepareAlterColumn converts the column without modifying the partition.
func (p *Partition) PrepareAlterColumn(d column.Details) (SchemaChange, error) {
	if err := d.Validate(); err != nil {
		return SchemaChange{}, err
	}
	i := p.indexOf(d.Name)
	if i < 0 {
		return SchemaChange{}, fmt.Errorf("%w: %q", ErrUnknownColumn, d.Name)
	}
	if d.IsPrimaryKey && p.idColumn >= 0 && p.idColumn != i {
		return SchemaChange{}, fmt.Errorf("%w: %q, cannot alter %q", ErrDuplicatePrimaryKey, p.IDColumn(), d.Name)
	}

	src := p.columns[i]
	d.Name = src.Details().Name
	if src.Kind() == d.Kind {
		return p.prepareDetails(i, d)
	}

	if i == p.idColumn && p.count > 0 && !d.IsPrimaryKey {
		return SchemaChange{}, fmt.Errorf("%w: %q holds %d rows", ErrIDColumnInUse, d.Name, p.count)
	}

	converted, err := column.Convert(src, d)
	if err != nil {
		var ce *column.ConvertError
		if errors.As(err, &ce) {
			return SchemaChange{}, p.rowError(ce.LID, d.Name, ce.Value, ce.Unwrap())
		}
		return SchemaChange{}, err
	}

	if d.IsPrimaryKey && p.count > 0 {
		if err := p.checkIDs(converted); err != nil {
			return SchemaChange{}, err
		}
	}

	return SchemaChange{apply: func() {
		p.columns[i] = converted
		switch {
		case d.IsPrimaryKey:
			p.idColumn = i
		case i == p.idColumn:
			p.idColumn = -1
		}
	}}, nil
}

func (p *Partition) rowError(lid int, columnName string, v value.Value, cause error) *RowError {
	e := &RowError{Row: lid, Column: columnName, Value: v.Text(), cause: cause}
	if p.idColumn >= 0 {
		e.ID = p.columns[p.idColumn].Get(lid).Text()
	}
	return e
}

// checkIDs verifies that a candidate ID column is unique and still routes
// every row to this partition.
func (p *Partition) checkIDs(c column.Column) error {
	seen := make(map[string]struct{}, c.Count())
	for lid := 0; lid < c.Count(); lid++ {
		id := c.Get(lid)
		if isNaN(id) {
			return p.rowError(lid, c.Details().Name, id, ErrNaNID)
		}
		key := id.Text()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate ID %q", ErrIDColumnInUse, key)
		}
		seen[key] = struct{}{}
		if h := value.Hash(id); !p.mask.Matches(h) {
			return &RoutingError{ID: id.Text(), Hash: h, Mask: p.mask}
		}
	}
	return nil
}

// RemoveColumn drops a column. The ID column can only be removed from an
// empty partition.
func (p *Partition) RemoveColumn(name string) error {
	c, err := p.PrepareRemoveColumn(name)
	if err != nil {
		return err
	}
	c.Apply()
	return nil
}

// PrepareRemoveColumn validates RemoveColumn without modifying the
// partition.
func (p *Partition) PrepareRemoveColumn(name string) (SchemaChange, error) {
	i := p.indexOf(name)
	if i < 0 {
		return SchemaChange{}, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	if i == p.idColumn && p.count > 0 {
		return SchemaChange{}, fmt.Errorf("%w: %q holds %d rows", ErrIDColumnInUse, name, p.count)
	}
	return SchemaChange{apply: func() {
		if i == p.idColumn {
			p.idColumn = -1
		}
		p.columns = append(p.columns[:i], p.columns[i+1:]...)
		if p.idColumn > i {
			p.idColumn--
		}
	}}, nil
}

// AddOrUpdate inserts new rows and updates rows whose ID already exists.
//
// The whole batch is validated (ID conversion, routing, capacity and value
// conversion) before any row is written, so a failing batch leaves stored
// rows untouched. Rows with the same ID in one batch apply in batch order.
func (p *Partition) AddOrUpdate(values block.ReadOnly, opts Options) error {
	rows := values.RowCount()
	if rows == 0 {
		return nil
	}

	targets, err := p.mapColumns(values, opts)
	if err != nil {
		return err
	}

	idBlockCol := -1
	for bc, target := range targets {
		if target == p.idColumn {
			idBlockCol = bc
			break
		}
	}
	if idBlockCol < 0 {
		return fmt.Errorf("%w: batch does not contain %q", ErrMissingIDColumn, p.IDColumn())
	}

	lids, added, err := p.resolveLIDs(values, idBlockCol)
	if err != nil {
		return err
	}

	converted, err := p.convertValues(values, targets, idBlockCol)
	if err != nil {
		return err
	}

	// Validation is complete; nothing below can fail.
	newCount := p.count + added
	for _, c := range p.columns {
		c.SetSize(newCount)
	}
	idCol := p.columns[p.idColumn]
	for r, lid := range lids {
		if lid >= p.count {
			_ = idCol.Set(lid, converted[idBlockCol][r])
		}
	}
	p.count = newCount

	for bc, target := range targets {
		if bc == idBlockCol {
			continue
		}
		c := p.columns[target]
		for r, lid := range lids {
			_ = c.Set(lid, converted[bc][r])
		}
	}

	for _, c := range p.columns {
		c.Commit()
	}
	return nil
}

// mapColumns returns, per batch column, the index of the partition column it
// writes to.
func (p *Partition) mapColumns(values block.ReadOnly, opts Options) ([]int, error) {
	targets := make([]int, values.ColumnCount())
	for bc := range targets {
		spec := values.Column(bc)
		i := p.indexOf(spec.Name)
		if i < 0 {
			if !opts.AddMissingColumns {
				return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, spec.Name)
			}
			d := column.Details{Name: spec.Name, Kind: InferKind(values, bc)}
			if err := p.AddColumn(d, values.RowCount()); err != nil {
				return nil, err
			}
			i = len(p.columns) - 1
		}
		targets[bc] = i
	}
	if p.idColumn < 0 {
		return nil, ErrMissingIDColumn
	}
	return targets, nil
}

// InferKind returns the kind a missing column is created with: the declared
// kind of the batch column, else the kind of its first non-null value, else
// string.
func InferKind(values block.ReadOnly, col int) value.Kind {
	if k := values.Column(col).Kind; k != value.KindNull {
		return k
	}
	for r := 0; r < values.RowCount(); r++ {
		if v := values.Value(r, col); !v.IsNull() {
			return v.Kind()
		}
	}
	return value.KindString
}

// HashID converts a raw row identifier to the ID column kind and returns
// its routing hash. Equal IDs hash equally whatever their input type.
func HashID(raw value.Value, idKind value.Kind) (uint32, error) {
	if raw.IsNull() {
		return 0, ErrNullID
	}
	id, err := value.Convert(raw, idKind)
	if err != nil {
		return 0, err
	}
	if isNaN(id) {
		return 0, ErrNaNID
	}
	return value.Hash(id), nil
}

func isNaN(id value.Value) bool {
	f, ok := id.AsFloat()
	return ok && math.IsNaN(f)
}

// resolveLIDs maps every row to a LID. New IDs get LIDs past the current
// count in first-seen order; repeated new IDs share one LID.
func (p *Partition) resolveLIDs(values block.ReadOnly, idBlockCol int) ([]int, int, error) {
	idCol := p.columns[p.idColumn]
	idName := idCol.Details().Name
	lids := make([]int, values.RowCount())
	pending := make(map[string]int)

	for r := range lids {
		raw := values.Value(r, idBlockCol)
		if raw.IsNull() {
			return nil, 0, &RowError{Row: r, Column: idName, cause: ErrNullID}
		}
		id, err := value.Convert(raw, idCol.Kind())
		if err != nil {
			return nil, 0, &RowError{Row: r, ID: raw.Text(), Column: idName, Value: raw.Text(), cause: err}
		}
		if isNaN(id) {
			return nil, 0, &RowError{Row: r, ID: raw.Text(), Column: idName, Value: raw.Text(), cause: ErrNaNID}
		}

		if lid, ok := idCol.TryGetIndexOf(id); ok {
			lids[r] = lid
			continue
		}

		key := id.Text()
		if lid, ok := pending[key]; ok {
			lids[r] = lid
			continue
		}

		if h := value.Hash(id); !p.mask.Matches(h) {
			return nil, 0, &RoutingError{ID: key, Hash: h, Mask: p.mask}
		}
		lid := p.count + len(pending)
		if lid >= MaxItems {
			return nil, 0, fmt.Errorf("%w: partition %q cannot hold more than %d rows", ErrPartitionFull, p.mask, MaxItems)
		}
		pending[key] = lid
		lids[r] = lid
	}
	return lids, len(pending), nil
}

// convertValues converts every cell of the batch to its target column kind.
func (p *Partition) convertValues(values block.ReadOnly, targets []int, idBlockCol int) ([][]value.Value, error) {
	out := make([][]value.Value, len(targets))
	for bc, target := range targets {
		c := p.columns[target]
		kind := c.Kind()
		conv := make([]value.Value, values.RowCount())
		for r := range conv {
			v := values.Value(r, bc)
			if v.IsNull() {
				continue
			}
			cv, err := value.Convert(v, kind)
			if err != nil {
				return nil, &RowError{
					Row:    r,
					ID:     values.Value(r, idBlockCol).Text(),
					Column: c.Details().Name,
					Value:  v.Text(),
					cause:  err,
				}
			}
			conv[r] = cv
		}
		out[bc] = conv
	}
	return out, nil
}

// Delete removes every row matched by where using swap compaction: matched
// LIDs are visited from highest to lowest and each is overwritten with the
// current last row. Row order is not preserved.
func (p *Partition) Delete(where Predicate) execution.DeleteResult {
	res := execution.NewDeleteResult()
	if p.count == 0 {
		return res
	}

	matches := shortset.New(p.count)
	where.Evaluate(p, matches, res.Details)
	if !res.Details.Succeeded {
		return res
	}

	res.Count = matches.Count()
	if res.Count == 0 {
		return res
	}

	last := p.count - 1
	for lid := range matches.Backward() {
		if int(lid) != last {
			for _, c := range p.columns {
				c.Move(int(lid), last)
			}
		}
		last--
	}

	p.count = last + 1
	for _, c := range p.columns {
		c.SetSize(p.count)
		c.Commit()
	}
	return res
}

// VerifyConsistency records structural problems on details. It never
// fails.
func (p *Partition) VerifyConsistency(level execution.Level, details *execution.Details) {
	for _, c := range p.columns {
		if c.Count() != p.count {
			details.AddError("partition %q: column %q has %d rows, expected %d",
				p.mask, c.Details().Name, c.Count(), p.count)
		}
		c.VerifyConsistency(level, details)
	}

	if p.count == 0 {
		return
	}
	if p.idColumn < 0 {
		details.AddError("partition %q: %d rows but no ID column", p.mask, p.count)
		return
	}

	idCol := p.columns[p.idColumn]
	for lid := 0; lid < min(p.count, idCol.Count()); lid++ {
		id := idCol.Get(lid)
		if h := value.Hash(id); !p.mask.Matches(h) {
			details.AddError("partition %q: %v", p.mask, &RoutingError{ID: id.Text(), Hash: h, Mask: p.mask})
		}
	}
}
