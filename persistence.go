package arriba

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/arriba/blobstore"
	"github.com/hupe1980/arriba/column"
	"github.com/hupe1980/arriba/internal/binfmt"
	"github.com/hupe1980/arriba/internal/resource"
	"github.com/hupe1980/arriba/partition"
)

const (
	// TablesDirectory is the store prefix all tables are saved under.
	TablesDirectory = "Tables"
	// PartitionFileExt is the extension of partition files. Files being
	// written carry an additional blobstore.TempSuffix and are ignored by
	// Load.
	PartitionFileExt = ".bin"
	// ManifestFile is the name of the table manifest.
	ManifestFile = "manifest.json"

	lockFile        = "table.lock"
	manifestVersion = 1
)

// Manifest describes a saved table. Partition files are authoritative; the
// manifest records the layout and generation of the last complete Save so
// that Load can pick the right files after an interrupted one.
type Manifest struct {
	Version       int                 `json:"version"`
	Name          string              `json:"name"`
	Generation    uint64              `json:"generation"`
	PartitionBits uint8               `json:"partitionBits"`
	Compression   string              `json:"compression"`
	Rows          int                 `json:"rows"`
	Columns       []ManifestColumn    `json:"columns"`
	Partitions    []ManifestPartition `json:"partitions"`
	SavedAt       time.Time           `json:"savedAt"`
}

// ManifestColumn is one column of a Manifest.
type ManifestColumn struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	PrimaryKey bool   `json:"primaryKey,omitempty"`
	Indexed    bool   `json:"indexed,omitempty"`
	Alias      string `json:"alias,omitempty"`
}

// ManifestPartition is one partition file of a Manifest.
type ManifestPartition struct {
	Mask     string `json:"mask"`
	File     string `json:"file"`
	Rows     int    `json:"rows"`
	Bytes    int64  `json:"bytes"`
	Checksum uint32 `json:"crc32c"`
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\:`) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return nil
}

// TableDirectory returns the store prefix of the table name.
func TableDirectory(name string) string {
	return blobstore.Join(TablesDirectory, name)
}

func partitionFileName(m partition.Mask) string {
	return m.String() + PartitionFileExt
}

type ioStats struct {
	partitions int
	rows       int
	bytes      int64
	generation uint64
}

// Save writes every partition to <store>/Tables/<name>/<mask>.bin followed
// by the manifest, then removes partition files of masks the table no
// longer has.
//
// Each file is replaced atomically. Save holds the read lock, so queries
// proceed while it runs; concurrent Saves of one table are serialized. When
// the store implements blobstore.Committer, Save first commits the next
// generation and fails with ErrConflict if another writer saved the table
// since it was loaded. A Save that fails after committing keeps the
// committed generation, so the next Save of this table succeeds.
//
// Save fails with ErrCorrupt instead of writing partitions whose schemas
// differ.
func (t *Table) Save(ctx context.Context) error {
	start := time.Now()

	t.saveMu.Lock()
	t.mu.RLock()
	stats, err := t.saveLocked(ctx)
	t.mu.RUnlock()
	t.saveMu.Unlock()

	err = translateError(err)
	t.opts.metricsCollector.RecordSave(stats.partitions, stats.bytes, time.Since(start), err)
	t.logger.LogSave(ctx, stats.partitions, stats.bytes, stats.generation, err)
	return err
}

func (t *Table) saveLocked(ctx context.Context) (stats ioStats, err error) {
	if err := validateName(t.name); err != nil {
		return stats, err
	}
	dir := TableDirectory(t.name)
	store := t.opts.store

	unlock, err := lockStore(ctx, store, dir)
	if err != nil {
		return stats, err
	}
	defer func() { err = errors.Join(err, unlock()) }()

	if err := checkSchemas(t.partitions); err != nil {
		return stats, err
	}

	next, committed, err := t.commitGeneration(ctx, dir)
	if err != nil {
		return stats, err
	}
	if committed {
		// The generation is taken even if the files below fail to write.
		defer func() {
			if err != nil {
				t.generation.Store(next)
			}
		}()
	}

	files := make([]ManifestPartition, len(t.partitions))
	err = t.fanOut(ctx, true, len(t.partitions), func(ctx context.Context, i int) error {
		info, err := t.writePartition(ctx, dir, t.partitions[i])
		if err != nil {
			return fmt.Errorf("%s: %w", info.File, err)
		}
		files[i] = info
		return nil
	})
	if err != nil {
		return stats, err
	}

	m := t.manifestLocked(next, files)
	data, err := t.opts.codec.Marshal(m)
	if err != nil {
		return stats, err
	}
	if err := blobstore.Put(ctx, store, blobstore.Join(dir, ManifestFile), data); err != nil {
		return stats, err
	}

	if err := t.removeStaleFiles(ctx, dir, files); err != nil {
		return stats, err
	}

	t.generation.Store(next)

	stats.partitions = len(files)
	stats.rows = m.Rows
	stats.generation = next
	for _, f := range files {
		stats.bytes += f.Bytes
	}
	return stats, nil
}

func lockStore(ctx context.Context, store blobstore.Store, dir string) (func() error, error) {
	l, ok := store.(blobstore.Locker)
	if !ok {
		return func() error { return nil }, nil
	}
	return l.Lock(ctx, blobstore.Join(dir, lockFile))
}

// commitGeneration returns the generation this save writes and whether it
// was recorded with a Committer, which happens before any file is written.
func (t *Table) commitGeneration(ctx context.Context, dir string) (uint64, bool, error) {
	loaded := t.generation.Load()
	c, ok := t.opts.store.(blobstore.Committer)
	if !ok {
		return loaded + 1, false, nil
	}

	current, err := c.Generation(ctx, dir)
	if err != nil {
		return 0, false, err
	}
	if current > loaded {
		return 0, false, fmt.Errorf("%w: generation %d was committed after %d", ErrConflict, current, loaded)
	}
	next := loaded + 1
	if err := c.Commit(ctx, dir, next); err != nil {
		return 0, false, err
	}
	return next, true, nil
}

// committedGeneration returns the generation recorded by a Committer store
// when it is ahead of the manifest, which happens after a Save failed
// between committing and writing the manifest.
func (t *Table) committedGeneration(ctx context.Context, dir string, manifest uint64) (uint64, error) {
	c, ok := t.opts.store.(blobstore.Committer)
	if !ok {
		return manifest, nil
	}
	current, err := c.Generation(ctx, dir)
	if err != nil {
		return 0, err
	}
	if current > manifest {
		t.logger.WarnContext(ctx, "committed generation is ahead of manifest",
			"committed", current, "manifest", manifest)
		return current, nil
	}
	return manifest, nil
}

// checkSchemas fails when the partitions do not share one schema.
func checkSchemas(parts []*partition.Partition) error {
	schema := parts[0].ColumnDetails()
	for _, p := range parts[1:] {
		if !sameSchema(schema, p.ColumnDetails()) {
			return fmt.Errorf("%w: partition %q schema differs from partition %q", ErrCorrupt, p.Mask(), parts[0].Mask())
		}
	}
	return nil
}

func (t *Table) writePartition(ctx context.Context, dir string, p *partition.Partition) (ManifestPartition, error) {
	info := ManifestPartition{
		Mask: p.Mask().String(),
		File: partitionFileName(p.Mask()),
		Rows: p.Count(),
	}

	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return info, err
	}
	payload := buf.Bytes()
	info.Checksum = binfmt.CRC32C(payload)

	if err := t.rc.AcquireIO(ctx); err != nil {
		return info, err
	}
	defer t.rc.ReleaseIO()

	reserved, err := t.rc.AcquireBuffer(ctx, int64(len(payload)))
	if err != nil {
		return info, err
	}
	defer t.rc.ReleaseBuffer(reserved)

	w, err := t.opts.store.Create(ctx, blobstore.Join(dir, info.File))
	if err != nil {
		return info, err
	}
	cw := &countingWriter{w: resource.NewRateLimitedWriter(ctx, w, t.rc)}
	if err := binfmt.Encode(cw, payload, t.opts.compression); err != nil {
		return info, errors.Join(err, w.Abort())
	}
	if err := w.Close(); err != nil {
		return info, err
	}
	info.Bytes = cw.n
	return info, nil
}

func (t *Table) manifestLocked(generation uint64, files []ManifestPartition) *Manifest {
	m := &Manifest{
		Version:       manifestVersion,
		Name:          t.name,
		Generation:    generation,
		PartitionBits: t.partitionBits,
		Compression:   t.opts.compression.String(),
		Partitions:    files,
		SavedAt:       time.Now().UTC(),
	}
	for _, f := range files {
		m.Rows += f.Rows
	}
	for _, d := range t.partitions[0].ColumnDetails() {
		m.Columns = append(m.Columns, ManifestColumn{
			Name:       d.Name,
			Kind:       d.Kind.String(),
			PrimaryKey: d.IsPrimaryKey,
			Indexed:    d.Indexed,
			Alias:      d.Alias,
		})
	}
	return m
}

// removeStaleFiles deletes partition files of masks that are not part of
// the current layout, left behind when the partition count changed.
func (t *Table) removeStaleFiles(ctx context.Context, dir string, current []ManifestPartition) error {
	names, err := t.opts.store.List(ctx, blobstore.Join(dir, ""))
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(current))
	for _, f := range current {
		keep[f.File] = struct{}{}
	}

	var errs []error
	for _, name := range names {
		base := path.Base(name)
		if !strings.HasSuffix(base, PartitionFileExt) {
			continue
		}
		if _, ok := keep[base]; ok {
			continue
		}
		t.logger.DebugContext(ctx, "removing stale partition file", "file", name)
		if err := t.opts.store.Delete(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load replaces the table's contents with the table saved under name and
// renames the table to name.
//
// Only files ending in .bin are read; temporary files of an interrupted
// Save are ignored. A name without any partition file loads as an empty
// table with a single partition. When a manifest is present it selects the
// partition layout and supplies the generation; disagreements between the
// manifest and the files are logged and the files win.
func (t *Table) Load(ctx context.Context, name string) error {
	start := time.Now()

	t.mu.Lock()
	stats, err := t.loadLocked(ctx, name)
	t.mu.Unlock()

	err = translateError(err)
	t.opts.metricsCollector.RecordLoad(stats.partitions, stats.bytes, time.Since(start), err)
	t.logger.LogLoad(ctx, stats.partitions, stats.rows, err)
	return err
}

// Load creates a table from the files saved under name.
func Load(ctx context.Context, name string, optFns ...Option) (*Table, error) {
	t := New(name, 0, optFns...)
	if err := t.Load(ctx, name); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) loadLocked(ctx context.Context, name string) (stats ioStats, err error) {
	if err := validateName(name); err != nil {
		return stats, err
	}
	dir := TableDirectory(name)
	store := t.opts.store

	unlock, err := lockStore(ctx, store, dir)
	if err != nil {
		return stats, err
	}
	defer func() { err = errors.Join(err, unlock()) }()

	files, err := t.listPartitionFiles(ctx, dir)
	if err != nil {
		return stats, err
	}
	m, err := t.readManifest(ctx, dir)
	if err != nil {
		return stats, err
	}

	var generation uint64
	if m != nil {
		generation = m.Generation
	}
	generation, err = t.committedGeneration(ctx, dir, generation)
	if err != nil {
		return stats, err
	}

	if len(files) == 0 {
		t.replaceLocked(name, 0, newPartitions(0), generation)
		stats.partitions = 1
		return stats, nil
	}

	bits, err := chooseLayout(files, m)
	if err != nil {
		return stats, err
	}
	masks := partition.BuildSet(bits)
	for _, mask := range masks {
		if _, ok := files[mask]; !ok {
			return stats, fmt.Errorf("%w: missing partition file %q", ErrCorrupt, partitionFileName(mask))
		}
	}

	parts := make([]*partition.Partition, len(masks))
	read := make([]ManifestPartition, len(masks))
	err = t.fanOut(ctx, true, len(masks), func(ctx context.Context, i int) error {
		p, info, err := t.readPartition(ctx, files[masks[i]], masks[i])
		if err != nil {
			return fmt.Errorf("%s: %w", files[masks[i]], err)
		}
		parts[i], read[i] = p, info
		return nil
	})
	if err != nil {
		return stats, err
	}

	if err := checkSchemas(parts); err != nil {
		return stats, err
	}
	schema := parts[0].ColumnDetails()
	if m != nil {
		t.crossCheck(ctx, m, schema, read)
	}

	t.replaceLocked(name, bits, parts, generation)

	stats.partitions = len(parts)
	for _, info := range read {
		stats.rows += info.Rows
		stats.bytes += info.Bytes
	}
	return stats, nil
}

func (t *Table) replaceLocked(name string, bits uint8, parts []*partition.Partition, generation uint64) {
	t.name = name
	t.partitionBits = bits
	t.partitions = parts
	t.generation.Store(generation)
	t.logger = t.opts.logger.WithTable(name)
	t.invalidateLocked()
}

// listPartitionFiles maps the mask of every partition file under dir to
// its blob name.
func (t *Table) listPartitionFiles(ctx context.Context, dir string) (map[partition.Mask]string, error) {
	names, err := t.opts.store.List(ctx, blobstore.Join(dir, ""))
	if err != nil {
		return nil, err
	}
	files := make(map[partition.Mask]string)
	for _, name := range names {
		base := path.Base(name)
		if !strings.HasSuffix(base, PartitionFileExt) {
			continue
		}
		mask, err := partition.ParseMask(strings.TrimSuffix(base, PartitionFileExt))
		if err != nil {
			t.logger.WarnContext(ctx, "ignoring unrecognized partition file", "file", name, "error", err)
			continue
		}
		files[mask] = name
	}
	return files, nil
}

func (t *Table) readManifest(ctx context.Context, dir string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, t.opts.store, blobstore.Join(dir, ManifestFile))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := t.opts.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrCorrupt, err)
	}
	if m.Version > manifestVersion {
		return nil, fmt.Errorf("%w: manifest version %d", ErrCorrupt, m.Version)
	}
	return &m, nil
}

// chooseLayout picks the partition bit count to load. Files of several
// layouts coexist only when a Save that changed the partition count was
// interrupted; the manifest then names the last complete layout.
func chooseLayout(files map[partition.Mask]string, m *Manifest) (uint8, error) {
	var layouts []uint8
	for mask := range files {
		if !slices.Contains(layouts, mask.BitCount) {
			layouts = append(layouts, mask.BitCount)
		}
	}
	if m != nil && slices.Contains(layouts, m.PartitionBits) {
		return m.PartitionBits, nil
	}
	if len(layouts) == 1 {
		return layouts[0], nil
	}
	slices.Sort(layouts)
	return 0, fmt.Errorf("%w: partition files of several layouts %v and no manifest to choose", ErrCorrupt, layouts)
}

func (t *Table) readPartition(ctx context.Context, name string, mask partition.Mask) (*partition.Partition, ManifestPartition, error) {
	info := ManifestPartition{Mask: mask.String(), File: path.Base(name)}

	if err := t.rc.AcquireIO(ctx); err != nil {
		return nil, info, err
	}
	defer t.rc.ReleaseIO()

	rc, err := t.opts.store.Open(ctx, name)
	if err != nil {
		return nil, info, err
	}
	defer func() { _ = rc.Close() }()

	cr := &countingReader{r: resource.NewRateLimitedReader(ctx, rc, t.rc)}
	payload, err := binfmt.Decode(cr)
	if err != nil {
		return nil, info, err
	}

	p := partition.New(mask)
	if err := p.Decode(bytes.NewReader(payload)); err != nil {
		return nil, info, err
	}
	if p.Mask() != mask {
		return nil, info, fmt.Errorf("%w: file holds partition %q", ErrCorrupt, p.Mask())
	}

	info.Rows = p.Count()
	info.Bytes = cr.n
	info.Checksum = binfmt.CRC32C(payload)
	return p, info, nil
}

// crossCheck logs where the manifest disagrees with the loaded files,
// typically after a Save that was interrupted before writing the manifest.
func (t *Table) crossCheck(ctx context.Context, m *Manifest, schema []column.Details, read []ManifestPartition) {
	if len(m.Columns) != len(schema) {
		t.logger.WarnContext(ctx, "manifest column count differs from partition files",
			"manifest", len(m.Columns), "files", len(schema))
	}
	byMask := make(map[string]ManifestPartition, len(m.Partitions))
	for _, p := range m.Partitions {
		byMask[p.Mask] = p
	}
	for _, got := range read {
		want, ok := byMask[got.Mask]
		if !ok || want.Checksum != got.Checksum || want.Rows != got.Rows {
			t.logger.WarnContext(ctx, "partition file differs from manifest",
				"partition", got.Mask, "generation", m.Generation)
		}
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
