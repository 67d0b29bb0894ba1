package arriba

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arriba/blobstore"
	"github.com/hupe1980/arriba/codec"
	"github.com/hupe1980/arriba/internal/fs"
	"github.com/hupe1980/arriba/partition"
	"github.com/hupe1980/arriba/query"
	"github.com/hupe1980/arriba/testutil"
)

func filledTable(t *testing.T, expected, rows int, opts ...Option) *Table {
	t.Helper()
	tbl := newBugTable(t, expected, opts...)
	require.NoError(t, tbl.AddOrUpdate(context.Background(), testutil.NewRNG(42).Bugs(1, rows), partition.Options{}))
	return tbl
}

func readManifest(t *testing.T, store blobstore.Store, name string) Manifest {
	t.Helper()
	data, err := blobstore.ReadAll(context.Background(), store, blobstore.Join(TableDirectory(name), ManifestFile))
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, codec.Default.Unmarshal(data, &m))
	return m
}

func listTable(t *testing.T, store blobstore.Store, name string) []string {
	t.Helper()
	names, err := store.List(context.Background(), blobstore.Join(TableDirectory(name), ""))
	require.NoError(t, err)
	return names
}

// committingStore records generations in memory.
type committingStore struct {
	*blobstore.MemoryStore

	mu   sync.Mutex
	gens map[string]uint64
}

func newCommittingStore() *committingStore {
	return &committingStore{MemoryStore: blobstore.NewMemoryStore(), gens: make(map[string]uint64)}
}

func (s *committingStore) Generation(_ context.Context, key string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key], nil
}

func (s *committingStore) Commit(_ context.Context, key string, generation uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation <= s.gens[key] {
		return blobstore.ErrConflict
	}
	s.gens[key] = generation
	return nil
}

func TestSaveLoadLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	metrics := &BasicMetricsCollector{}
	tbl := filledTable(t, 300_000, 1500, WithDirectory(dir), WithMetricsCollector(metrics))

	require.NoError(t, tbl.Save(ctx))
	assert.Equal(t, uint64(1), tbl.Generation())

	for _, m := range partition.BuildSet(3) {
		assert.FileExists(t, filepath.Join(dir, TablesDirectory, "bugs", m.String()+PartitionFileExt))
	}
	assert.FileExists(t, filepath.Join(dir, TablesDirectory, "bugs", ManifestFile))

	loaded, err := Load(ctx, "bugs", WithDirectory(dir), WithMetricsCollector(metrics))
	require.NoError(t, err)

	assert.Equal(t, "bugs", loaded.Name())
	assert.Equal(t, 8, loaded.PartitionCount())
	assert.Equal(t, 1500, loaded.Count())
	assert.Equal(t, uint64(1), loaded.Generation())
	assert.Equal(t, tbl.ColumnDetails(), loaded.ColumnDetails())
	assert.Equal(t, selectAll(t, tbl), selectAll(t, loaded))
	verifyTable(t, loaded)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.SaveCount)
	assert.Equal(t, int64(1), stats.LoadCount)
	assert.Positive(t, stats.SaveBytes)
	assert.Equal(t, stats.SaveBytes, stats.LoadBytes)
}

func TestSaveLoadCompression(t *testing.T) {
	ctx := context.Background()
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD, CompressionSnappy} {
		t.Run(c.String(), func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			tbl := filledTable(t, 100_000, 800, WithStore(store), WithCompression(c))
			require.NoError(t, tbl.Save(ctx))

			assert.Equal(t, c.String(), readManifest(t, store, "bugs").Compression)

			loaded, err := Load(ctx, "bugs", WithStore(store))
			require.NoError(t, err)
			assert.Equal(t, selectAll(t, tbl), selectAll(t, loaded))
		})
	}
}

func TestSaveWritesManifest(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	tbl := filledTable(t, 100_000, 300, WithStore(store))

	require.NoError(t, tbl.Save(ctx))
	require.NoError(t, tbl.Save(ctx))

	m := readManifest(t, store, "bugs")
	assert.Equal(t, manifestVersion, m.Version)
	assert.Equal(t, "bugs", m.Name)
	assert.Equal(t, uint64(2), m.Generation)
	assert.Equal(t, uint8(1), m.PartitionBits)
	assert.Equal(t, 300, m.Rows)
	require.Len(t, m.Partitions, 2)
	assert.Equal(t, "0.bin", m.Partitions[0].File)
	assert.Equal(t, "1.bin", m.Partitions[1].File)
	require.Len(t, m.Columns, len(testutil.BugColumns))
	assert.Equal(t, "ID", m.Columns[0].Name)
	assert.True(t, m.Columns[0].PrimaryKey)
}

func TestLoadMissingTableIsEmpty(t *testing.T) {
	tbl := filledTable(t, 300_000, 100, WithStore(blobstore.NewMemoryStore()))

	require.NoError(t, tbl.Load(context.Background(), "nothing"))

	assert.Equal(t, "nothing", tbl.Name())
	assert.Equal(t, 1, tbl.PartitionCount())
	assert.Zero(t, tbl.Count())
	assert.Empty(t, tbl.ColumnDetails())
}

func TestLoadReplacesContents(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, filledTable(t, 0, 50, WithStore(store)).Save(ctx))

	tbl := filledTable(t, 300_000, 500, WithStore(store))
	tbl.name = "scratch"
	require.NoError(t, tbl.Load(ctx, "bugs"))

	assert.Equal(t, "bugs", tbl.Name())
	assert.Equal(t, 1, tbl.PartitionCount())
	assert.Equal(t, 50, tbl.Count())
}

func TestSaveRemovesStaleLayout(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, filledTable(t, 300_000, 400, WithStore(store)).Save(ctx))
	require.Len(t, listTable(t, store, "bugs"), 9)

	small := filledTable(t, 0, 40, WithStore(store))
	require.NoError(t, small.Save(ctx))

	assert.ElementsMatch(t, []string{
		"Tables/bugs/.bin",
		"Tables/bugs/manifest.json",
	}, listTable(t, store, "bugs"))

	loaded, err := Load(ctx, "bugs", WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.PartitionCount())
	assert.Equal(t, 40, loaded.Count())
}

func TestLoadUsesManifestLayout(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, filledTable(t, 300_000, 400, WithStore(store)).Save(ctx))

	// A partition file of another layout, as left by an interrupted Save.
	other := blobstore.NewMemoryStore()
	require.NoError(t, filledTable(t, 0, 10, WithStore(other)).Save(ctx))
	data, err := blobstore.ReadAll(ctx, other, "Tables/bugs/.bin")
	require.NoError(t, err)
	require.NoError(t, blobstore.Put(ctx, store, "Tables/bugs/.bin", data))

	loaded, err := Load(ctx, "bugs", WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.PartitionCount())
	assert.Equal(t, 400, loaded.Count())

	require.NoError(t, store.Delete(ctx, "Tables/bugs/manifest.json"))
	_, err = Load(ctx, "bugs", WithStore(store))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadMissingPartitionFile(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, filledTable(t, 300_000, 400, WithStore(store)).Save(ctx))
	require.NoError(t, store.Delete(ctx, "Tables/bugs/101.bin"))

	_, err := Load(ctx, "bugs", WithStore(store))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadCorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, filledTable(t, 0, 200, WithDirectory(dir), WithCompression(CompressionNone)).Save(ctx))
	file := filepath.Join(dir, TablesDirectory, "bugs", PartitionFileExt)

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	t.Run("flipped byte", func(t *testing.T) {
		broken := append([]byte(nil), data...)
		broken[len(broken)-1] ^= 0xff
		require.NoError(t, os.WriteFile(file, broken, 0o644))

		_, err := Load(ctx, "bugs", WithDirectory(dir))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("truncated", func(t *testing.T) {
		require.NoError(t, os.WriteFile(file, data[:len(data)/2], 0o644))

		_, err := Load(ctx, "bugs", WithDirectory(dir))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad manifest", func(t *testing.T) {
		require.NoError(t, os.WriteFile(file, data, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, TablesDirectory, "bugs", ManifestFile), []byte("{"), 0o644))

		_, err := Load(ctx, "bugs", WithDirectory(dir))
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestInterruptedSaveKeepsPreviousFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))

	tbl := filledTable(t, 300_000, 600, WithStore(store))
	require.NoError(t, tbl.Save(ctx))
	saved := selectAll(t, tbl)

	_, err := tbl.Delete(ctx, query.Equal("Priority", 0))
	require.NoError(t, err)
	require.NoError(t, tbl.AddOrUpdate(ctx, testutil.NewRNG(43).Bugs(601, 300), partition.Options{}))

	ffs.AddRule(PartitionFileExt+blobstore.TempSuffix, fs.Fault{FailAfterBytes: 32})
	err = tbl.Save(ctx)
	require.ErrorIs(t, err, fs.ErrInjected)
	assert.Equal(t, uint64(1), tbl.Generation())

	loaded, err := Load(ctx, "bugs", WithDirectory(dir))
	require.NoError(t, err)
	assert.Equal(t, saved, selectAll(t, loaded))
	assert.Equal(t, uint64(1), loaded.Generation())
}

func TestLoadIgnoresTemporaryAndForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tbl := filledTable(t, 300_000, 300, WithDirectory(dir))
	require.NoError(t, tbl.Save(ctx))

	tableDir := filepath.Join(dir, TablesDirectory, "bugs")
	require.NoError(t, os.WriteFile(filepath.Join(tableDir, "010"+PartitionFileExt+blobstore.TempSuffix), []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tableDir, "notes.bin"), []byte("junk"), 0o644))

	loaded, err := Load(ctx, "bugs", WithDirectory(dir))
	require.NoError(t, err)
	assert.Equal(t, selectAll(t, tbl), selectAll(t, loaded))
}

func TestSaveRetriesBlockedRename(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		store := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs), blobstore.WithRenameRetry(3, time.Millisecond))
		tbl := filledTable(t, 0, 100, WithStore(store))

		ffs.FailRenames(PartitionFileExt, 2)
		require.NoError(t, tbl.Save(ctx))

		// Three attempts for the partition file, one for the manifest.
		assert.Equal(t, 4, ffs.RenameCalls())
	})

	t.Run("gives up", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		store := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs), blobstore.WithRenameRetry(3, time.Millisecond))
		tbl := filledTable(t, 0, 100, WithStore(store))

		ffs.FailRenames(PartitionFileExt, 5)
		err := tbl.Save(ctx)
		assert.ErrorIs(t, err, os.ErrPermission)
	})
}

func TestSaveDetectsConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	store := newCommittingStore()

	first := filledTable(t, 100_000, 100, WithStore(store))
	require.NoError(t, first.Save(ctx))

	second, err := Load(ctx, "bugs", WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), second.Generation())

	require.NoError(t, first.Save(ctx))
	assert.Equal(t, uint64(2), first.Generation())

	err = second.Save(ctx)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, uint64(1), second.Generation())

	require.NoError(t, second.Load(ctx, "bugs"))
	require.NoError(t, second.Save(ctx))
	assert.Equal(t, uint64(3), second.Generation())
}

// flakyCommittingStore fails the next partition file it is asked to create.
type flakyCommittingStore struct {
	*committingStore

	failNext atomic.Bool
}

func (s *flakyCommittingStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if strings.HasSuffix(name, PartitionFileExt) && s.failNext.CompareAndSwap(true, false) {
		return nil, errTransient
	}
	return s.committingStore.Create(ctx, name)
}

var errTransient = errors.New("transient")

func TestSaveAfterFailedSaveWithCommitter(t *testing.T) {
	ctx := context.Background()

	t.Run("same table retries", func(t *testing.T) {
		store := &flakyCommittingStore{committingStore: newCommittingStore()}
		tbl := filledTable(t, 100_000, 100, WithStore(store))

		store.failNext.Store(true)
		assert.ErrorIs(t, tbl.Save(ctx), errTransient)
		assert.Equal(t, uint64(1), tbl.Generation())

		require.NoError(t, tbl.Save(ctx))
		assert.Equal(t, uint64(2), tbl.Generation())
		assert.Equal(t, uint64(2), readManifest(t, store, "bugs").Generation)

		loaded, err := Load(ctx, "bugs", WithStore(store))
		require.NoError(t, err)
		assert.Equal(t, 100, loaded.Count())
		assert.Equal(t, uint64(2), loaded.Generation())
	})

	t.Run("reloaded table saves", func(t *testing.T) {
		store := &flakyCommittingStore{committingStore: newCommittingStore()}
		tbl := filledTable(t, 100_000, 100, WithStore(store))
		require.NoError(t, tbl.Save(ctx))

		store.failNext.Store(true)
		require.Error(t, tbl.Save(ctx))

		reloaded, err := Load(ctx, "bugs", WithStore(store))
		require.NoError(t, err)
		assert.Equal(t, 100, reloaded.Count())
		assert.Equal(t, uint64(2), reloaded.Generation())

		require.NoError(t, reloaded.Save(ctx))
		assert.Equal(t, uint64(3), reloaded.Generation())
		assert.Equal(t, uint64(3), readManifest(t, store, "bugs").Generation)
	})
}

func TestSaveRejectsLockedTable(t *testing.T) {
	dir := t.TempDir()
	tbl := filledTable(t, 0, 10, WithDirectory(dir))

	lockDir := filepath.Join(dir, TablesDirectory, "bugs")
	require.NoError(t, os.MkdirAll(lockDir, 0o755))
	unlock, err := fs.Lock(filepath.Join(lockDir, lockFile))
	require.NoError(t, err)

	assert.ErrorIs(t, tbl.Save(context.Background()), ErrLocked)
	assert.ErrorIs(t, tbl.Load(context.Background(), "bugs"), ErrLocked)

	require.NoError(t, unlock())
	assert.NoError(t, tbl.Save(context.Background()))
}

func TestInvalidTableNames(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"", " ", ".", "..", "a/b", `a\b`, "c:"} {
		tbl := New(name, 0, WithStore(blobstore.NewMemoryStore()))
		assert.ErrorIs(t, tbl.Save(ctx), ErrInvalidTableName, "name %q", name)

		_, err := Load(ctx, name, WithStore(blobstore.NewMemoryStore()))
		assert.ErrorIs(t, err, ErrInvalidTableName, "name %q", name)
	}
}

func TestSaveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tbl := filledTable(t, 300_000, 100, WithStore(blobstore.NewMemoryStore()))
	assert.ErrorIs(t, tbl.Save(ctx), context.Canceled)
}

func TestSaveWithIOLimit(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	tbl := filledTable(t, 100_000, 200, WithStore(store), WithIOLimit(64<<20), WithParallelism(1))

	require.NoError(t, tbl.Save(ctx))

	loaded, err := Load(ctx, "bugs", WithStore(store), WithIOLimit(64<<20))
	require.NoError(t, err)
	assert.Equal(t, 200, loaded.Count())
}
