package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hupe1980/arriba/block"
	"github.com/hupe1980/arriba/column"
	"github.com/hupe1980/arriba/value"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Present reports for each of n cells whether it holds a value.
// missingRate is the probability that a cell is null (0.3 = 30% missing).
func (r *RNG) Present(n int, missingRate float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	present := make([]bool, n)
	for i := range n {
		present[i] = r.rand.Float64() >= missingRate
	}

	return present
}

// Owners are the values of the generated Owner column, most frequent first.
var Owners = []string{"alice", "bob", "carol", "dave", "erin", "frank"}

var titleWords = []string{"crash", "typo", "slow", "leak", "wrong", "missing", "search", "menu", "start", "exit", "export", "colour"}

// Epoch is the earliest Opened time of generated rows.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// BugColumns is the layout of blocks returned by Bugs.
var BugColumns = []block.ColumnSpec{
	{Name: "ID", Kind: value.KindInt},
	{Name: "Title", Kind: value.KindString},
	{Name: "Priority", Kind: value.KindInt},
	{Name: "Owner", Kind: value.KindString},
	{Name: "Opened", Kind: value.KindTime},
}

// BugDetails returns the table schema matching BugColumns, with ID as the
// primary key and Priority indexed.
func BugDetails() []column.Details {
	return []column.Details{
		{Name: "ID", Kind: value.KindInt, IsPrimaryKey: true},
		{Name: "Title", Kind: value.KindString},
		{Name: "Priority", Kind: value.KindInt, Indexed: true},
		{Name: "Owner", Kind: value.KindString},
		{Name: "Opened", Kind: value.KindTime},
	}
}

// Bugs generates n rows with consecutive IDs starting at firstID. Priority
// is uniform in [0,4), Owner is Zipf-distributed over Owners and null for
// about 10% of the rows.
func (r *RNG) Bugs(firstID, n int) *block.DataBlock {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := block.New(BugColumns, n)
	for i := range n {
		title := fmt.Sprintf("%s %s #%d",
			titleWords[r.rand.Intn(len(titleWords))],
			titleWords[r.rand.Intn(len(titleWords))],
			firstID+i)

		b.Set(i, 0, value.Int(int64(firstID+i)))
		b.Set(i, 1, value.String(title))
		b.Set(i, 2, value.Int(int64(r.rand.Intn(4))))
		if r.rand.Float64() >= 0.1 {
			b.Set(i, 3, value.String(Owners[r.zipfLocked(len(Owners), 1.5)]))
		}
		b.Set(i, 4, value.Time(Epoch.Add(time.Duration(r.rand.Intn(365*24))*time.Hour)))
	}
	return b
}

// CountWhere counts the rows of b whose column col satisfies match.
func CountWhere(b block.ReadOnly, col int, match func(value.Value) bool) int {
	n := 0
	for r := 0; r < b.RowCount(); r++ {
		if match(b.Value(r, col)) {
			n++
		}
	}
	return n
}
