package embedding

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// ErrIndexCorrupt is returned by Load when the persisted artifacts are
// missing or disagree about the number of indexed names. The index is
// never silently truncated to the shorter side.
var ErrIndexCorrupt = errors.New("embedding index artifacts are inconsistent")

// Index is a nearest-neighbor structure over canonical ingredient
// names. Rows are unit-normalized so that a dot product is cosine
// similarity. Reads may run concurrently; mutations take the write
// lock, which also serializes the AddName+Save sequence.
type Index struct {
	mu       sync.RWMutex
	embedder Embedder
	names    []string
	vecs     [][]float32
}

// NewIndex creates an empty index backed by the given embedder.
func NewIndex(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Len reports the number of indexed names.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.names)
}

// Names returns a copy of the indexed names in row order.
func (idx *Index) Names() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, len(idx.names))
	copy(out, idx.names)
	return out
}

// Build replaces the index contents with one embedding per name.
// Building with an empty list yields an empty index.
func (idx *Index) Build(ctx context.Context, names []string) error {
	kept := make([]string, len(names))
	copy(kept, names)

	var vecs [][]float32
	if len(kept) > 0 {
		raw, err := idx.embedder.Embed(ctx, kept)
		if err != nil {
			return fmt.Errorf("failed to embed %d names: %w", len(kept), err)
		}
		vecs = make([][]float32, len(raw))
		for i, v := range raw {
			vecs[i] = normalize(v)
		}
	}

	idx.mu.Lock()
	idx.names = kept
	idx.vecs = vecs
	idx.mu.Unlock()
	return nil
}

// AddName embeds a single name and appends it to the index. Empty
// names are ignored.
func (idx *Index) AddName(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	raw, err := idx.embedder.Embed(ctx, []string{name})
	if err != nil {
		return fmt.Errorf("failed to embed %q: %w", name, err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("expected one vector for %q, got %d", name, len(raw))
	}
	vec := normalize(raw[0])

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(idx.vecs) > 0 && len(idx.vecs[0]) != len(vec) {
		return fmt.Errorf("embedding dimension changed from %d to %d", len(idx.vecs[0]), len(vec))
	}
	idx.names = append(idx.names, name)
	idx.vecs = append(idx.vecs, vec)
	return nil
}

// EmbedOne embeds a single text in the same vector space as the index
// rows, without normalizing or storing it.
func (idx *Index) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	raw, err := idx.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed %q: %w", text, err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("expected one vector for %q, got %d", text, len(raw))
	}
	return raw[0], nil
}

// Nearest returns the stored name most similar to the query with its
// cosine similarity. An empty index or an unembeddable query yields
// ("", 0). Ties go to the lowest row index.
func (idx *Index) Nearest(ctx context.Context, query string) (string, float64, error) {
	idx.mu.RLock()
	empty := len(idx.names) == 0
	idx.mu.RUnlock()
	if empty {
		return "", 0, nil
	}

	raw, err := idx.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", 0, fmt.Errorf("failed to embed query %q: %w", query, err)
	}
	if len(raw) != 1 {
		return "", 0, fmt.Errorf("expected one vector for query, got %d", len(raw))
	}
	qvec := raw[0]
	if norm(qvec) == 0 {
		return "", 0, nil
	}
	qvec = normalize(qvec)

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	best := -1
	bestScore := math.Inf(-1)
	for i, row := range idx.vecs {
		score := dot(row, qvec)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 {
		return "", 0, nil
	}
	return idx.names[best], bestScore, nil
}

// Save persists the index as two companion artifacts: <base>.names.json
// and <base>.vecs.bin.
func (idx *Index) Save(base string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	namesData, err := json.Marshal(idx.names)
	if err != nil {
		return fmt.Errorf("failed to marshal index names: %w", err)
	}
	if err := os.WriteFile(base+".names.json", namesData, 0o644); err != nil {
		return fmt.Errorf("failed to write index names: %w", err)
	}
	if err := os.WriteFile(base+".vecs.bin", encodeMatrix(idx.vecs), 0o644); err != nil {
		return fmt.Errorf("failed to write index vectors: %w", err)
	}
	return nil
}

// Load restores an index from its companion artifacts, failing loudly
// when either is missing or their row counts disagree.
func (idx *Index) Load(base string) error {
	namesData, err := os.ReadFile(base + ".names.json")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	var names []string
	if err := json.Unmarshal(namesData, &names); err != nil {
		return fmt.Errorf("%w: bad names artifact: %v", ErrIndexCorrupt, err)
	}

	vecsData, err := os.ReadFile(base + ".vecs.bin")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	vecs, err := decodeMatrix(vecsData)
	if err != nil {
		return fmt.Errorf("%w: bad vectors artifact: %v", ErrIndexCorrupt, err)
	}
	if len(vecs) != len(names) {
		return fmt.Errorf("%w: %d names but %d vector rows", ErrIndexCorrupt, len(names), len(vecs))
	}

	idx.mu.Lock()
	idx.names = names
	idx.vecs = vecs
	idx.mu.Unlock()
	return nil
}

// encodeMatrix writes rows and dims as uint32 little-endian followed by
// the row-major float32 values.
func encodeMatrix(vecs [][]float32) []byte {
	dims := 0
	if len(vecs) > 0 {
		dims = len(vecs[0])
	}
	buf := make([]byte, 8, 8+4*len(vecs)*dims)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(vecs)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(dims))
	var scratch [4]byte
	for _, row := range vecs {
		for _, v := range row {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			buf = append(buf, scratch[:]...)
		}
	}
	return buf
}

func decodeMatrix(data []byte) ([][]float32, error) {
	if len(data) < 8 {
		return nil, errors.New("matrix header truncated")
	}
	rows := int(binary.LittleEndian.Uint32(data[0:4]))
	dims := int(binary.LittleEndian.Uint32(data[4:8]))
	if len(data) != 8+4*rows*dims {
		return nil, fmt.Errorf("matrix payload is %d bytes, expected %d", len(data)-8, 4*rows*dims)
	}
	vecs := make([][]float32, rows)
	off := 8
	for i := range vecs {
		row := make([]float32, dims)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vecs[i] = row
	}
	return vecs, nil
}

// normalize returns the unit vector, leaving zero vectors untouched.
func normalize(v []float32) []float32 {
	n := norm(v)
	if n == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
