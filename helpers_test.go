package soundbank

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// wav returns a minimal RIFF/WAVE clip carrying payload.
func wav(payload string) []byte {
	return []byte("RIFF\x24\x00\x00\x00WAVE" + payload)
}

// mp3 returns a minimal ID3-tagged clip carrying payload.
func mp3(payload string) []byte {
	return []byte("ID3\x04\x00\x00\x00\x00\x00\x00" + payload)
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type clip struct {
	name string
	ext  string
	data []byte
	hash string // overrides the real hash when set
}

func (c clip) id() string { return "id-" + c.name }

// fakeAPI serves /audio/list and /audio/{id}/download from an in-memory set
// of clips.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	clips      []clip
	downloads  map[string]int
	missing    map[string]bool
	listStatus int
	gate       chan struct{}
	started    chan string
}

func newFakeAPI(t *testing.T, clips ...clip) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:         t,
		clips:     clips,
		downloads: make(map[string]int),
		missing:   make(map[string]bool),
		started:   make(chan string, 64),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /audio/list", f.list)
	mux.HandleFunc("GET /audio/{id}/download", f.download)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) URL() string { return f.srv.URL }

func (f *fakeAPI) set(clips ...clip) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = clips
}

func (f *fakeAPI) setListStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listStatus = status
}

func (f *fakeAPI) setMissing(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing["id-"+name] = true
}

// hold makes downloads block until the returned release func is called.
func (f *fakeAPI) hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeAPI) downloadCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads["id-"+name]
}

func (f *fakeAPI) totalDownloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.downloads {
		n += c
	}
	return n
}

func (f *fakeAPI) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	status := f.listStatus
	records := make([]Record, 0, len(f.clips))
	for _, c := range f.clips {
		hash := c.hash
		if hash == "" {
			hash = hashOf(c.data)
		}
		records = append(records, Record{
			ID:        c.id(),
			Name:      c.name,
			Extension: c.ext,
			Size:      int64(len(c.data)),
			Hash:      hash,
			Owner:     "bugler",
		})
	}
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(f.t, json.NewEncoder(w).Encode(records))
}

func (f *fakeAPI) download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	f.downloads[id]++
	gate := f.gate
	missing := f.missing[id]
	var data []byte
	found := false
	for _, c := range f.clips {
		if c.id() == id {
			data, found = c.data, true
		}
	}
	f.mu.Unlock()

	if gate != nil {
		f.started <- id
		<-gate
	}
	if missing || !found {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

// recorder is a Display that keeps every message.
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Show(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

func (r *recorder) saw(msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func openBank(t *testing.T, dir string, opts ...OpenOption) *Bank {
	t.Helper()
	opts = append([]OpenOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	bank, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { bank.Close() })
	return bank
}

func writeFile(t *testing.T, dir, filename string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), data, 0644))
}

// diskFiles lists the visible files at the top of dir.
func diskFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

// tempFiles lists in-flight download files left in dir.
func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".soundbank-*"))
	require.NoError(t, err)
	return matches
}

// requireConsistent checks that both indices reference the same live assets.
func requireConsistent(t *testing.T, b *Bank) {
	t.Helper()
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for hash, names := range b.idx.byHash {
		require.NotEmpty(t, names, "empty hash bucket %s", hash)
		for name, a := range names {
			require.Same(t, b.idx.byName[name], a, "hash index disagrees on %s", name)
			require.Equal(t, hash, a.Hash)
			count++
		}
	}
	require.Equal(t, len(b.idx.byName), count)
	for name, a := range b.idx.byName {
		require.Equal(t, name, a.Name)
		require.False(t, a.Buffer.Freed(), "indexed buffer of %s is freed", name)
	}
}
