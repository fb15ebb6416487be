package btree

import (
	"container/list"
	"os"
	"path/filepath"
	"sync"

	"github.com/jugadbase/jugadb/internal/dblog"
	"github.com/jugadbase/jugadb/internal/types"
)

// Manager owns every index tree for a database, keeping at most
// threshold trees resident in memory at once (spec §4.4:
// "BTREE_LIFETIME_THRESHOLD LRU of live trees") and flushing evicted
// ones to their backing file under dir. Grounded on the teacher's
// internal/storage/ephemeral/store.go for the explicit
// mutex-guarded, lifecycle-managed store idiom.
type Manager struct {
	mu        sync.Mutex
	dir       string
	threshold int
	log       dblog.Sink

	trees map[string]*list.Element // index name -> lru entry
	lru   *list.List
}

type entry struct {
	name string
	tree *Tree
	id   uint32
	dirty bool
}

// NewManager opens a Manager rooted at dir, which holds one `<name>.btidx`
// file per index.
func NewManager(dir string, threshold int, log dblog.Sink) *Manager {
	if threshold < 1 {
		threshold = 1
	}
	if log == nil {
		log = dblog.Discard
	}
	return &Manager{
		dir:       dir,
		threshold: threshold,
		log:       log,
		trees:     make(map[string]*list.Element),
		lru:       list.New(),
	}
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, name+".btidx")
}

// Create registers a brand-new empty index under name.
func (m *Manager) Create(name string, keyKind types.Kind, id uint32) *Tree {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := CalculateOrder(m.dir, 1000)
	t := NewTree(keyKind, order)
	m.touch(name, t, id, true)
	return t
}

// Get returns the tree for name, loading it from disk if it isn't
// currently resident, and evicting the least-recently-used tree if
// the cache is now over threshold.
func (m *Manager) Get(name string) (*Tree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.trees[name]; ok {
		m.lru.MoveToFront(el)
		return el.Value.(*entry).tree, nil
	}

	f, err := os.Open(m.path(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, id, err := Load(f)
	if err != nil {
		return nil, err
	}
	m.touch(name, t, id, false)
	return t, nil
}

// MarkDirty flags name's tree as needing a flush at the next eviction
// or Close.
func (m *Manager) MarkDirty(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.trees[name]; ok {
		el.Value.(*entry).dirty = true
	}
}

func (m *Manager) touch(name string, t *Tree, id uint32, dirty bool) {
	el := m.lru.PushFront(&entry{name: name, tree: t, id: id, dirty: dirty})
	m.trees[name] = el
	for m.lru.Len() > m.threshold {
		oldest := m.lru.Back()
		m.evict(oldest)
	}
}

func (m *Manager) evict(el *list.Element) {
	e := el.Value.(*entry)
	if e.dirty {
		if err := m.flush(e); err != nil {
			m.log.Error(dblog.CategoryBTree, "flush on eviction failed for %q: %v", e.name, err)
		}
	}
	m.lru.Remove(el)
	delete(m.trees, e.name)
}

func (m *Manager) flush(e *entry) error {
	f, err := os.Create(m.path(e.name))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := e.tree.Save(f, e.id); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// Close flushes every resident dirty tree and releases them.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for el := m.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.dirty {
			if err := m.flush(e); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	m.trees = make(map[string]*list.Element)
	m.lru = list.New()
	return firstErr
}
