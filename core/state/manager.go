package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"stakingcore/core/events"
	"stakingcore/storage"
)

var errManagerUnavailable = errors.New("state: manager unavailable")

// Manager is the journaled state layer shared by every native module. Writes
// land in an in-memory overlay and are only flushed to the backing database on
// Commit. Snapshots record a position in the write journal so that a failed
// operation can unwind exactly the writes and events it produced.
//
// Manager is not safe for concurrent use. Callers serialise operations.
type Manager struct {
	db        storage.Database
	dirty     map[string]overlayEntry
	journal   []journalEntry
	snapshots []snapshot
	pending   []events.Event
	sink      events.Emitter
}

type overlayEntry struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    overlayEntry
	hadPrev bool
}

type snapshot struct {
	journalLen int
	eventsLen  int
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:    db,
		dirty: make(map[string]overlayEntry),
		sink:  events.NoopEmitter{},
	}
}

// SetSink configures the emitter receiving events once they are committed.
func (m *Manager) SetSink(sink events.Emitter) {
	if m == nil {
		return
	}
	if sink == nil {
		m.sink = events.NoopEmitter{}
		return
	}
	m.sink = sink
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(hashed []byte) ([]byte, bool, error) {
	if entry, ok := m.dirty[string(hashed)]; ok {
		if entry.deleted {
			return nil, false, nil
		}
		return entry.value, true, nil
	}
	value, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, len(value) > 0, nil
}

func (m *Manager) write(hashed []byte, entry overlayEntry) {
	key := string(hashed)
	prev, hadPrev := m.dirty[key]
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, hadPrev: hadPrev})
	m.dirty[key] = entry
}

// KVPut RLP-encodes the value and stores it under the supplied key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil {
		return errManagerUnavailable
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.write(kvKey(key), overlayEntry{value: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil {
		return false, errManagerUnavailable
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.get(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key from state.
func (m *Manager) KVDelete(key []byte) error {
	if m == nil {
		return errManagerUnavailable
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.write(kvKey(key), overlayEntry{deleted: true})
	return nil
}

// Emit buffers the event until the enclosing work commits. Reverting a
// snapshot drops the events emitted after it.
func (m *Manager) Emit(ev events.Event) {
	if m == nil || ev == nil {
		return
	}
	m.pending = append(m.pending, ev)
}

// PendingEvents returns the events buffered since the last commit.
func (m *Manager) PendingEvents() []events.Event {
	if m == nil {
		return nil
	}
	return append([]events.Event(nil), m.pending...)
}

// Snapshot records the current journal position and returns its identifier.
func (m *Manager) Snapshot() int {
	m.snapshots = append(m.snapshots, snapshot{journalLen: len(m.journal), eventsLen: len(m.pending)})
	return len(m.snapshots) - 1
}

// RevertToSnapshot unwinds every write and event recorded after the snapshot
// was taken. Snapshots taken after id are invalidated.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		panic(fmt.Sprintf("state: unknown snapshot %d", id))
	}
	snap := m.snapshots[id]
	for i := len(m.journal) - 1; i >= snap.journalLen; i-- {
		entry := m.journal[i]
		if entry.hadPrev {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	m.journal = m.journal[:snap.journalLen]
	m.pending = m.pending[:snap.eventsLen]
	m.snapshots = m.snapshots[:id]
}

// Atomic runs fn as one unit: when fn returns an error or panics every write
// and event it produced is reverted. Panics are re-raised after the revert.
func (m *Manager) Atomic(fn func() error) (err error) {
	if m == nil {
		return errManagerUnavailable
	}
	id := m.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			m.RevertToSnapshot(id)
			panic(r)
		}
		if err != nil {
			m.RevertToSnapshot(id)
			return
		}
		m.snapshots = m.snapshots[:id]
	}()
	return fn()
}

// Commit flushes the overlay to the database in a single batch and forwards
// buffered events to the sink.
func (m *Manager) Commit() error {
	if m == nil {
		return errManagerUnavailable
	}
	if len(m.dirty) > 0 {
		batch := m.db.NewBatch()
		for key, entry := range m.dirty {
			if entry.deleted {
				batch.Delete([]byte(key))
				continue
			}
			batch.Put([]byte(key), entry.value)
		}
		if err := batch.Write(); err != nil {
			return fmt.Errorf("state: commit: %w", err)
		}
	}
	committed := m.pending
	m.dirty = make(map[string]overlayEntry)
	m.journal = nil
	m.snapshots = nil
	m.pending = nil
	for _, ev := range committed {
		m.sink.Emit(ev)
	}
	return nil
}

// Discard drops every uncommitted write and event.
func (m *Manager) Discard() {
	if m == nil {
		return
	}
	m.dirty = make(map[string]overlayEntry)
	m.journal = nil
	m.snapshots = nil
	m.pending = nil
}
