package state

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"r2s/storage"
)

// Manager is the journaled key-value view that every native module reads and
// writes through. Mutations are buffered in memory until Commit flushes them to
// the backing database in one batch; Snapshot/RevertToSnapshot let callers undo
// a partially applied operation.
//
// Manager is not safe for concurrent use. The node serialises access.
type Manager struct {
	db      storage.Database
	dirty   map[string][]byte
	journal []journalEntry
}

type journalEntry struct {
	key     string
	prev    []byte
	present bool
}

// NewManager creates a state manager backed by the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string][]byte)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) read(hashed []byte) ([]byte, error) {
	if value, ok := m.dirty[string(hashed)]; ok {
		return value, nil
	}
	if m.db == nil {
		return nil, nil
	}
	value, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) write(hashed []byte, value []byte) {
	k := string(hashed)
	prev, present := m.dirty[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, present: present})
	m.dirty[k] = value
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every mutation recorded after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.present {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	if id < len(m.journal) {
		m.journal = m.journal[:id]
	}
}

// Commit flushes all pending mutations to the database atomically and clears
// the journal.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	if m.db == nil {
		return fmt.Errorf("state: database not configured")
	}
	entries := make(map[string][]byte, len(m.dirty))
	for key, value := range m.dirty {
		if len(value) == 0 {
			entries[key] = nil
			continue
		}
		entries[key] = value
	}
	if err := m.db.Write(entries); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string][]byte)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops all uncommitted mutations.
func (m *Manager) Discard() {
	m.dirty = make(map[string][]byte)
	m.journal = m.journal[:0]
}

// Pending reports the number of keys with uncommitted changes.
func (m *Manager) Pending() int {
	return len(m.dirty)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.write(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// KVAppendUint64 appends v to the uint64 list stored under key. The list keeps
// insertion order and may contain duplicates.
func (m *Manager) KVAppendUint64(key []byte, v uint64) error {
	var list []uint64
	if err := m.KVGetList(key, &list); err != nil {
		return err
	}
	list = append(list, v)
	return m.KVPut(key, list)
}

// KVSetMember adds or removes member from the sorted byte-slice set stored
// under key.
func (m *Manager) KVSetMember(key []byte, member []byte, present bool) error {
	var members [][]byte
	if err := m.KVGetList(key, &members); err != nil {
		return err
	}
	idx := -1
	for i, existing := range members {
		if string(existing) == string(member) {
			idx = i
			break
		}
	}
	switch {
	case present && idx < 0:
		members = append(members, append([]byte(nil), member...))
		sort.Slice(members, func(i, j int) bool { return string(members[i]) < string(members[j]) })
	case !present && idx >= 0:
		members = append(members[:idx], members[idx+1:]...)
	default:
		return nil
	}
	return m.KVPut(key, members)
}
