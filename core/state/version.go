package state

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrStateVersionMismatch indicates the stored schema version does not match
// the version supported by the current binary.
var ErrStateVersionMismatch = errors.New("state: schema version mismatch")

var moduleVersionPrefix = []byte("state/version/")

func moduleVersionKey(module string) []byte {
	trimmed := strings.ToLower(strings.TrimSpace(module))
	buf := make([]byte, len(moduleVersionPrefix)+len(trimmed))
	copy(buf, moduleVersionPrefix)
	copy(buf[len(moduleVersionPrefix):], trimmed)
	return buf
}

// SetModuleVersion records the implementation version a module's ledger was
// last migrated to.
func (m *Manager) SetModuleVersion(module string, version uint32) error {
	if m == nil {
		return errManagerUnavailable
	}
	if strings.TrimSpace(module) == "" {
		return fmt.Errorf("state: module name required")
	}
	return m.KVPut(moduleVersionKey(module), uint64(version))
}

// ModuleVersion returns the stored version and whether it was present.
func (m *Manager) ModuleVersion(module string) (uint32, bool, error) {
	if m == nil {
		return 0, false, errManagerUnavailable
	}
	var stored uint64
	ok, err := m.KVGet(moduleVersionKey(module), &stored)
	if err != nil || !ok {
		return 0, false, err
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// EnsureModuleVersion verifies that the stored version matches want. A missing
// version is initialised to want.
func (m *Manager) EnsureModuleVersion(module string, want uint32) error {
	have, ok, err := m.ModuleVersion(module)
	if err != nil {
		return err
	}
	if !ok {
		return m.SetModuleVersion(module, want)
	}
	if have != want {
		return fmt.Errorf("%w: %s stored=%d expected=%d", ErrStateVersionMismatch, module, have, want)
	}
	return nil
}
