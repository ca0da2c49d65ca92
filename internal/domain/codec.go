package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RecoveryCodeHashes is the set of salted hashes of unused recovery
// codes, stored as a JSON array. Consuming a code removes its hash.
type RecoveryCodeHashes []string

func (h RecoveryCodeHashes) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *RecoveryCodeHashes) Scan(src interface{}) error {
	return scanJSON(src, h)
}

// ScopeList is a token's granted scope set, stored as a JSON array.
type ScopeList []string

func (s ScopeList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *ScopeList) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Contains reports whether every requested scope is covered by s.
func (s ScopeList) Contains(requested ScopeList) bool {
	have := make(map[string]bool, len(s))
	for _, sc := range s {
		have[sc] = true
	}
	for _, sc := range requested {
		if !have[sc] {
			return false
		}
	}
	return true
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
}
