package rule

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies the piece of install metadata an atom tests.
type Key int

const (
	KeyPackageName Key = iota
	KeyAppCertificate
	KeyInstallerName
	KeyInstallerCertificate
	KeyVersionCode
	KeyPreInstalled
)

var keyNames = map[Key]string{
	KeyPackageName:          "PACKAGE_NAME",
	KeyAppCertificate:       "APP_CERTIFICATE",
	KeyInstallerName:        "INSTALLER_NAME",
	KeyInstallerCertificate: "INSTALLER_CERTIFICATE",
	KeyVersionCode:          "VERSION_CODE",
	KeyPreInstalled:         "PRE_INSTALLED",
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

func (k Key) valid() bool {
	_, ok := keyNames[k]
	return ok
}

// ParseKey returns the key with the given wire name.
func ParseKey(s string) (Key, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for k, name := range keyNames {
		if name == upper {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown atom key: %q", s)
}

// KeySet is the set of atom keys present in a formula.
type KeySet map[Key]struct{}

func (s KeySet) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// HasAny reports whether at least one of keys is in the set.
func (s KeySet) HasAny(keys ...Key) bool {
	for _, k := range keys {
		if s.Has(k) {
			return true
		}
	}
	return false
}

// Sorted returns the keys in declaration order.
func (s KeySet) Sorted() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Operator is the comparison an atom applies to its key.
type Operator string

const (
	OpEQ  Operator = "EQ"
	OpGT  Operator = "GT"
	OpGTE Operator = "GTE"
)

func (o Operator) valid() bool {
	return o == OpEQ || o == OpGT || o == OpGTE
}

func (o Operator) allowedFor(k Key) bool {
	switch o {
	case OpEQ:
		return true
	case OpGT, OpGTE:
		return k == KeyVersionCode
	default:
		return false
	}
}
