package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidEnum = errors.New("not a valid value")

// Specification of how offset baseline of the next chapter is computed.
// ENUM(exact, trimmed)
type OffsetMode int

const (
	// OffsetModeExact uses true chapter length.
	OffsetModeExact OffsetMode = iota
	// OffsetModeTrimmed uses start of the last page plus its trimmed length.
	OffsetModeTrimmed
)

var offsetModeNames = map[OffsetMode]string{
	OffsetModeExact:   "exact",
	OffsetModeTrimmed: "trimmed",
}

func (m OffsetMode) String() string {
	if s, ok := offsetModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("OffsetMode(%d)", int(m))
}

func (m OffsetMode) IsValid() bool {
	_, ok := offsetModeNames[m]
	return ok
}

// ParseOffsetMode attempts to convert a string to an OffsetMode.
func ParseOffsetMode(name string) (OffsetMode, error) {
	for k, v := range offsetModeNames {
		if strings.EqualFold(v, name) {
			return k, nil
		}
	}
	return OffsetMode(0), fmt.Errorf("%q is %w, expected one of [%s]", name, ErrInvalidEnum, "exact, trimmed")
}

func (m OffsetMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *OffsetMode) UnmarshalText(text []byte) error {
	v, err := ParseOffsetMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Specification of where bookmarks are persisted.
// ENUM(none, file, sqlite)
type StorageKind int

const (
	StorageKindNone StorageKind = iota
	StorageKindFile
	StorageKindSqlite
)

var storageKindNames = map[StorageKind]string{
	StorageKindNone:   "none",
	StorageKindFile:   "file",
	StorageKindSqlite: "sqlite",
}

func (k StorageKind) String() string {
	if s, ok := storageKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("StorageKind(%d)", int(k))
}

func (k StorageKind) IsValid() bool {
	_, ok := storageKindNames[k]
	return ok
}

// ParseStorageKind attempts to convert a string to a StorageKind.
func ParseStorageKind(name string) (StorageKind, error) {
	for k, v := range storageKindNames {
		if strings.EqualFold(v, name) {
			return k, nil
		}
	}
	return StorageKind(0), fmt.Errorf("%q is %w, expected one of [%s]", name, ErrInvalidEnum, "none, file, sqlite")
}

func (k StorageKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *StorageKind) UnmarshalText(text []byte) error {
	v, err := ParseStorageKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
