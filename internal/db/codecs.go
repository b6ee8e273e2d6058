package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/russross/meddler"
)

func init() {
	meddler.Register("hash", HashMeddler{})
	meddler.Register("address", AddressMeddler{})
	meddler.Register("uuid", UUIDMeddler{})
	meddler.Register("json", JSONMeddler{})
}

// HashMeddler maps common.Hash (and *common.Hash) to/from a lowercase hex
// varchar column, the stored representation for block_hash,
// transaction_hash, etc.
type HashMeddler struct{}

func (HashMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(sql.NullString), nil
}

func (HashMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("hash meddler: expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *common.Hash:
		if ns.Valid {
			*ptr = common.HexToHash(ns.String)
		}
	case **common.Hash:
		if ns.Valid {
			h := common.HexToHash(ns.String)
			*ptr = &h
		} else {
			*ptr = nil
		}
	default:
		return fmt.Errorf("hash meddler: unsupported field type %T", fieldAddr)
	}
	return nil
}

func (HashMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	switch v := field.(type) {
	case common.Hash:
		return strings.ToLower(v.Hex()), nil
	case *common.Hash:
		if v == nil {
			return nil, nil
		}
		return strings.ToLower(v.Hex()), nil
	default:
		return nil, fmt.Errorf("hash meddler: unsupported field type %T", field)
	}
}

// AddressMeddler maps common.Address to/from a lowercase hex varchar column.
type AddressMeddler struct{}

func (AddressMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(sql.NullString), nil
}

func (AddressMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("address meddler: expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *common.Address:
		if ns.Valid {
			*ptr = common.HexToAddress(ns.String)
		}
	case **common.Address:
		if ns.Valid {
			a := common.HexToAddress(ns.String)
			*ptr = &a
		} else {
			*ptr = nil
		}
	default:
		return fmt.Errorf("address meddler: unsupported field type %T", fieldAddr)
	}
	return nil
}

func (AddressMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	switch v := field.(type) {
	case common.Address:
		return strings.ToLower(v.Hex()), nil
	case *common.Address:
		if v == nil {
			return nil, nil
		}
		return strings.ToLower(v.Hex()), nil
	default:
		return nil, fmt.Errorf("address meddler: unsupported field type %T", field)
	}
}

// UUIDMeddler maps uuid.UUID to/from a uuid column.
type UUIDMeddler struct{}

func (UUIDMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(sql.NullString), nil
}

func (UUIDMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("uuid meddler: expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *uuid.UUID:
		if ns.Valid {
			parsed, err := uuid.Parse(ns.String)
			if err != nil {
				return fmt.Errorf("uuid meddler: %w", err)
			}
			*ptr = parsed
		}
	case **uuid.UUID:
		if ns.Valid {
			parsed, err := uuid.Parse(ns.String)
			if err != nil {
				return fmt.Errorf("uuid meddler: %w", err)
			}
			*ptr = &parsed
		} else {
			*ptr = nil
		}
	default:
		return fmt.Errorf("uuid meddler: unsupported field type %T", fieldAddr)
	}
	return nil
}

func (UUIDMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	switch v := field.(type) {
	case uuid.UUID:
		return v.String(), nil
	case *uuid.UUID:
		if v == nil {
			return nil, nil
		}
		return v.String(), nil
	default:
		return nil, fmt.Errorf("uuid meddler: unsupported field type %T", field)
	}
}

// JSONMeddler maps any JSON-marshalable field (map[string]interface{},
// []string, ...) to/from a json column. Used for Event.Parameters and
// Event.Topics, which have different shapes but the same storage.
type JSONMeddler struct{}

func (JSONMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(sql.NullString), nil
}

func (JSONMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("json meddler: expected *sql.NullString, got %T", scanTarget)
	}
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), fieldAddr); err != nil {
		return fmt.Errorf("json meddler: %w", err)
	}
	return nil
}

func (JSONMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	raw, err := json.Marshal(field)
	if err != nil {
		return nil, fmt.Errorf("json meddler: %w", err)
	}
	return string(raw), nil
}
