package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON is a custom type for storing arbitrary JSON documents as text so the
// same model works across PostgreSQL, MySQL and SQLite. A nil value is stored
// as SQL NULL, not the string "null".
type JSON json.RawMessage

// Scan implements the sql.Scanner interface for reading from the database.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		cp := make([]byte, len(v))
		copy(cp, v)
		*j = cp
		return nil
	case string:
		*j = JSON(v)
		return nil
	default:
		return errors.New("JSON: unsupported scan type")
	}
}

// Value implements the driver.Valuer interface for writing to the database.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// MarshalJSON returns j as the JSON encoding of j.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON sets *j to a copy of data.
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// GormDataType returns the GORM data type hint.
func (JSON) GormDataType() string {
	return "text"
}
