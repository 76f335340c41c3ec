package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Marshal encodes q in its externally tagged form:
//
//	"ListDatabases"
//	{"ListTables": {"database": "app_db"}}
//	{"ListTableContents": {"database": "app_db", "table": "users"}}
//	{"CustomSQL": {"sql": "SELECT 1"}}
func Marshal(q Query) ([]byte, error) {
	if q == nil {
		return nil, errors.New("query: marshal nil query")
	}
	q, err := Normalize(q)
	if err != nil {
		return nil, err
	}
	if _, ok := q.(ListDatabases); ok {
		return json.Marshal(Name(q))
	}
	return json.Marshal(map[string]Query{Name(q): q})
}

// Unmarshal decodes the form written by Marshal.
func Unmarshal(data []byte) (Query, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return nil, err
		}
		if name != "ListDatabases" {
			return nil, fmt.Errorf("query: %q needs parameters", name)
		}
		return ListDatabases{}, nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("query: want exactly one variant, got %d", len(tagged))
	}

	for name, body := range tagged {
		switch name {
		case "ListDatabases":
			return ListDatabases{}, nil
		case "ListTables":
			var q ListTables
			if err := decodeBody(body, &q); err != nil {
				return nil, err
			}
			return q, nil
		case "ListTableContents":
			var q ListTableContents
			if err := decodeBody(body, &q); err != nil {
				return nil, err
			}
			if q.Table == "" {
				return nil, errors.New("query: ListTableContents needs a table")
			}
			return q, nil
		case "CustomSQL":
			var q CustomSQL
			if err := decodeBody(body, &q); err != nil {
				return nil, err
			}
			return q, nil
		default:
			return nil, fmt.Errorf("query: unknown variant %q", name)
		}
	}
	return nil, errors.New("query: empty")
}

func decodeBody(body json.RawMessage, v any) error {
	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}
