package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type KeyValue struct {
	Key   string
	Value string
}

// KeyValues is an ordered string mapping; JSON objects decode in document order.
type KeyValues []KeyValue

func (kv *KeyValues) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*kv = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("key_values: expected object, got %v", tok)
	}

	out := KeyValues{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("key_values: unexpected key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("key_values[%s]: %w", key, err)
		}
		out = append(out, KeyValue{Key: key, Value: scalarString(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*kv = out
	return nil
}

func (kv KeyValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range kv {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}

// RecognitionResult is the recognition service's heterogeneous output.
// An absent variant and an empty one are treated the same.
type RecognitionResult struct {
	RawText   string     `json:"raw_text"`
	KeyValues KeyValues  `json:"key_values"`
	TableRows [][]string `json:"table_rows"`
}

func (r RecognitionResult) Empty() bool {
	return r.RawText == "" && len(r.KeyValues) == 0 && len(r.TableRows) == 0
}
