package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lewtec/boxlabeler/internal/domain"
)

// writeObject encodes keys in order as one JSON object, calling value for each member.
func writeObject(keys []domain.ImageID, value func(domain.ImageID) ([]byte, error)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(string(id))
		if err != nil {
			return nil, err
		}
		v, err := value(id)
		if err != nil {
			return nil, fmt.Errorf("while encoding %q: %w", id, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// readObject walks the members of a JSON object in document order.
func readObject(data []byte, member func(domain.ImageID, json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: registry must be a JSON object", domain.ErrParse)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrParse, err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected %v", domain.ErrParse, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: value of %q: %v", domain.ErrParse, key, err)
		}
		if err := member(domain.ImageID(key), raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return nil
}
