package cache

import "encoding/json"

// SetItem is the embeddable-cache convenience wrapper around Set for
// callers who want to store arbitrary Go values rather than raw bytes.
// Strings and []byte are stored verbatim; anything else is JSON-encoded
// on entry, so a later GetItem into the same type round-trips exactly.
func (c *Cache) SetItem(key string, item interface{}, expirationSeconds int64, flags uint32) error {
	value, err := encodeItem(item)
	if err != nil {
		return err
	}
	c.Set(key, value, expirationSeconds, flags)
	return nil
}

// GetItem retrieves the value at key and decodes it into out, which must
// be a pointer. If the stored value round-trips as a plain string it is
// assigned directly when out is a *string or *[]byte; otherwise it is
// JSON-decoded into out.
func (c *Cache) GetItem(key string, out interface{}) (bool, error) {
	value, ok := c.Get(key)
	if !ok {
		return false, nil
	}

	switch dst := out.(type) {
	case *[]byte:
		*dst = value
		return true, nil
	case *string:
		*dst = string(value)
		return true, nil
	default:
		if err := json.Unmarshal(value, out); err != nil {
			return false, err
		}
		return true, nil
	}
}

func encodeItem(item interface{}) ([]byte, error) {
	switch v := item.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}
