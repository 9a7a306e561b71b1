package ir

import (
	"bytes"
	"encoding/json"
)

func unmarshalForTest(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
