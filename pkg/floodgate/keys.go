package floodgate

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SheetKey builds the cache key for a spreadsheet-backed source.
func SheetKey(spreadsheetID, worksheet string) string {
	return spreadsheetID + ":" + worksheet
}

// ResultKey builds the cache key for a derived computation: the subject plus
// a digest of the input payload, so identical inputs share an entry. The full
// digest is used; truncating it invites collisions at scale.
func ResultKey(subjectID string, payload any) (string, error) {
	data, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("%w: cannot digest payload: %v", ErrInvalidKey, err)
	}
	sum := md5.Sum(data)
	return "result_" + subjectID + "_" + hex.EncodeToString(sum[:]), nil
}

// canonicalJSON serializes v with object keys sorted, so logically equal
// payloads produce the same bytes. Struct field order is normalized by
// round-tripping through a generic value, where encoding/json sorts map keys.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
