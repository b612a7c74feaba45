package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash digests an entity snapshot for BeforeHash/AfterHash. The audit log keeps a fixed-size fingerprint rather
// than the full entity so a row never grows with the size of the thing it describes.
func Hash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
