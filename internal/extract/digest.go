package extract

import (
	"fmt"

	"github.com/minio/highwayhash"
)

var digestKey = []byte("moduletree-source-digest-key-v01")

// Digest returns the hex highwayhash-64 of data.
func Digest(data []byte) (string, error) {
	h, err := highwayhash.New64(digestKey)
	if err != nil {
		return "", err
	}
	if _, err := h.Write(data); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
