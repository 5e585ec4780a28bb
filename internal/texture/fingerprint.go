package texture

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Fingerprint identifies a descriptor by its four destinations, its group and
// its fallback reference. Two descriptors with equal fingerprints are the same
// export and share one set of outputs.
func (d *Descriptor) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{
		d.Destinations.Base,
		d.Destinations.Normal,
		d.Destinations.Mask,
		d.Destinations.Material,
		d.Group,
		d.Backup.Key(),
	} {
		writeField(h, part)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// MaterialID derives the output identifier for a material written to
// materialDest. It covers the texture destinations the material embeds.
func MaterialID(materialDest, fingerprint string, own Destinations) string {
	h := sha256.New()
	for _, part := range []string{
		materialDest,
		fingerprint,
		own.Base,
		own.Normal,
		own.Mask,
	} {
		writeField(h, part)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
