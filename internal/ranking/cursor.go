package ranking

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
)

// pageCursor pins a pagination position to one logical ranking pass. The
// fingerprint identifies the exact inputs that produced the ranked list, so
// a cursor from a stale pass restarts ranking instead of splicing pages from
// a shifted candidate set.
type pageCursor struct {
	Fingerprint string `json:"fp"`
	Offset      int    `json:"offset"`
}

// encodeCursor serializes a cursor as opaque URL-safe base64.
func encodeCursor(c pageCursor) string {
	data, err := json.Marshal(c)
	if err != nil {
		// A struct of a string and an int cannot fail to marshal.
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor parses a cursor produced by encodeCursor.
func decodeCursor(s string) (pageCursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return pageCursor{}, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c pageCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return pageCursor{}, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if c.Offset < 0 {
		return pageCursor{}, fmt.Errorf("invalid cursor offset: %d", c.Offset)
	}
	return c, nil
}

// fingerprint hashes the ranking inputs that determine the ordered list:
// the user vector, the candidate set (IDs in order), the session, and the
// active weights. Two requests with the same fingerprint rank identically.
func fingerprint(req Request, weights *Weights) string {
	h := fnv.New64a()

	var buf [8]byte
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}

	for _, v := range req.UserVector {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
		h.Write(buf[:4])
	}
	for _, c := range req.Candidates {
		h.Write([]byte(c.ID))
		h.Write([]byte{0})
	}
	h.Write([]byte(req.Session.SessionID))
	writeFloat(weights.Similarity)
	writeFloat(weights.Recency)
	writeFloat(weights.Popularity)

	return fmt.Sprintf("%016x", h.Sum64())
}
