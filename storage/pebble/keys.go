package pebble

import "encoding/binary"

// Keyspace helpers.
//
// Layout (byte-wise, lexicographically sortable):
//   - b/{bucket}/e/{insertion_be8}        -> encoded entry
//   - b/{bucket}/s/{stream}/{version_be8} -> insertion_be8 (stream index)
//   - b/{bucket}/d/{changeSetId}          -> insertion_be8 (dedup index)
//   - m/last                              -> insertion_be8 (id counter)
//
// Identifier segments are percent-escaped so an id containing the '/'
// separator cannot collide with another id's key range or cross index
// namespaces.
var (
	bucketPrefix = []byte("b/")
	entrySeg     = []byte("/e/")
	streamSeg    = []byte("/s/")
	dedupSeg     = []byte("/d/")
	keyLastID    = []byte("m/last")
	sep          = byte('/')
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// appendID appends an identifier with '/' and '%' percent-escaped, keeping
// the segment free of the keyspace separator.
func appendID(dst []byte, id string) []byte {
	for i := 0; i < len(id); i++ {
		switch id[i] {
		case '/':
			dst = append(dst, '%', '2', 'F')
		case '%':
			dst = append(dst, '%', '2', '5')
		default:
			dst = append(dst, id[i])
		}
	}
	return dst
}

// keyEntry builds the entry key with a big-endian insertion id for proper
// ordering.
func keyEntry(bucketID string, insertionID uint64) []byte {
	k := keyEntryPrefix(bucketID)
	return appendBE8(k, insertionID)
}

func keyEntryPrefix(bucketID string) []byte {
	k := make([]byte, 0, len(bucketID)+16)
	k = append(k, bucketPrefix...)
	k = appendID(k, bucketID)
	k = append(k, entrySeg...)
	return k
}

// keyStream builds the stream index key with a big-endian version.
func keyStream(bucketID, streamID string, version uint64) []byte {
	k := keyStreamPrefix(bucketID, streamID)
	return appendBE8(k, version)
}

func keyStreamPrefix(bucketID, streamID string) []byte {
	k := make([]byte, 0, len(bucketID)+len(streamID)+16)
	k = append(k, bucketPrefix...)
	k = appendID(k, bucketID)
	k = append(k, streamSeg...)
	k = appendID(k, streamID)
	k = append(k, sep)
	return k
}

// keyDedup builds the change-set-id index key.
func keyDedup(bucketID, changeSetID string) []byte {
	k := make([]byte, 0, len(bucketID)+len(changeSetID)+8)
	k = append(k, bucketPrefix...)
	k = appendID(k, bucketID)
	k = append(k, dedupSeg...)
	k = appendID(k, changeSetID)
	return k
}

// upperBound returns the exclusive upper bound for scanning all keys
// starting with prefix.
func upperBound(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
}
