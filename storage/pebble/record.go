package pebble

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"time"

	"github.com/terraskye/eventstore"
)

// Entry encoding:
//
//	insertion_be8 | version_be8 | timestamp_ns_be8 |
//	varint len + bucketId | varint len + streamId |
//	varint len + changeSetId | varint len + body | crc32c(all previous)
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var errCorruptRecord = errors.New("pebble: corrupt entry record")

func encodeEntry(entry eventstore.StoredEntry) []byte {
	out := make([]byte, 0, 24+len(entry.BucketID)+len(entry.StreamID)+len(entry.ChangeSetID)+len(entry.Body)+24)
	out = appendBE8(out, uint64(entry.InsertionID))
	out = appendBE8(out, uint64(entry.StreamVersion))
	out = appendBE8(out, uint64(entry.Timestamp.UnixNano()))
	out = appendField(out, []byte(entry.BucketID))
	out = appendField(out, []byte(entry.StreamID))
	out = appendField(out, []byte(entry.ChangeSetID))
	out = appendField(out, entry.Body)

	crc := crc32.Checksum(out, castagnoli)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

func appendField(dst, field []byte) []byte {
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(field)))
	dst = append(dst, tmp[:n]...)
	return append(dst, field...)
}

func decodeEntry(b []byte) (eventstore.StoredEntry, error) {
	if len(b) < 24+4 {
		return eventstore.StoredEntry{}, errCorruptRecord
	}
	body, tail := b[:len(b)-4], b[len(b)-4:]
	if crc32.Checksum(body, castagnoli) != binary.BigEndian.Uint32(tail) {
		return eventstore.StoredEntry{}, errCorruptRecord
	}

	entry := eventstore.StoredEntry{
		InsertionID:   int64(binary.BigEndian.Uint64(body[0:8])),
		StreamVersion: int64(binary.BigEndian.Uint64(body[8:16])),
		Timestamp:     time.Unix(0, int64(binary.BigEndian.Uint64(body[16:24]))),
	}
	rest := body[24:]

	fields := make([][]byte, 4)
	for i := range fields {
		flen, n := binary.Uvarint(rest)
		if n <= 0 || int(flen) > len(rest)-n {
			return eventstore.StoredEntry{}, errCorruptRecord
		}
		fields[i] = rest[n : n+int(flen)]
		rest = rest[n+int(flen):]
	}
	entry.BucketID = string(fields[0])
	entry.StreamID = string(fields[1])
	entry.ChangeSetID = string(fields[2])
	entry.Body = append([]byte(nil), fields[3]...)
	return entry, nil
}
