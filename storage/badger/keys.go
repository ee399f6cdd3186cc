package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/tagger/core"
)

// Key prefixes for different data types
const (
	foodRecordPrefix = "foorec"
	foodOrderPrefix  = "fooord"
	foodPosPrefix    = "foopos"
	foodOrderSeq     = "fooseq"
	tagRecordPrefix  = "tagrec"
	tagNamePrefix    = "tagnam"
	foodTagPrefix    = "footag"
	templateKey      = "tmpl:current"
	checkpointKey    = "tagrun:chkpt"
)

// makeFoodKey generates a key for a catalog record by ID.
func makeFoodKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", foodRecordPrefix, id))
}

// makeFoodPosKey generates the key holding a record's catalog position.
func makeFoodPosKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", foodPosPrefix, id))
}

// makeFoodOrderKey generates a key for the catalog order index.
// Format: prefix:position
func makeFoodOrderKey(pos uint64) []byte {
	prefix := []byte(foodOrderPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], pos)
	return buf
}

// posFromOrderKey extracts the catalog position from an order index key.
func posFromOrderKey(key []byte) (uint64, bool) {
	if len(key) != len(foodOrderPrefix)+1+8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(key)-8:]), true
}

// makeTagKey generates a key for a tag by ID.
func makeTagKey(id core.ID) []byte {
	prefix := []byte(tagRecordPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeTagNameKey generates the lookup key for a tag name.
func makeTagNameKey(name string) []byte {
	return []byte(tagNamePrefix + ":" + name)
}

// makeFoodTagKey generates a composite key linking a record to a tag.
// Format: prefix:recordID\x00tagID
func makeFoodTagKey(recordID string, tagID core.ID) []byte {
	partial := makePartialFoodTagKey(recordID)
	buf := make([]byte, len(partial)+8)
	offset := copy(buf, partial)
	binary.BigEndian.PutUint64(buf[offset:], uint64(tagID))
	return buf
}

// makePartialFoodTagKey generates the prefix for every link of a record.
// Format: prefix:recordID\x00
func makePartialFoodTagKey(recordID string) []byte {
	return []byte(foodTagPrefix + ":" + recordID + "\x00")
}

// tagIDFromFoodTagKey extracts the tag ID from the tail of a link key.
func tagIDFromFoodTagKey(key []byte) (core.ID, bool) {
	if len(key) < 8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:])), true
}
