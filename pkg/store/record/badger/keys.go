package badger

import (
	"fmt"
	"time"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// different record types into logical namespaces:
//
// Data Type              Prefix  Key Format                               Value
// ============================================================================
// Location Records       "loc:"  loc:<partition>:<id>                     FileLocation (JSON)
// Location Time Index    "lix:"  lix:<partition>:<nano20>:<id>            id (bytes)
// Dataset Records        "ds:"   ds:<partition>:<id>                      DatasetRecord (JSON)
//
// Key Design Rationale:
//
// 1. Location Records (loc:)
//    - One entry per logical file id within a partition
//    - Point lookup by (partition, id): O(1)
//    - Insert-if-absent inside a transaction gives the location service its
//      uniqueness guarantee
//
// 2. Location Time Index (lix:)
//    - Denormalized index ordered by creation time
//    - <nano20> is the creation UnixNano zero-padded to 20 digits so that
//      lexicographic key order equals chronological order
//    - Paginated scans iterate this prefix; the continuation cursor is the
//      last index key visited
//
// 3. Dataset Records (ds:)
//    - One entry per committed dataset; overwritten on recommit
//      (at-least-once commit semantics)
//
// Partition names are always the leading segment after the prefix, so every
// scan is naturally scoped to a single partition.

func keyLocation(partition, id string) []byte {
	return []byte("loc:" + partition + ":" + id)
}

func keyLocationIndex(partition string, createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("lix:%s:%020d:%s", partition, createdAt.UnixNano(), id))
}

func keyLocationIndexPrefix(partition string) []byte {
	return []byte("lix:" + partition + ":")
}

func keyDataset(partition, id string) []byte {
	return []byte("ds:" + partition + ":" + id)
}
