package bbolt

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/jrife/fakeconsul/storage/snapshot"
)

// Layout of a bbolt meta page. The meta follows a 16 byte page
// header and is written in native byte order.
const (
	minPages       = 4
	pageHeaderSize = 16
	metaMagic      = 0xED0CDAED
	metaVersion    = 2
	metaSize       = 64
	checksumOffset = 56
)

type meta struct {
	pageSize  int64
	highWater uint64
	txid      uint64
}

// check inspects the database file without mapping it. bolt.Open
// maps the file and faults the process on the first access past
// the end of a database that was cut short, so such a file must
// never reach it. It reports whether the file exists, ErrEmpty
// for a zero-size file and ErrTruncated for a file too short
// for the pages its meta refers to.
func (store *BBoltStore) check() (bool, error) {
	file, err := os.Open(store.path)

	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("could not open %s: %w", store.path, err)
	}

	defer file.Close()

	info, err := file.Stat()

	if err != nil {
		return true, fmt.Errorf("could not stat %s: %w", store.path, err)
	}

	size := info.Size()

	if size == 0 {
		return true, fmt.Errorf("%w: database file %s", snapshot.ErrEmpty, store.path)
	}

	pageSize := int64(os.Getpagesize())
	current, ok := readMeta(file, size, pageSize)

	if ok {
		pageSize = current.pageSize
	}

	if size%pageSize != 0 || size < minPages*pageSize {
		return true, fmt.Errorf("%w: database file %s is %d bytes with %d byte pages", snapshot.ErrTruncated, store.path, size, pageSize)
	}

	if ok && current.highWater > uint64(size/pageSize) {
		return true, fmt.Errorf("%w: database file %s is %d bytes but holds %d pages of %d bytes", snapshot.ErrTruncated, store.path, size, current.highWater, pageSize)
	}

	// with no valid meta page bolt.Open fails without reading
	// past the first pages
	return true, nil
}

// readMeta returns the meta bbolt would use: the valid one of
// the two meta pages with the highest transaction id
func readMeta(file *os.File, size int64, defaultPageSize int64) (meta, bool) {
	first, firstOK := readMetaPage(file, size, 0)
	offset := defaultPageSize

	if firstOK {
		offset = first.pageSize
	}

	second, secondOK := readMetaPage(file, size, offset)

	switch {
	case firstOK && secondOK && second.txid > first.txid:
		return second, true
	case firstOK:
		return first, true
	case secondOK:
		return second, true
	}

	return meta{}, false
}

func readMetaPage(file *os.File, size int64, offset int64) (meta, bool) {
	if offset+pageHeaderSize+metaSize > size {
		return meta{}, false
	}

	buf := make([]byte, metaSize)

	if _, err := file.ReadAt(buf, offset+pageHeaderSize); err != nil {
		return meta{}, false
	}

	order := binary.NativeEndian

	if order.Uint32(buf[0:]) != metaMagic || order.Uint32(buf[4:]) != metaVersion {
		return meta{}, false
	}

	hash := fnv.New64a()
	hash.Write(buf[:checksumOffset])

	if hash.Sum64() != order.Uint64(buf[checksumOffset:]) {
		return meta{}, false
	}

	pageSize := int64(order.Uint32(buf[8:]))

	if pageSize < pageHeaderSize+metaSize {
		return meta{}, false
	}

	return meta{
		pageSize:  pageSize,
		highWater: order.Uint64(buf[40:]),
		txid:      order.Uint64(buf[48:]),
	}, true
}
