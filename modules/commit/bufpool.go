package commit

import (
	"bufio"
	"io"
	"sync"
)

// readerPool recycles bufio.Readers across decode calls, the same pattern
// the reference VCS's streamio package uses to avoid a fresh allocation per
// object decoded off a hot path.
var readerPool = sync.Pool{
	New: func() any { return bufio.NewReaderSize(nil, 4096) },
}

func bufReader(r io.Reader) *bufio.Reader {
	br := readerPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

func putBufReader(br *bufio.Reader) {
	br.Reset(nil)
	readerPool.Put(br)
}
