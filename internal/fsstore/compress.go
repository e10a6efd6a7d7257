package fsstore

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// objectMagic tags every object this store writes, the way the teacher's
// BLOB_MAGIC sanity-checks a file before decoding it.
var objectMagic = [4]byte{'F', 'S', 0x00, 0x01}

const objectVersion uint16 = 1

var (
	zstdEncoders = sync.Pool{New: func() any {
		w, _ := zstd.NewWriter(nil)
		return w
	}}
	zstdDecoders = sync.Pool{New: func() any {
		r, _ := zstd.NewReader(nil)
		return r
	}}
)

func getZstdEncoder(w io.Writer) *zstd.Encoder {
	enc := zstdEncoders.Get().(*zstd.Encoder)
	enc.Reset(w)
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	enc.Close()
	zstdEncoders.Put(enc)
}

func getZstdDecoder(r io.Reader) (*zstd.Decoder, error) {
	dec := zstdDecoders.Get().(*zstd.Decoder)
	if err := dec.Reset(r); err != nil {
		return nil, err
	}
	return dec, nil
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoders.Put(dec)
}

// compressInto writes plaintext compressed with method to w.
func compressInto(w io.Writer, plaintext []byte, method CompressMethod) error {
	switch method {
	case MethodStore:
		_, err := w.Write(plaintext)
		return err
	case MethodZstd:
		enc := getZstdEncoder(w)
		defer putZstdEncoder(enc)
		_, err := enc.Write(plaintext)
		return err
	case MethodGzip:
		gw := gzip.NewWriter(w)
		if _, err := gw.Write(plaintext); err != nil {
			return err
		}
		return gw.Close()
	default:
		return fmt.Errorf("fsstore: unsupported compression method %d", method)
	}
}

func decompress(r io.Reader, method CompressMethod) ([]byte, error) {
	switch method {
	case MethodStore:
		return io.ReadAll(r)
	case MethodZstd:
		dec, err := getZstdDecoder(r)
		if err != nil {
			return nil, err
		}
		defer putZstdDecoder(dec)
		return io.ReadAll(dec)
	case MethodGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		return io.ReadAll(gr)
	default:
		return nil, fmt.Errorf("fsstore: unsupported compression method %d", method)
	}
}

// writeObject stores plaintext content-addressed at path: 4-byte magic,
// 2-byte version, 2-byte method, 8-byte uncompressed length, then the
// (possibly compressed) payload -- the same fixed header shape as the
// teacher's fileStorer.hashToInternal, minus the blob-specific framing it
// doesn't need here. Writing is atomic: encode to a temp file beside path,
// then rename over it, so a reader never observes a partial object, and
// writing identical content twice (two processes racing to write the same
// id) is a harmless no-op tie.
func writeObject(path string, plaintext []byte, method CompressMethod) error {
	if _, err := os.Stat(path); err == nil {
		return nil // content-addressed: already present, nothing to do.
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + fmt.Sprintf(".tmp-%d", os.Getpid())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	writeErr := func() error {
		if _, err := f.Write(objectMagic[:]); err != nil {
			return err
		}
		if err := binary.Write(f, binary.BigEndian, objectVersion); err != nil {
			return err
		}
		if err := binary.Write(f, binary.BigEndian, uint16(method)); err != nil {
			return err
		}
		if err := binary.Write(f, binary.BigEndian, uint64(len(plaintext))); err != nil {
			return err
		}
		return compressInto(f, plaintext, method)
	}()
	closeErr := f.Close()
	if writeErr != nil {
		_ = os.Remove(tmp)
		return writeErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return closeErr
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// readObject reads back an object written by writeObject, verifying the
// magic and decompressing with the method recorded in the header (so the
// store's current CompressionAlgo setting may change across the repository's
// lifetime without invalidating objects written under a prior setting).
func readObject(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, err
	}
	defer f.Close()
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, fmt.Errorf("fsstore: short read: %w", err)
	}
	if magic != objectMagic {
		return nil, fmt.Errorf("fsstore: bad object magic at %s", path)
	}
	var version, method uint16
	var size uint64
	if err := binary.Read(f, binary.BigEndian, &version); err != nil {
		return nil, err
	}
	if err := binary.Read(f, binary.BigEndian, &method); err != nil {
		return nil, err
	}
	if err := binary.Read(f, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	plaintext, err := decompress(f, CompressMethod(method))
	if err != nil {
		return nil, fmt.Errorf("fsstore: decompress %s: %w", path, err)
	}
	if uint64(len(plaintext)) != size {
		return nil, fmt.Errorf("fsstore: size mismatch at %s: header says %d, got %d", path, size, len(plaintext))
	}
	return plaintext, nil
}

// NotFoundError is returned by readObject (surfaced through GetCommit,
// ReadOperation, ReadView) when no object exists at the content-addressed
// path computed for the requested id.
type NotFoundError struct{ Path string }

func (e *NotFoundError) Error() string { return "fsstore: object not found: " + e.Path }
