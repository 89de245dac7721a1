package linker

import (
	"fmt"
	"os"
)

// OutBuf is the output file being written. On Linux the file is mapped
// and chunks write straight into it; elsewhere, or when mapping fails,
// the image is built on the heap and written out by Close.
type OutBuf struct {
	f      *os.File
	name   string
	buf    []byte
	mapped bool
}

// OpenOutBuf creates name with room for size bytes.
func OpenOutBuf(name string, size uint64) (*OutBuf, error) {
	os.Remove(name)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0777)
	if err != nil {
		return nil, fmt.Errorf("cannot open output file: %w", err)
	}
	out := &OutBuf{f: f, name: name}
	if err := out.mmap(size); err != nil || out.buf == nil {
		out.buf = make([]byte, size)
		out.mapped = false
	}
	return out, nil
}

func (out *OutBuf) Bytes() []byte {
	return out.buf
}

// Close flushes the image and closes the file.
func (out *OutBuf) Close() error {
	var err error
	if out.mapped {
		err = out.munmap()
	} else if len(out.buf) > 0 {
		_, err = out.f.WriteAt(out.buf, 0)
	}
	if cerr := out.f.Close(); err == nil {
		err = cerr
	}
	out.buf = nil
	if err != nil {
		return fmt.Errorf("%s: %w", out.name, err)
	}
	return nil
}

// Remove discards a partially written output.
func (out *OutBuf) Remove() {
	if out.buf != nil {
		if out.mapped {
			out.munmap()
		}
		out.f.Close()
		out.buf = nil
	}
	os.Remove(out.name)
}
