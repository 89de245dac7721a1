//go:build !linux

package linker

func (out *OutBuf) mmap(size uint64) error {
	return nil
}

func (out *OutBuf) munmap() error {
	return nil
}
