package linker

import (
	"golang.org/x/sys/unix"
)

func (out *OutBuf) mmap(size uint64) error {
	if size == 0 {
		return nil
	}
	fd := int(out.f.Fd())
	// a full disk must fail here, not as SIGBUS while writing
	if err := unix.Fallocate(fd, 0, 0, int64(size)); err != nil && err != unix.EOPNOTSUPP {
		return err
	}
	if err := out.f.Truncate(int64(size)); err != nil {
		return err
	}
	buf, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	out.buf = buf
	out.mapped = true
	return nil
}

func (out *OutBuf) munmap() error {
	if err := unix.Msync(out.buf, unix.MS_SYNC); err != nil {
		unix.Munmap(out.buf)
		return err
	}
	return unix.Munmap(out.buf)
}
