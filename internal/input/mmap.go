package input

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// MmapReader maps a document into memory instead of copying it.
// Worth it for large corpora fed in via --file; the engine scans the
// mapped pages directly.
type MmapReader struct{}

// NewMmapReader creates a new MmapReader.
func NewMmapReader() *MmapReader {
	return &MmapReader{}
}

// readMmap memory-maps an already-opened fd of known size.
func readMmap(fd int, size int64) (ReadResult, error) {
	// the engine sweeps the text front to back
	unix.Fadvise(fd, 0, size, unix.FADV_SEQUENTIAL)

	// MAP_POPULATE prefaults the pages so the first scan does not stall
	data, err := syscall.Mmap(fd, 0, int(size), syscall.PROT_READ, syscall.MAP_PRIVATE|syscall.MAP_POPULATE)
	if err != nil {
		// fall back to a buffered read from the already-open fd
		return readBuffered(fd, size)
	}

	unix.Madvise(data, unix.MADV_SEQUENTIAL)

	return ReadResult{
		Data: data,
		Closer: func() error {
			unix.Madvise(data, unix.MADV_DONTNEED)
			syscall.Munmap(data)
			unix.Close(fd)
			return nil
		},
	}, nil
}

func (r *MmapReader) Read(path string) (ReadResult, error) {
	fd, err := openFile(path)
	if err != nil {
		return ReadResult{}, fmt.Errorf("open %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return ReadResult{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if stat.Size == 0 {
		unix.Close(fd)
		return ReadResult{Data: nil, Closer: noopCloser}, nil
	}

	return readMmap(fd, stat.Size)
}

// NewAdaptiveReader returns a Reader that opens the document once,
// stats it via fstat and picks the load strategy by size: pooled
// pread for typical sample texts, mmap once the file crosses the
// threshold.
func NewAdaptiveReader(mmapThreshold int64) Reader {
	return &adaptiveReader{
		threshold: mmapThreshold,
	}
}

type adaptiveReader struct {
	threshold int64
}

func (r *adaptiveReader) Read(path string) (ReadResult, error) {
	fd, err := openFile(path)
	if err != nil {
		return ReadResult{}, fmt.Errorf("open %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return ReadResult{}, fmt.Errorf("stat %s: %w", path, err)
	}

	size := stat.Size
	if size == 0 {
		unix.Close(fd)
		return ReadResult{Data: nil, Closer: noopCloser}, nil
	}

	if size >= r.threshold {
		return readMmap(fd, size)
	}
	return readBuffered(fd, size)
}

// openFile opens a file with O_NOATIME, falling back without it.
func openFile(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOATIME, 0)
	if err != nil {
		fd, err = unix.Open(path, unix.O_RDONLY, 0)
	}
	return fd, err
}
