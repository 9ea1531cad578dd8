// Package platform copies whole files between local descriptors using the
// cheapest mechanism the kernel offers.
package platform

import "os"

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFileParams names an open source and destination. Both offsets must be
// at zero; the destination should be empty.
type CopyFileParams struct {
	Src  *os.File
	Dst  *os.File
	Size int64 // expected source size, used for preallocation only
}
