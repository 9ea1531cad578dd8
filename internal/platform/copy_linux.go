//go:build linux

package platform

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// maxChunk caps a single copy_file_range/sendfile request.
const maxChunk = 1 << 30

// CopyFile tries copy_file_range, then sendfile, then plain read/write.
// A strategy is abandoned only if it fails before moving any bytes.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	preallocate(params.Dst, params.Size)

	result, err := copyFileRange(params)
	if err == nil || !isFallbackErr(err) || result.BytesWritten > 0 {
		return result, err
	}

	result, err = copySendfile(params)
	if err == nil || !isFallbackErr(err) || result.BytesWritten > 0 {
		return result, err
	}

	return copyReadWrite(params)
}

//nolint:gosec // G115: fd values are small non-negative integers
func copyFileRange(params CopyFileParams) (CopyResult, error) {
	srcFd := int(params.Src.Fd())
	dstFd := int(params.Dst.Fd())

	var total int64
	for {
		n, err := unix.CopyFileRange(srcFd, nil, dstFd, nil, maxChunk, 0)
		if err != nil {
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, err
		}
		if n == 0 {
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, nil
		}
		total += int64(n)
	}
}

//nolint:gosec // G115: fd values are small non-negative integers
func copySendfile(params CopyFileParams) (CopyResult, error) {
	srcFd := int(params.Src.Fd())
	dstFd := int(params.Dst.Fd())

	var total int64
	for {
		n, err := unix.Sendfile(dstFd, srcFd, nil, maxChunk)
		if err != nil {
			return CopyResult{BytesWritten: total, Method: Sendfile}, err
		}
		if n == 0 {
			return CopyResult{BytesWritten: total, Method: Sendfile}, nil
		}
		total += int64(n)
	}
}

// isFallbackErr reports whether err means "this strategy is unavailable here"
// rather than a real I/O failure.
func isFallbackErr(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	switch {
	case errors.Is(err, unix.ENOSYS),
		errors.Is(err, unix.EXDEV),
		errors.Is(err, unix.EINVAL),
		errors.Is(err, unix.EOPNOTSUPP),
		errors.Is(err, unix.EBADF):
		return true
	}
	return false
}
