package platform

import (
	"io"
	"sync"
)

// BufferSize is the chunk size used by every streaming copy in ferry.
const BufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, BufferSize)
		return &b
	},
}

// GetBuffer borrows a BufferSize scratch buffer. Return it with PutBuffer.
func GetBuffer() *[]byte {
	return bufPool.Get().(*[]byte) //nolint:forcetypeassert // pool only holds *[]byte
}

// PutBuffer returns a buffer obtained from GetBuffer.
func PutBuffer(b *[]byte) {
	bufPool.Put(b)
}

// copyReadWrite streams Src into Dst through a pooled buffer.
func copyReadWrite(params CopyFileParams) (CopyResult, error) {
	bufp := GetBuffer()
	defer PutBuffer(bufp)

	// Strip ReaderFrom/WriterTo so io.CopyBuffer really uses the buffer
	// instead of looping back into copy_file_range.
	n, err := io.CopyBuffer(struct{ io.Writer }{params.Dst}, struct{ io.Reader }{params.Src}, *bufp)
	return CopyResult{BytesWritten: n, Method: ReadWrite}, err
}

// CopyReadWrite is the exported version for use by other packages during testing.
func CopyReadWrite(params CopyFileParams) (CopyResult, error) {
	return copyReadWrite(params)
}
