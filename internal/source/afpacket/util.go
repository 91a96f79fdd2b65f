package afpacket

import (
	"fmt"
)

const (
	tpacketAlignment = 16
	tpacketHdrLen    = 52 // TPACKET3_HDRLEN rounded up
	targetBlockSize  = 1 << 20
)

// recomputeSize lays out a PACKET_MMAP ring of about bufferSizeMB. Frames
// hold the tpacket header plus snapLen bytes and either divide or are a
// multiple of the page, so blocks can be a whole number of both.
func recomputeSize(bufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if bufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("afpacket: buffer size must be positive, got %d MB", bufferSizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("afpacket: snap length must be positive, got %d", snapLen)
	}
	if pageSize < tpacketAlignment || pageSize&(pageSize-1) != 0 {
		return 0, 0, 0, fmt.Errorf("afpacket: page size %d is not a power of two", pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)
	if frameSize <= pageSize {
		frameSize = nextPow2(frameSize)
	} else {
		frameSize = alignUp(frameSize, pageSize)
	}

	unit := max(frameSize, pageSize)
	blockSize = unit * max(1, targetBlockSize/unit)
	numBlocks = bufferSizeMB * 1024 * 1024 / blockSize
	if numBlocks < 1 {
		return 0, 0, 0, fmt.Errorf("afpacket: %d MB cannot hold one %d byte block", bufferSizeMB, blockSize)
	}
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
