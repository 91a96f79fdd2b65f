// Package eventcap decodes NetFPGA event capture frames.
//
// A frame is a fixed 78-byte header followed by a stream of compact event
// records. All multi-byte integers are big-endian.
//
//	offset  size   field
//	0       1      version (low nibble), reserved (high nibble)
//	1       1      number of events
//	2       4      sequence number
//	6       64     8 x (queue size in 64-bit words, queue size in packets)
//	70      4      timestamp, upper half
//	74      4      timestamp, lower half
//	78      ...    event records
//
// The top two bits of each record select its shape. A zero tag marks an
// 8-byte timestamp refresh carrying both timestamp halves. Any other tag marks
// a 4-byte short event whose low bits replace only the low bits of the running
// timestamp, so records must be decoded in order.
//
// Timestamps count ticks of 8 nanoseconds.
package eventcap
