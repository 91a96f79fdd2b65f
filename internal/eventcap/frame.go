package eventcap

import "fmt"

// Frame is a fully decoded header plus event stream.
type Frame struct {
	Header  Header
	Records []Record

	// Trailing counts bytes after the last complete record. They are never
	// decoded.
	Trailing int

	// Decoded is the number of records read off the wire. It survives
	// filtering of Records.
	Decoded int
}

// DecodeFrame decodes the header and drains the event stream that follows
// it. Only a buffer shorter than the header fails.
func DecodeFrame(buf []byte) (*Frame, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}

	it := NewEventIterator(buf[HeaderLen:], h.Timestamp)
	f := &Frame{Header: h}
	for it.Next() {
		f.Records = append(f.Records, it.Record())
	}
	f.Trailing = it.Remaining()
	f.Decoded = len(f.Records)
	return f, nil
}

// CountMismatch reports whether the header's event count disagrees with the
// number of records decoded from the wire. Decoding relies on the buffer
// length only, so a mismatch is informational.
func (f *Frame) CountMismatch() bool {
	return int(f.Header.NumEvents) != f.Decoded
}

// Summary returns a one-line description of the frame.
func (f *Frame) Summary() string {
	return fmt.Sprintf("NF2 Update v%d (seq=%d, time=%s)",
		f.Header.Version, f.Header.Seq, FormatTimestamp(f.Header.Timestamp))
}

// Describe renders one record the way the summary renders a frame.
func Describe(r Record) string {
	switch r := r.(type) {
	case TimestampRefresh:
		return fmt.Sprintf("%s @ %s", TypeTimestamp, r.Timestamp)
	case ShortEvent:
		return fmt.Sprintf("%s %s len=%d @ %s", r.Kind, QueueName(r.QueueID), r.PacketLen, r.Timestamp)
	default:
		return fmt.Sprintf("%T", r)
	}
}
