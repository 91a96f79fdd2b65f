package dissect

import (
	"strconv"

	"firestige.xyz/nf2cap/internal/core"
	"firestige.xyz/nf2cap/internal/eventcap"
)

// Labels flattens the frame header into reporter labels.
func Labels(f *eventcap.Frame) core.Labels {
	h := f.Header
	labels := core.Labels{
		core.LabelNF2Version:   strconv.Itoa(int(h.Version)),
		core.LabelNF2NumEvents: strconv.Itoa(int(h.NumEvents)),
		core.LabelNF2Seq:       strconv.FormatUint(uint64(h.Seq), 10),
		core.LabelNF2Time:      eventcap.FormatTimestamp(h.Timestamp),
		core.LabelNF2Ticks:     strconv.FormatUint(h.Timestamp.Ticks(), 10),
		core.LabelNF2Records:   strconv.Itoa(len(f.Records)),
		core.LabelNF2Info:      f.Summary(),
	}
	if f.CountMismatch() {
		labels[core.LabelNF2Mismatch] = "true"
	}
	return labels
}
