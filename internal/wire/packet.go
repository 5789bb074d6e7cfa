package wire

import (
	"fmt"
	"log/slog"
)

// Packet is a complete DNS message: a header and its four sections.
// Header counts are trusted on read and recomputed from section
// lengths on write.
type Packet struct {
	Header      Header
	Questions   []Question
	Answers     []Record
	Authorities []Record
	Additionals []Record
}

// ReadPacket decodes a full DNS message out of data, trusting the
// header's section counts to know how many questions/records follow.
// A message that reads fine past 512 bytes cannot occur because Buffer
// itself is bounded at MaxPacketSize.
func ReadPacket(data []byte) (Packet, error) {
	buf := NewBufferFrom(data)

	var p Packet
	if err := p.Header.Read(buf); err != nil {
		return Packet{}, err
	}

	// Cap the initial slice capacity so a bogus header claiming a huge
	// count can't force a large allocation before the first read even
	// runs; the loop bound itself still comes from the header count.
	const maxPrealloc = 16

	p.Questions = make([]Question, 0, min(int(p.Header.Questions), maxPrealloc))
	for i := uint16(0); i < p.Header.Questions; i++ {
		var q Question
		if err := q.Read(buf); err != nil {
			return Packet{}, err
		}
		p.Questions = append(p.Questions, q)
	}

	readRecords := func(n uint16) ([]Record, error) {
		out := make([]Record, 0, min(int(n), maxPrealloc))
		for i := uint16(0); i < n; i++ {
			var r Record
			if err := r.Read(buf); err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	}

	var err error
	if p.Answers, err = readRecords(p.Header.Answers); err != nil {
		return Packet{}, err
	}
	if p.Authorities, err = readRecords(p.Header.Authorities); err != nil {
		return Packet{}, err
	}
	if p.Additionals, err = readRecords(p.Header.Additionals); err != nil {
		return Packet{}, err
	}
	return p, nil
}

// Write encodes p into a fresh 512-byte Buffer, recomputing the
// header's section counts from the slice lengths, and returns the
// used prefix. logger may be nil; when set, it receives a debug entry
// for each Unknown record skipped on encode.
func (p *Packet) Write(logger *slog.Logger) ([]byte, error) {
	buf := NewBuffer()

	h := p.Header
	h.Questions = uint16(len(p.Questions))
	h.Answers = uint16(len(p.Answers))
	h.Authorities = uint16(len(p.Authorities))
	h.Additionals = uint16(len(p.Additionals))

	if err := h.Write(buf); err != nil {
		return nil, err
	}

	for i := range p.Questions {
		if err := p.Questions[i].Write(buf); err != nil {
			return nil, err
		}
	}

	warn := func(format string, args ...any) {
		if logger != nil {
			logger.Debug("record dropped on encode", "detail", fmt.Sprintf(format, args...))
		}
	}

	for _, section := range [][]Record{p.Answers, p.Authorities, p.Additionals} {
		for i := range section {
			if err := section[i].Write(buf, warn); err != nil {
				return nil, err
			}
		}
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
