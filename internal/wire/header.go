package wire

// HeaderSize is the fixed size of a DNS header in bytes (RFC 1035
// Section 4.1.1).
const HeaderSize = 12

// Header is the fixed 12-byte DNS message header.
type Header struct {
	ID uint16

	RecursionDesired    bool
	Truncated           bool
	AuthoritativeAnswer bool
	Response            bool
	Opcode              uint8

	ResultCode        ResultCode
	CheckingDisabled  bool
	AuthedData        bool
	Z                 bool
	RecursionAvailable bool

	Questions   uint16
	Answers     uint16
	Authorities uint16
	Additionals uint16
}

// Read parses a Header from buf at the current cursor, advancing it by
// HeaderSize bytes.
func (h *Header) Read(buf *Buffer) error {
	id, err := buf.ReadU16()
	if err != nil {
		return err
	}
	b2, err := buf.ReadByte()
	if err != nil {
		return err
	}
	b3, err := buf.ReadByte()
	if err != nil {
		return err
	}
	qd, err := buf.ReadU16()
	if err != nil {
		return err
	}
	an, err := buf.ReadU16()
	if err != nil {
		return err
	}
	ns, err := buf.ReadU16()
	if err != nil {
		return err
	}
	ar, err := buf.ReadU16()
	if err != nil {
		return err
	}

	h.ID = id
	h.RecursionDesired = b2&flagRD != 0
	h.Truncated = b2&flagTC != 0
	h.AuthoritativeAnswer = b2&flagAA != 0
	h.Response = b2&flagQR != 0
	h.Opcode = (b2 >> opcodeShift) & opcodeMask

	h.ResultCode = ResultCodeFromNum(b3)
	h.CheckingDisabled = b3&flagCD != 0
	h.AuthedData = b3&flagAD != 0
	h.Z = b3&flagZ != 0
	h.RecursionAvailable = b3&flagRA != 0

	h.Questions = qd
	h.Answers = an
	h.Authorities = ns
	h.Additionals = ar
	return nil
}

// Write serializes h to buf at the current cursor, advancing it by
// HeaderSize bytes.
func (h *Header) Write(buf *Buffer) error {
	if err := buf.WriteU16(h.ID); err != nil {
		return err
	}

	var b2 uint8
	if h.RecursionDesired {
		b2 |= flagRD
	}
	if h.Truncated {
		b2 |= flagTC
	}
	if h.AuthoritativeAnswer {
		b2 |= flagAA
	}
	if h.Response {
		b2 |= flagQR
	}
	b2 |= (h.Opcode & opcodeMask) << opcodeShift
	if err := buf.WriteByte(b2); err != nil {
		return err
	}

	var b3 uint8
	b3 |= uint8(h.ResultCode) & rcodeMask
	if h.CheckingDisabled {
		b3 |= flagCD
	}
	if h.AuthedData {
		b3 |= flagAD
	}
	if h.Z {
		b3 |= flagZ
	}
	if h.RecursionAvailable {
		b3 |= flagRA
	}
	if err := buf.WriteByte(b3); err != nil {
		return err
	}

	if err := buf.WriteU16(h.Questions); err != nil {
		return err
	}
	if err := buf.WriteU16(h.Answers); err != nil {
		return err
	}
	if err := buf.WriteU16(h.Authorities); err != nil {
		return err
	}
	return buf.WriteU16(h.Additionals)
}
