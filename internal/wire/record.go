package wire

import (
	"fmt"
	"net"
)

// RecordData is the type-specific payload of a resource record. Each
// wire record type gets an explicit Go type rather than a generic
// blob, so record semantics stay visible at the call site.
type RecordData interface {
	Type() QueryType
	writeRData(buf *Buffer) error
}

// Record is a DNS resource record: a domain name, a TTL, and a
// type-specific payload.
type Record struct {
	Domain string
	TTL    uint32
	Data   RecordData
}

// ARecord is a 4-byte IPv4 address (RFC 1035 Section 3.4.1).
type ARecord struct{ Addr net.IP }

func (ARecord) Type() QueryType { return TypeA }
func (r ARecord) writeRData(buf *Buffer) error {
	ip4 := r.Addr.To4()
	if ip4 == nil {
		return fmt.Errorf("%w: A record address is not IPv4", ErrInvalidLabel)
	}
	return buf.WriteBytes(ip4)
}

// AAAARecord is a 16-byte IPv6 address (RFC 3596).
type AAAARecord struct{ Addr net.IP }

func (AAAARecord) Type() QueryType { return TypeAAAA }
func (r AAAARecord) writeRData(buf *Buffer) error {
	ip16 := r.Addr.To16()
	if ip16 == nil {
		return fmt.Errorf("%w: AAAA record address is not IPv6", ErrInvalidLabel)
	}
	return buf.WriteBytes(ip16)
}

// NSRecord names an authoritative server for the owner name.
type NSRecord struct{ Host string }

func (NSRecord) Type() QueryType { return TypeNS }
func (r NSRecord) writeRData(buf *Buffer) error { return writeName(buf, r.Host) }

// CNAMERecord is a canonical-name alias.
type CNAMERecord struct{ Host string }

func (CNAMERecord) Type() QueryType { return TypeCNAME }
func (r CNAMERecord) writeRData(buf *Buffer) error { return writeName(buf, r.Host) }

// MXRecord is a mail-exchange record: a preference and a host name.
type MXRecord struct {
	Priority uint16
	Host     string
}

func (MXRecord) Type() QueryType { return TypeMX }
func (r MXRecord) writeRData(buf *Buffer) error {
	if err := buf.WriteU16(r.Priority); err != nil {
		return err
	}
	return writeName(buf, r.Host)
}

// UnknownRecord marks a record whose type this codec does not
// interpret. Its rdata bytes are consumed on read but not retained,
// and it is never written back out (see Packet.Write).
type UnknownRecord struct {
	QType   QueryType
	DataLen uint16
}

func (u UnknownRecord) Type() QueryType { return u.QType }
func (UnknownRecord) writeRData(buf *Buffer) error {
	panic("wire: UnknownRecord must not be written; Packet.Write skips it")
}

// Read decodes a resource record at the buffer's current cursor.
func (r *Record) Read(buf *Buffer) error {
	domain, err := readName(buf)
	if err != nil {
		return err
	}
	qtypeNum, err := buf.ReadU16()
	if err != nil {
		return err
	}
	if _, err := buf.ReadU16(); err != nil { // class, ignored
		return err
	}
	ttl, err := buf.ReadU32()
	if err != nil {
		return err
	}
	rdlen, err := buf.ReadU16()
	if err != nil {
		return err
	}

	qtype := UnknownType(qtypeNum)
	r.Domain = domain
	r.TTL = ttl

	switch qtype.Num() {
	case TypeA.Num():
		raw, err := buf.ReadRange(int(rdlen))
		if err != nil {
			return err
		}
		r.Data = ARecord{Addr: net.IP(raw)}
	case TypeAAAA.Num():
		raw, err := buf.ReadRange(int(rdlen))
		if err != nil {
			return err
		}
		r.Data = AAAARecord{Addr: net.IP(raw)}
	case TypeNS.Num():
		host, err := readName(buf)
		if err != nil {
			return err
		}
		r.Data = NSRecord{Host: host}
	case TypeCNAME.Num():
		host, err := readName(buf)
		if err != nil {
			return err
		}
		r.Data = CNAMERecord{Host: host}
	case TypeMX.Num():
		priority, err := buf.ReadU16()
		if err != nil {
			return err
		}
		host, err := readName(buf)
		if err != nil {
			return err
		}
		r.Data = MXRecord{Priority: priority, Host: host}
	default:
		if _, err := buf.ReadRange(int(rdlen)); err != nil {
			return err
		}
		r.Data = UnknownRecord{QType: qtype, DataLen: rdlen}
	}
	return nil
}

// Write encodes r to buf. Variable-length payloads (NS, CNAME, MX)
// reserve two rdlength bytes, write the payload, then backfill the
// length from the cursor delta; A/AAAA write a fixed 4/16-byte
// rdlength. Unknown records are never written: Write returns nil
// without touching buf and reports the skip through warn, if non-nil.
func (r *Record) Write(buf *Buffer, warn func(format string, args ...any)) error {
	if _, ok := r.Data.(UnknownRecord); ok {
		if warn != nil {
			warn("skipping unknown record type on encode: domain=%s type=%d", r.Domain, r.Data.Type().Num())
		}
		return nil
	}

	if err := writeName(buf, r.Domain); err != nil {
		return err
	}
	if err := buf.WriteU16(r.Data.Type().Num()); err != nil {
		return err
	}
	if err := buf.WriteU16(classIN); err != nil {
		return err
	}
	if err := buf.WriteU32(r.TTL); err != nil {
		return err
	}

	switch r.Data.Type().Num() {
	case TypeA.Num():
		if err := buf.WriteU16(4); err != nil {
			return err
		}
		return r.Data.writeRData(buf)
	case TypeAAAA.Num():
		if err := buf.WriteU16(16); err != nil {
			return err
		}
		return r.Data.writeRData(buf)
	default:
		rdlenPos := buf.Pos()
		if err := buf.WriteU16(0); err != nil { // placeholder
			return err
		}
		start := buf.Pos()
		if err := r.Data.writeRData(buf); err != nil {
			return err
		}
		return buf.setU16At(rdlenPos, uint16(buf.Pos()-start))
	}
}
