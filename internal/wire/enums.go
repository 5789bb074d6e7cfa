package wire

// Header flag masks, byte 3 (index 2 of the 12-byte header):
//
//	+--+--+--+--+--+--+--+--+
//	|RD|TC|AA|  OPCODE  |QR|
//	+--+--+--+--+--+--+--+--+
//	 0  1  2  3  4  5  6  7   (bit position, LSB first)
//
// and byte 4 (index 3):
//
//	+--+--+--+--+--+--+--+--+
//	|        RCODE    |CD|AD| Z|RA|
//	+--+--+--+--+--+--+--+--+
const (
	flagRD uint8 = 1 << 0 // recursion desired
	flagTC uint8 = 1 << 1 // truncated
	flagAA uint8 = 1 << 2 // authoritative answer
	// bits 3-6: opcode
	flagQR uint8 = 1 << 7 // response

	opcodeShift = 3
	opcodeMask  = 0x0F

	// byte 4
	rcodeMask uint8 = 0x0F
	flagCD    uint8 = 1 << 4 // checking disabled
	flagAD    uint8 = 1 << 5 // authed data
	flagZ     uint8 = 1 << 6 // reserved
	flagRA    uint8 = 1 << 7 // recursion available
)

// ResultCode is the 4-bit RCODE field of the header.
type ResultCode uint8

const (
	NoError  ResultCode = 0
	FormErr  ResultCode = 1
	ServFail ResultCode = 2
	NxDomain ResultCode = 3
	NotImp   ResultCode = 4
	Refused  ResultCode = 5
)

// ResultCodeFromNum maps an arbitrary 4-bit value to a ResultCode,
// defaulting unrecognized values to NoError.
func ResultCodeFromNum(n uint8) ResultCode {
	switch ResultCode(n & rcodeMask) {
	case NoError, FormErr, ServFail, NxDomain, NotImp, Refused:
		return ResultCode(n & rcodeMask)
	default:
		return NoError
	}
}

// QueryType identifies the RR type of a question or record.
type QueryType struct {
	num     uint16
	unknown bool
}

var (
	TypeA     = QueryType{num: 1}
	TypeNS    = QueryType{num: 2}
	TypeCNAME = QueryType{num: 5}
	TypeMX    = QueryType{num: 15}
	TypeAAAA  = QueryType{num: 28}
)

// UnknownType wraps a numeric query type this codec does not interpret
// beyond consuming its bytes.
func UnknownType(n uint16) QueryType {
	switch n {
	case 1, 2, 5, 15, 28:
		return QueryType{num: n}
	default:
		return QueryType{num: n, unknown: true}
	}
}

// Num returns the wire numeric value of the query type.
func (q QueryType) Num() uint16 { return q.num }

// IsUnknown reports whether this is a type outside {A,NS,CNAME,MX,AAAA}.
func (q QueryType) IsUnknown() bool { return q.unknown }

func (q QueryType) String() string {
	switch q.num {
	case 1:
		return "A"
	case 2:
		return "NS"
	case 5:
		return "CNAME"
	case 15:
		return "MX"
	case 28:
		return "AAAA"
	default:
		return "UNKNOWN"
	}
}

// classIN is the only record class this codec ever writes; the class
// read off the wire is validated-free and discarded (see Question).
const classIN uint16 = 1
