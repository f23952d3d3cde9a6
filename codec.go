// SPDX-License-Identifier: GPL-3.0-or-later

package dnsim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"strings"

	"github.com/bassosimone/runtimex"
	"golang.org/x/net/idna"
)

// QueryType is the DNS query type carried in the question section.
type QueryType uint16

// Query types supported by the codec. The values are the RFC 1035
// TYPE codes as they appear on the wire.
const (
	TypeA     QueryType = 1
	TypeCNAME QueryType = 5
	TypeMX    QueryType = 15
	TypeTXT   QueryType = 16
	TypeAAAA  QueryType = 28
)

// String returns the RFC 1035 mnemonic for the query type.
func (qt QueryType) String() string {
	switch qt {
	case TypeA:
		return "A"
	case TypeCNAME:
		return "CNAME"
	case TypeMX:
		return "MX"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	default:
		return fmt.Sprintf("TYPE%d", uint16(qt))
	}
}

const (
	// headerSize is the size of the fixed DNS message header.
	headerSize = 12

	// maxLabelSize is the maximum size of a single name label.
	maxLabelSize = 63

	// maxNameSize is the maximum size of an encoded QNAME.
	maxNameSize = 255

	// maxDatagramSize is the classic DNS-over-UDP response ceiling. We
	// do not negotiate larger sizes via EDNS.
	maxDatagramSize = 512
)

const (
	// queryFlagsRecursionDesired is the flags word of a standard
	// query with the RD bit set.
	queryFlagsRecursionDesired = 0x0100

	// classINET is the Internet class code.
	classINET = 1

	// rcodeNoError is the RCODE of a successful response.
	rcodeNoError = 0

	// rcodeNXDomain is the RCODE signaling a non-existent domain,
	// which filtering servers use to deny resolution.
	rcodeNXDomain = 3

	// rrTypeA is the TYPE code of an IPv4 address record.
	rrTypeA = 1

	// compressionMask marks a length byte as a 2-byte compression
	// pointer when both high bits are set.
	compressionMask = 0xc0
)

// Errors emitted by [EncodeQuery].
var (
	// ErrEncodeName means that the domain cannot be represented
	// in ASCII DNS wire format.
	ErrEncodeName = errors.New("cannot encode domain name")

	// ErrLabelTooLong means that a name label exceeds 63 bytes.
	ErrLabelTooLong = errors.New("label exceeds 63 bytes")

	// ErrNameTooLong means that the encoded name exceeds 255 bytes.
	ErrNameTooLong = errors.New("name exceeds 255 bytes")
)

// Errors emitted by [DecodeResponse].
var (
	// ErrShortMessage means that the message is under 12 bytes and
	// cannot even contain a header.
	ErrShortMessage = errors.New("message shorter than header")

	// ErrTruncatedMessage means that walking the question or answer
	// sections would read past the end of the message.
	ErrTruncatedMessage = errors.New("truncated message")
)

// EncodeQuery serializes a standard query for the given domain and query
// type. The header uses a random transaction identifier, sets the RD
// bit, and announces exactly one question. The question encodes each
// dot-separated label of the domain with a length prefix, terminated by
// a zero byte, followed by the type and Internet class codes.
//
// The domain is IDNA-normalized first, so Unicode names are accepted.
// Empty labels produced by leading, trailing, or doubled dots are
// skipped.
func EncodeQuery(domain string, qtype QueryType) ([]byte, error) {
	return encodeQueryWithID(domain, qtype, uint16(1+rand.IntN(65535)))
}

// encodeQueryWithID is [EncodeQuery] with a caller-chosen transaction ID.
func encodeQueryWithID(domain string, qtype QueryType, id uint16) ([]byte, error) {
	// 1. Drop empty labels, then IDNA encode the remaining name.
	labels := make([]string, 0, strings.Count(domain, ".")+1)
	for part := range strings.SplitSeq(domain, ".") {
		if part != "" {
			labels = append(labels, part)
		}
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: empty name", ErrEncodeName)
	}
	punyName, err := idna.Lookup.ToASCII(strings.Join(labels, "."))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEncodeName, err.Error())
	}

	// 2. Enforce the wire-format name limits. The IDNA lookup profile
	// does not verify DNS lengths, so we must.
	labels = strings.Split(punyName, ".")
	nameSize := 1 // terminating zero byte
	for _, label := range labels {
		if len(label) > maxLabelSize {
			return nil, fmt.Errorf("%w: %q", ErrLabelTooLong, label)
		}
		nameSize += 1 + len(label)
	}
	if nameSize > maxNameSize {
		return nil, fmt.Errorf("%w: %q", ErrNameTooLong, punyName)
	}

	// 3. Write the header: ID, flags, QDCOUNT=1, ANCOUNT=0,
	// NSCOUNT=0, ARCOUNT=0.
	buf := make([]byte, 0, headerSize+nameSize+4)
	buf = binary.BigEndian.AppendUint16(buf, id)
	buf = binary.BigEndian.AppendUint16(buf, queryFlagsRecursionDesired)
	buf = binary.BigEndian.AppendUint16(buf, 1)
	buf = binary.BigEndian.AppendUint16(buf, 0)
	buf = binary.BigEndian.AppendUint16(buf, 0)
	buf = binary.BigEndian.AppendUint16(buf, 0)

	// 4. Write the question: length-prefixed labels, zero terminator,
	// QTYPE, and QCLASS.
	for _, label := range labels {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0)
	buf = binary.BigEndian.AppendUint16(buf, uint16(qtype))
	buf = binary.BigEndian.AppendUint16(buf, classINET)
	runtimex.Assert(len(buf) == headerSize+nameSize+4)
	return buf, nil
}

// DecodeResponse parses a raw DNS response, returning the RCODE and the
// IPv4 addresses of any A answers in message order.
//
// Messages under 12 bytes fail with [ErrShortMessage]. When the header
// announces answers and the RCODE is zero, the decoder walks past the
// question section and iterates the answer records, extracting the
// RDATA of A records and skipping everything else. Names may use RFC
// 1035 compression pointers. Every offset is bounds checked: any read
// past the end of the message fails with [ErrTruncatedMessage], and a
// truncated message never yields a partial address list.
func DecodeResponse(raw []byte) (int, []string, error) {
	// 1. Parse the header fields we care about.
	if len(raw) < headerSize {
		return 0, nil, ErrShortMessage
	}
	flags := binary.BigEndian.Uint16(raw[2:4])
	qdcount := int(binary.BigEndian.Uint16(raw[4:6]))
	ancount := int(binary.BigEndian.Uint16(raw[6:8]))
	rcode := int(flags & 0x000f)

	// 2. Without answers, or with a nonzero RCODE, the header is all
	// the caller needs.
	if ancount == 0 || rcode != rcodeNoError {
		return rcode, nil, nil
	}

	// 3. Walk past the question section: the possibly-compressed
	// name, then QTYPE and QCLASS.
	off := headerSize
	for range qdcount {
		var err error
		if off, err = skipName(raw, off); err != nil {
			return 0, nil, err
		}
		if off+4 > len(raw) {
			return 0, nil, ErrTruncatedMessage
		}
		off += 4
	}

	// 4. Iterate the answer records, collecting A addresses.
	var addrs []string
	for range ancount {
		var err error
		if off, err = skipName(raw, off); err != nil {
			return 0, nil, err
		}
		if off+10 > len(raw) {
			return 0, nil, ErrTruncatedMessage
		}
		rrtype := int(binary.BigEndian.Uint16(raw[off : off+2]))
		rdlength := int(binary.BigEndian.Uint16(raw[off+8 : off+10]))
		off += 10
		if off+rdlength > len(raw) {
			return 0, nil, ErrTruncatedMessage
		}
		if rrtype == rrTypeA && rdlength == 4 {
			addr := netip.AddrFrom4([4]byte(raw[off : off+4]))
			addrs = append(addrs, addr.String())
		}
		off += rdlength
	}
	return rcode, addrs, nil
}

// skipName advances past a name starting at off, which is either a
// sequence of length-prefixed labels terminated by a zero byte or,
// at any point, a 2-byte compression pointer.
func skipName(raw []byte, off int) (int, error) {
	for {
		if off >= len(raw) {
			return 0, ErrTruncatedMessage
		}
		length := raw[off]
		switch {
		case length == 0:
			return off + 1, nil
		case length&compressionMask == compressionMask:
			if off+2 > len(raw) {
				return 0, ErrTruncatedMessage
			}
			return off + 2, nil
		default:
			off += 1 + int(length)
		}
	}
}
