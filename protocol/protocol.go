// Package protocol is the framed serial link between the mmc-host tool and
// the monitor running on the target.
//
// A frame is
//
//	len | seq | payload... | crc16_hi | crc16_lo | 0x7E
//
// where len counts the whole frame, seq carries MessageDest in its high
// nibble and a 4-bit sequence number in the low nibble, and the payload is a
// run of VLQ-encoded command IDs each followed by its arguments. An empty
// payload is an acknowledgement naming the next expected sequence.
package protocol

// Version of the link protocol. Host and target compare it during identify.
const Version = "mmcinit-link-1"

// Frame layout
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 128
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F
)

// Message is one decoded frame.
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // between header and trailer
	CRC      uint16
}

// nextSeq advances a sequence byte, wrapping inside the MessageDest range.
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// scanFrame inspects the front of data for one complete frame. It returns
// the frame length when a valid frame is present, 0 when more bytes are
// needed, and -1 when the front of data cannot start a frame.
func scanFrame(data []byte) int {
	if len(data) < MessageLengthMin {
		return 0
	}
	n := int(data[MessagePositionLen])
	if n < MessageLengthMin || n > MessageLengthMax {
		return -1
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return -1
	}
	if len(data) < n {
		return 0
	}
	if data[n-MessageTrailerSync] != MessageValueSync {
		return -1
	}
	crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
	if crc != CRC16(data[:n-MessageTrailerSize]) {
		return -1
	}
	return n
}

// skipToSync drops everything up to and including the next sync byte. It
// reports whether one was found.
func skipToSync(data []byte) ([]byte, bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}

// appendFrame wraps payload in a header and trailer.
func appendFrame(dst []byte, seq uint8, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, uint8(len(payload)+MessageLengthMin), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync)
}
