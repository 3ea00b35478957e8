package frame

// Wire format: 'w' <code> <payload...> ESC. There is no length field and no
// checksum; the decoder resynchronizes by scanning for the next delimiter.
const (
	Delimiter  byte = 'w'
	Terminator byte = 0x1B

	// DefaultMaxPayload matches the board driver's 32 byte read buffer minus
	// the scratch slot and the terminator slot.
	DefaultMaxPayload = 30
)

// Frame is one delimiter-to-terminator unit as it came off the wire.
type Frame struct {
	Code    byte
	Payload []byte
	// Retries counts the would-block results seen while the payload was
	// being collected. Diagnostic only.
	Retries int
}

// Text returns the payload with its final byte dropped. The board always
// sends one trailing byte after the number, and the host driver has always
// cut it before conversion; an empty payload yields an empty text.
func (f Frame) Text() string {
	if len(f.Payload) == 0 {
		return ""
	}
	return string(f.Payload[:len(f.Payload)-1])
}

// Append encodes a frame onto dst. The payload is written verbatim, so
// callers that want Text to round-trip must add the trailing byte themselves.
func Append(dst []byte, code byte, payload []byte) []byte {
	dst = append(dst, Delimiter, code)
	dst = append(dst, payload...)
	return append(dst, Terminator)
}
