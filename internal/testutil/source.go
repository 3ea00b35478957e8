package testutil

import (
	"io"

	"github.com/d21d3q/goweatherboard/internal/frame"
)

// Pad is the trailing byte Frame appends after the text; the decoder drops it.
const Pad = '\n'

// Frame encodes one wire frame whose decoded text is text.
func Frame(code byte, text string) []byte {
	return frame.Append(nil, code, append([]byte(text), Pad))
}

// Stream concatenates encoded frames and any raw noise into one stream.
func Stream(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ScriptedSource replays data through the ByteSource contract and injects
// would-block results at chosen offsets.
type ScriptedSource struct {
	data   []byte
	pos    int
	blocks map[int]int
	served map[int]int

	// Starve makes an exhausted source report would-block forever instead
	// of closing.
	Starve bool
	// CloseErr is returned once the data is exhausted; io.EOF when nil.
	CloseErr error
	// OnBlock runs before every would-block result with the running total.
	OnBlock func(total int)

	// Blocks counts the would-block results handed out.
	Blocks int
}

// NewScriptedSource returns a source that replays data.
func NewScriptedSource(data []byte) *ScriptedSource {
	return &ScriptedSource{
		data:   data,
		blocks: make(map[int]int),
		served: make(map[int]int),
	}
}

// BlockBefore reports n would-blocks before the byte at offset is delivered.
func (s *ScriptedSource) BlockBefore(offset, n int) *ScriptedSource {
	s.blocks[offset] += n
	return s
}

// BlockEverywhere reports n would-blocks before every byte.
func (s *ScriptedSource) BlockEverywhere(n int) *ScriptedSource {
	for i := range s.data {
		s.blocks[i] += n
	}
	return s
}

// Remaining reports how many bytes have not been delivered yet.
func (s *ScriptedSource) Remaining() int {
	return len(s.data) - s.pos
}

// ReadByte implements frame.ByteSource.
func (s *ScriptedSource) ReadByte() (byte, error) {
	if s.pos >= len(s.data) {
		if s.Starve {
			return 0, s.block()
		}
		if s.CloseErr != nil {
			return 0, s.CloseErr
		}
		return 0, io.EOF
	}
	if s.served[s.pos] < s.blocks[s.pos] {
		s.served[s.pos]++
		return 0, s.block()
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *ScriptedSource) block() error {
	s.Blocks++
	if s.OnBlock != nil {
		s.OnBlock(s.Blocks)
	}
	return frame.ErrWouldBlock
}
