package streams

import (
	"io"

	"github.com/bokysan/streamio/internal/rawio"
	"github.com/davecgh/go-spew/spew"
)

// StreamState is the serialized state of a buffered stream: the content (only for in-memory channels, nil
// otherwise), the logical position and any extra attributes set on the stream.
type StreamState struct {
	Content    []byte
	Position   int64
	Attributes map[string]interface{}
}

var stateDumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func (s StreamState) String() string {
	return stateDumper.Sdump(s)
}

// SetAttribute stores an extra attribute which is carried in the serialized state
func (b *BufferedStream) SetAttribute(name string, value interface{}) {
	b.attributes[name] = value
}

// Attribute returns an extra attribute previously set with SetAttribute or SetState
func (b *BufferedStream) Attribute(name string) (interface{}, bool) {
	v, ok := b.attributes[name]
	return v, ok
}

// State flushes the stream and returns its serialized state
func (b *BufferedStream) State() (*StreamState, error) {
	if err := b.checkClosed("getstate"); err != nil {
		return nil, err
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}
	pos, err := b.Tell()
	if err != nil {
		return nil, err
	}
	st := &StreamState{
		Position:   pos,
		Attributes: make(map[string]interface{}, len(b.attributes)),
	}
	if m, ok := b.raw.(*rawio.MemoryChannel); ok {
		st.Content = m.Bytes()
	}
	for k, v := range b.attributes {
		st.Attributes[k] = v
	}
	return st, nil
}

// SetState restores a state returned by State. Content can only be restored into an in-memory channel.
func (b *BufferedStream) SetState(st *StreamState) error {
	if st == nil {
		return usageError("setstate", "state must not be nil")
	}
	if err := b.checkClosed("setstate"); err != nil {
		return err
	}
	if st.Position < 0 {
		return usageError("setstate", "position value cannot be negative")
	}
	if err := b.Flush(); err != nil {
		return err
	}
	if st.Content != nil {
		m, ok := b.raw.(*rawio.MemoryChannel)
		if !ok {
			return unsupportedError("setstate", "content can only be restored into a memory channel")
		}
		if err := m.SetBytes(st.Content); err != nil {
			return channelError("setstate", err)
		}
		b.absPos = -1
		b.rawPos = -1
		if b.readable {
			b.resetReadBuf()
		}
	}
	if _, err := b.Seek(st.Position, io.SeekStart); err != nil {
		return err
	}
	b.attributes = make(map[string]interface{}, len(st.Attributes))
	for k, v := range st.Attributes {
		b.attributes[k] = v
	}
	return nil
}
