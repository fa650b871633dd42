package protocol

import (
	"errors"
	"sync/atomic"
)

// ErrHandlerPanic is recorded when a command handler panics. The transport
// drops sync and recovers on the next sync byte.
var ErrHandlerPanic = errors.New("command handler panicked")

// CommandHandler consumes one command's arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the target end of the link. It deframes host commands,
// dispatches them in order and acknowledges every frame. Responses written
// with SendCommand share the sequence of the frame being answered.
type Transport struct {
	synced  uint32 // atomic bool
	nextSeq uint32 // atomic; expected sequence of the next host frame

	output    OutputBuffer
	handler   CommandHandler
	onFlush   func()
	lastError error
}

// NewTransport returns a synchronized transport expecting sequence
// MessageDest.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		synced:  1,
		nextSeq: MessageDest,
		output:  output,
		handler: handler,
	}
}

// Receive consumes every complete frame in input. Partial frames stay in
// input for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.isSynced() {
			var found bool
			data, found = skipToSync(data)
			if found {
				t.setSynced(true)
				t.sendAck()
			}
			continue
		}
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		n := scanFrame(data)
		if n == 0 {
			break
		}
		if n < 0 {
			t.setSynced(false)
			continue
		}

		seq := data[MessagePositionSeq]
		frame := data[MessageHeaderSize : n-MessageTrailerSize]
		data = data[n:]

		expected := uint8(atomic.LoadUint32(&t.nextSeq))
		if seq == MessageDest && expected != MessageDest {
			// host restarted its sequence
			atomic.StoreUint32(&t.nextSeq, MessageDest)
			expected = MessageDest
		}

		// A frame out of sequence is a retransmit or a loss. It is not run;
		// the ack below tells the host which sequence is expected.
		if seq == expected {
			atomic.StoreUint32(&t.nextSeq, uint32(nextSeq(seq)))
			t.lastError = t.dispatch(frame)
		}
		t.sendAck()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// LastError returns the error of the most recently dispatched frame.
func (t *Transport) LastError() error {
	return t.lastError
}

func (t *Transport) dispatch(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynced(false)
			err = ErrHandlerPanic
		}
	}()

	for len(frame) > 0 {
		id, err := DecodeVLQUint(&frame)
		if err != nil {
			t.setSynced(false)
			return err
		}
		if t.handler == nil {
			continue
		}
		// A handler error abandons the rest of the frame but keeps the
		// link synchronized.
		if err := t.handler(uint16(id), &frame); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) sendAck() {
	var buf [MessageLengthMin]byte
	t.output.Output(appendFrame(buf[:0], uint8(atomic.LoadUint32(&t.nextSeq)), nil))
	if t.onFlush != nil {
		t.onFlush()
	}
}

// SendCommand frames one message: the command ID followed by whatever args
// encodes.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(atomic.LoadUint32(&t.nextSeq))})
	EncodeVLQUint(t.output, uint32(cmdID))
	if args != nil {
		args(t.output)
	}
	t.output.Update(start, uint8(len(t.output.DataSince(start))+MessageTrailerSize))
	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// SetFlushCallback installs fn to run after every ack is queued, so a port
// can push it out before the next response.
func (t *Transport) SetFlushCallback(fn func()) {
	t.onFlush = fn
}

func (t *Transport) isSynced() bool {
	return atomic.LoadUint32(&t.synced) != 0
}

func (t *Transport) setSynced(v bool) {
	var u uint32
	if v {
		u = 1
	}
	atomic.StoreUint32(&t.synced, u)
}
