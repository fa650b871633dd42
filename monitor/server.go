package monitor

import (
	"bytes"
	"io"

	"mmcinit/core"
	"mmcinit/protocol"
	"mmcinit/sdmmc"
	"mmcinit/tinycompress"
)

// Server is the target end of the monitor. It owns the command table, the
// transport and the buffers between them, and runs each command to
// completion before reading the next, so a bring-up never interleaves with
// a peek or poke.
type Server struct {
	bus core.Bus
	car core.ClockResetController
	ts  core.TimeSource
	log core.Sink

	reg *core.CommandRegistry
	tr  *protocol.Transport
	in  *protocol.FifoBuffer
	out *protocol.StreamOutput
	w   io.Writer

	dict []byte

	idIdentifyResponse uint16
	idClock            uint16
	idDebugResult      uint16
	idLog              uint16
	idTiming           uint16
	idResult           uint16
}

// NewServer builds a server that reaches hardware through bus, car and ts.
// Bring-up messages go to the host and are mirrored to local, which may be
// nil.
func NewServer(bus core.Bus, car core.ClockResetController, ts core.TimeSource, local core.Sink) *Server {
	if local == nil {
		local = core.NopSink
	}
	s := &Server{
		bus: bus,
		car: car,
		ts:  ts,
		log: local,
		reg: core.NewCommandRegistry(),
		in:  protocol.NewFifoBuffer(1024),
		out: protocol.NewStreamOutput(),
	}
	Declare(s.reg)

	s.idIdentifyResponse = s.reg.MustLookup(CmdIdentifyResponse)
	s.idClock = s.reg.MustLookup(CmdClock)
	s.idDebugResult = s.reg.MustLookup(CmdDebugResult)
	s.idLog = s.reg.MustLookup(CmdLog)
	s.idTiming = s.reg.MustLookup(CmdTiming)
	s.idResult = s.reg.MustLookup(CmdResult)

	s.reg.SetHandler(CmdIdentify, s.handleIdentify)
	s.reg.SetHandler(CmdGetClock, s.handleGetClock)
	s.reg.SetHandler(CmdDebugRead, s.handleDebugRead)
	s.reg.SetHandler(CmdDebugWrite, s.handleDebugWrite)
	s.reg.SetHandler(CmdBringUp, s.handleBringUp)

	var z bytes.Buffer
	zw := tinycompress.NewWriter(&z)
	if _, err := zw.Write([]byte(Dictionary(s.reg))); err != nil {
		panic("monitor: compress dictionary: " + err.Error())
	}
	if err := zw.Close(); err != nil {
		panic("monitor: compress dictionary: " + err.Error())
	}
	s.dict = z.Bytes()

	s.tr = protocol.NewTransport(s.out, s.reg.Dispatch)
	s.tr.SetFlushCallback(s.flush)
	return s
}

// Registry returns the server's command table.
func (s *Server) Registry() *core.CommandRegistry {
	return s.reg
}

// LastError returns the error of the most recent command, nil if it ran.
func (s *Server) LastError() error {
	return s.tr.LastError()
}

// Serve reads frames from rw and answers them until a read or write fails.
func (s *Server) Serve(rw io.ReadWriter) error {
	s.w = rw
	defer func() { s.w = nil }()

	buf := make([]byte, 128)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			if ferr := s.Feed(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

// Feed processes received bytes and writes every reply to the writer Serve
// was given. Outside Serve, replies accumulate until Output is called.
func (s *Server) Feed(data []byte) error {
	for len(data) > 0 {
		n := s.in.Write(data)
		data = data[n:]
		s.tr.Receive(s.in)
		if n == 0 && s.in.Free() == 0 {
			// a full buffer with no complete frame is garbage
			s.in.Reset()
		}
	}
	return s.flushErr()
}

// Output returns and clears the replies accumulated outside Serve.
func (s *Server) Output() []byte {
	var b bytes.Buffer
	s.out.Flush(&b)
	return b.Bytes()
}

func (s *Server) flush() {
	s.flushErr()
}

func (s *Server) flushErr() error {
	if s.w == nil {
		return nil
	}
	return s.out.Flush(s.w)
}

func (s *Server) handleIdentify(data *[]byte) error {
	var offset, count uint32
	if err := protocol.DecodeVLQArgs(data, &offset, &count); err != nil {
		return err
	}
	if count > IdentifyChunk {
		count = IdentifyChunk
	}
	var chunk []byte
	if offset < uint32(len(s.dict)) {
		end := offset + count
		if end > uint32(len(s.dict)) {
			end = uint32(len(s.dict))
		}
		chunk = s.dict[offset:end]
	}
	s.tr.SendCommand(s.idIdentifyResponse, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQBytes(out, chunk)
	})
	return nil
}

func (s *Server) handleGetClock(data *[]byte) error {
	now := s.ts.Now()
	s.tr.SendCommand(s.idClock, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, now)
	})
	return nil
}

func (s *Server) handleDebugRead(data *[]byte) error {
	var order, addr uint32
	if err := protocol.DecodeVLQArgs(data, &order, &addr); err != nil {
		return err
	}
	w, ok := OrderWidth(order)
	if !ok {
		return ErrBadOrder
	}
	val := core.ReadSized(s.bus, uintptr(addr), w)
	s.tr.SendCommand(s.idDebugResult, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, val)
	})
	return nil
}

func (s *Server) handleDebugWrite(data *[]byte) error {
	var order, addr, val uint32
	if err := protocol.DecodeVLQArgs(data, &order, &addr, &val); err != nil {
		return err
	}
	w, ok := OrderWidth(order)
	if !ok {
		return ErrBadOrder
	}
	core.WriteSized(s.bus, uintptr(addr), w, val)
	return nil
}

func (s *Server) handleBringUp(data *[]byte) error {
	var ctrl, mode, voltage, nonRemovable, width uint32
	if err := protocol.DecodeVLQArgs(data, &ctrl, &mode, &voltage, &nonRemovable, &width); err != nil {
		return err
	}
	if ctrl > 0xFF || mode > 0xFF || voltage > 0xFF || width > 0xFF {
		ctrl = sdmmc.NumControllers
	}
	cfg := sdmmc.Config{
		Mode:         sdmmc.Mode(mode),
		BusWidth:     uint8(width),
		Voltage:      sdmmc.Voltage(voltage),
		NonRemovable: nonRemovable != 0,
	}
	c := sdmmc.Controller(ctrl)
	if !c.Valid() || !ValidConfig(cfg) {
		s.log.Emit("monitor", "rejected mmc_bringup controller="+core.Utoa(ctrl)+" mode="+core.Utoa(mode))
		s.sendResult(ResultRejected, sdmmc.Result{})
		return nil
	}

	res := sdmmc.BringUp(sdmmc.NewHandle(s.bus, c), cfg, s.car, s.ts, core.SinkFunc(s.emitLog))
	for _, t := range res.Timings {
		s.sendTiming(t)
	}
	s.sendResult(uint32(res.Status), res)
	return nil
}

// emitLog forwards one bring-up message to the host and pushes it out
// straight away, so the host sees progress during a long poll.
func (s *Server) emitLog(source, msg string) {
	s.log.Emit(source, msg)
	source, msg = ClipLog(source, msg)
	s.tr.SendCommand(s.idLog, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQString(out, source)
		protocol.EncodeVLQString(out, msg)
	})
	s.flush()
}

func (s *Server) sendTiming(t sdmmc.StageTiming) {
	var failed uint32
	if t.Failed {
		failed = 1
	}
	s.tr.SendCommand(s.idTiming, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(t.Stage))
		protocol.EncodeVLQUint(out, t.Start)
		protocol.EncodeVLQUint(out, t.Duration)
		protocol.EncodeVLQUint(out, failed)
	})
}

func (s *Server) sendResult(status uint32, res sdmmc.Result) {
	s.tr.SendCommand(s.idResult, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, status)
		protocol.EncodeVLQUint(out, uint32(res.Stage))
		protocol.EncodeVLQUint(out, res.Elapsed)
		protocol.EncodeVLQUint(out, res.Summary.Capabilities)
		protocol.EncodeVLQUint(out, EncodeFlags(res.Summary))
		protocol.EncodeVLQUint(out, res.Summary.TapValue)
	})
}

// ValidConfig reports whether cfg is something BringUp accepts: a known
// mode and voltage and a bus width of 1, 4 or 8.
func ValidConfig(cfg sdmmc.Config) bool {
	if cfg.Mode > sdmmc.ModeHS400 || cfg.Voltage > sdmmc.Voltage3V3 {
		return false
	}
	switch cfg.BusWidth {
	case 1, 4, 8:
		return true
	}
	return false
}
