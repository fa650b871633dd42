// Package monitor serves register peek/poke, the tick counter and remote
// controller bring-up over the framed serial link.
//
// Host and target build their command tables with Declare, so both sides
// agree on every ID. The target's dictionary is still exchanged at connect
// time and compared, which catches a host built against a different table.
package monitor

import (
	"errors"

	"mmcinit/core"
	"mmcinit/protocol"
	"mmcinit/sdmmc"
)

// Command and response names, in declaration order.
const (
	CmdIdentifyResponse = "identify_response"
	CmdIdentify         = "identify"
	CmdGetClock         = "get_clock"
	CmdClock            = "clock"
	CmdDebugRead        = "debug_read"
	CmdDebugResult      = "debug_result"
	CmdDebugWrite       = "debug_write"
	CmdBringUp          = "mmc_bringup"
	CmdLog              = "mmc_log"
	CmdTiming           = "mmc_timing"
	CmdResult           = "mmc_result"
)

// Declare registers the monitor command table on reg. Handlers are attached
// separately by the side that runs them.
func Declare(reg *core.CommandRegistry) {
	reg.RegisterResponse(CmdIdentifyResponse, "offset=%u data=%.*s")
	reg.Register(CmdIdentify, "offset=%u count=%c", nil)
	reg.Register(CmdGetClock, "", nil)
	reg.RegisterResponse(CmdClock, "clock=%u")
	reg.Register(CmdDebugRead, "order=%c addr=%u", nil)
	reg.RegisterResponse(CmdDebugResult, "val=%u")
	reg.Register(CmdDebugWrite, "order=%c addr=%u val=%u", nil)
	reg.Register(CmdBringUp, "controller=%c mode=%c voltage=%c non_removable=%c bus_width=%c", nil)
	reg.RegisterResponse(CmdLog, "source=%s msg=%s")
	reg.RegisterResponse(CmdTiming, "stage=%c start=%u duration=%u failed=%c")
	reg.RegisterResponse(CmdResult, "status=%c stage=%c elapsed=%u caps=%u flags=%c tap=%u")
}

// Dictionary returns the identify text for a table built by Declare: a
// version line followed by the registry's own dictionary.
func Dictionary(reg *core.CommandRegistry) string {
	return "version " + protocol.Version + "\n" + reg.Dictionary()
}

// ErrBadOrder rejects a debug_read or debug_write whose order is not 0, 1
// or 2.
var ErrBadOrder = errors.New("monitor: bad access order")

// Access orders of debug_read and debug_write.
const (
	Order8  = 0
	Order16 = 1
	Order32 = 2
)

// OrderWidth maps an access order to its width.
func OrderWidth(order uint32) (core.Width, bool) {
	switch order {
	case Order8:
		return core.Width8, true
	case Order16:
		return core.Width16, true
	case Order32:
		return core.Width32, true
	}
	return 0, false
}

// WidthOrder is the inverse of OrderWidth.
func WidthOrder(w core.Width) uint32 {
	switch w {
	case core.Width8:
		return Order8
	case core.Width16:
		return Order16
	}
	return Order32
}

// mmc_result status codes. The first two match sdmmc.Status.
const (
	ResultFailed   = uint32(sdmmc.StatusFailed)
	ResultReady    = uint32(sdmmc.StatusReady)
	ResultRejected = 2
)

// mmc_result flag bits
const (
	FlagAutoCalFallback = 1 << 0
	FlagDLLCalibrated   = 1 << 1
)

// EncodeFlags packs the boolean parts of a summary.
func EncodeFlags(s sdmmc.Summary) uint32 {
	var f uint32
	if s.AutoCalFallback {
		f |= FlagAutoCalFallback
	}
	if s.DLLCalibrated {
		f |= FlagDLLCalibrated
	}
	return f
}

// DecodeFlags sets the boolean parts of s from flags.
func DecodeFlags(s *sdmmc.Summary, flags uint32) {
	s.AutoCalFallback = flags&FlagAutoCalFallback != 0
	s.DLLCalibrated = flags&FlagDLLCalibrated != 0
}

// Limits that keep an mmc_log frame within protocol.MessagePayloadMax. Both
// strings stay short enough for a one-byte VLQ length.
const (
	MaxLogSource = 16
	MaxLogText   = 95
)

// ClipLog shortens source and msg to fit one mmc_log frame.
func ClipLog(source, msg string) (string, string) {
	if len(source) > MaxLogSource {
		source = source[:MaxLogSource]
	}
	if len(msg) > MaxLogText {
		msg = msg[:MaxLogText]
	}
	return source, msg
}

// IdentifyChunk is the largest dictionary slice one identify_response
// carries.
const IdentifyChunk = 40
