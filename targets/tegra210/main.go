//go:build tinygo && tegra210

// Firmware for a Tegra X1 loaded by the boot ROM's recovery path or a
// chainloader. It brings up the eMMC controller once at boot, reports the
// outcome on UART-A and then serves the monitor protocol on the same port.
package main

import (
	"mmcinit/core"
	"mmcinit/monitor"
	"mmcinit/sdmmc"
	"mmcinit/tegra"
)

const consoleBaud = 115200

func main() {
	bus := core.MMIO{}

	uart := tegra.NewUART(bus, tegra.UARTABase)
	uart.Configure(consoleBaud, tegra.PLLPOutHz)
	core.SetDebugWriter(uart.Println)

	core.DebugPrintln("mmcinit: tegra210 monitor")

	car := tegra.NewCAR(bus)
	timer := tegra.NewTimerUS(bus)

	cfg := sdmmc.DefaultConfig(sdmmc.SDMMC4)
	res := sdmmc.BringUp(sdmmc.NewHandle(bus, sdmmc.SDMMC4), cfg, car, timer, core.PlatformSink())
	if res.Ready() {
		core.DebugPrintln("mmcinit: sdmmc4 ready in " + core.Utoa(res.Elapsed) + " us")
	} else {
		core.DebugPrintln("mmcinit: sdmmc4 failed: " + res.Err().Error())
	}

	// From here on the port carries frames only.
	core.DebugPrintln("mmcinit: entering monitor")
	core.SetDebugEnabled(false)

	srv := monitor.NewServer(bus, car, timer, core.NopSink)
	for {
		// the polled UART never reports an error
		_ = srv.Serve(uart)
	}
}
