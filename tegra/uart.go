package tegra

import "mmcinit/core"

// UART-A, the debug console on every Tegra X1 board. The block is a 16550
// with its registers on a 4-byte stride.
const (
	UARTABase = 0x70006000

	// PLLPOutHz is the PLLP_OUT0 rate that clocks the UARTs after boot.
	PLLPOutHz = 408000000
)

var (
	regUARTData = core.Register{Name: "UART_THR_DLAB", Offset: 0x00, Width: core.Width32} // THR/RBR, DLL with DLAB
	regUARTIER  = core.Register{Name: "UART_IER_DLAB", Offset: 0x04, Width: core.Width32} // IER, DLH with DLAB
	regUARTFCR  = core.Register{Name: "UART_IIR_FCR", Offset: 0x08, Width: core.Width32}
	regUARTLCR  = core.Register{Name: "UART_LCR", Offset: 0x0C, Width: core.Width32}
	regUARTLSR  = core.Register{Name: "UART_LSR", Offset: 0x14, Width: core.Width32}
)

const (
	uartLCRDLAB = 1 << 7
	uartLCR8N1  = 0x03

	uartFCREnable  = 1 << 0
	uartFCRClearRx = 1 << 1
	uartFCRClearTx = 1 << 2

	uartLSRDataReady = 1 << 0
	uartLSRTHREmpty  = 1 << 5
)

// UART is a polled 16550 driver. It implements io.ReadWriter for the
// monitor and Println for the debug writer.
type UART struct {
	regs core.Block
}

// NewUART returns the UART at base on bus. Call Configure before use
// unless the bootloader already set the line up.
func NewUART(bus core.Bus, base uintptr) *UART {
	return &UART{regs: core.NewBlock(bus, base)}
}

// Configure sets 8N1 at baud from a clockHz source and resets both FIFOs.
func (u *UART) Configure(baud, clockHz uint32) {
	div := Divisor(baud, clockHz)
	u.regs.Write(regUARTIER, 0)
	u.regs.Write(regUARTLCR, uartLCRDLAB)
	u.regs.Write(regUARTData, div&0xFF)
	u.regs.Write(regUARTIER, (div>>8)&0xFF)
	u.regs.Write(regUARTLCR, uartLCR8N1)
	u.regs.Write(regUARTFCR, uartFCREnable|uartFCRClearRx|uartFCRClearTx)
}

// Divisor is the 16x baud divisor for clockHz, rounded to nearest.
func Divisor(baud, clockHz uint32) uint32 {
	return (clockHz + 8*baud) / (16 * baud)
}

// WriteByte waits for room in the transmitter and sends c.
func (u *UART) WriteByte(c byte) error {
	for !u.regs.HasBits(regUARTLSR, uartLSRTHREmpty) {
	}
	u.regs.Write(regUARTData, uint32(c))
	return nil
}

func (u *UART) Write(p []byte) (int, error) {
	for _, c := range p {
		u.WriteByte(c)
	}
	return len(p), nil
}

// Buffered reports whether a received byte is waiting.
func (u *UART) Buffered() bool {
	return u.regs.HasBits(regUARTLSR, uartLSRDataReady)
}

// Read waits for at least one byte, then returns whatever else has already
// arrived, up to len(p).
func (u *UART) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for !u.Buffered() {
	}
	n := 0
	for n < len(p) && u.Buffered() {
		p[n] = byte(u.regs.Read(regUARTData))
		n++
	}
	return n, nil
}

// Println writes s and a CRLF. It matches core.DebugWriter.
func (u *UART) Println(s string) {
	for i := 0; i < len(s); i++ {
		u.WriteByte(s[i])
	}
	u.WriteByte('\r')
	u.WriteByte('\n')
}
