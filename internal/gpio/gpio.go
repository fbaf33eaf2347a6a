// Package gpio provides GPIO line access with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Reader samples the RF receiver input lines.
type Reader interface {
	// Read returns the logical level of every input line in channel order.
	// true = line active (receiver output high).
	Read() ([]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Writer drives the relay output lines.
type Writer interface {
	// Set energizes (on) or de-energizes the relay at index.
	Set(index int, on bool) error

	// Len returns the number of relay lines.
	Len() int

	// Close de-energizes all relays and releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Pin definitions (BCM numbering)
var (
	DefaultInputPins = []int{17, 27, 22, 23} // RF receiver D0..D3
	DefaultRelayPins = []int{5, 6, 13, 19}   // Relay board IN1..IN4
)
