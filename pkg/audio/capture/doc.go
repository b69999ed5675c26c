// Package capture opens live microphone input for the microphone source kind.
package capture
