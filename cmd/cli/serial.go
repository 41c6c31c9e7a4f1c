package main

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// openSerial opens the device console at 8N1.
func openSerial(name string, baud int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}

func openConsole() (io.ReadWriteCloser, string, error) {
	name, err := serialPort()
	if err != nil {
		return nil, "", err
	}
	port, err := openSerial(name, baudRate)
	if err != nil {
		return nil, "", err
	}
	return port, fmt.Sprintf("%s @ %d baud", name, baudRate), nil
}
