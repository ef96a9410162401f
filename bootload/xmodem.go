package bootload

import (
	"context"
	"io"

	"kozos-go/drivers/serial"
	"kozos-go/errcode"
)

// XMODEM control bytes.
const (
	soh byte = 0x01
	eot byte = 0x04
	ack byte = 0x06
	nak byte = 0x15
	can byte = 0x18
)

const (
	blockDataSize = 128
	maxRetries    = 10
)

// Receive implements the loader's serial transport contract named in the
// external-interfaces section: block until a full image has arrived or a
// receive error occurs, returning the byte count received into buf or an
// error. It speaks classic checksum-mode XMODEM (not the later CRC
// variant), the simplest framing that satisfies "XMODEM-like framed
// receive" without inventing a bespoke protocol.
func Receive(ctx context.Context, port serial.Port, buf []byte) (int, error) {
	total := 0
	expectedBlock := byte(1)
	retries := 0

	if err := writeByte(port, nak); err != nil {
		return 0, err
	}

	for {
		hdr, err := readByte(ctx, port)
		if err != nil {
			return total, err
		}

		switch hdr {
		case eot:
			if err := writeByte(port, ack); err != nil {
				return total, err
			}
			return total, nil
		case can:
			return total, errcode.Code(errcode.Cancelled)
		case soh:
			n, err := readBlock(ctx, port, expectedBlock)
			if err != nil {
				retries++
				if retries > maxRetries {
					return total, &errcode.E{C: errcode.Timeout, Op: "bootload.Receive", Msg: "too many retries", Err: err}
				}
				if err := writeByte(port, nak); err != nil {
					return total, err
				}
				continue
			}
			retries = 0
			if total+len(n) > len(buf) {
				return total, &errcode.E{C: errcode.ShortWrite, Op: "bootload.Receive", Msg: "buffer too small for image"}
			}
			copy(buf[total:], n)
			total += len(n)
			expectedBlock++
			if err := writeByte(port, ack); err != nil {
				return total, err
			}
		default:
			retries++
			if retries > maxRetries {
				return total, &errcode.E{C: errcode.Timeout, Op: "bootload.Receive", Msg: "too many retries"}
			}
			if err := writeByte(port, nak); err != nil {
				return total, err
			}
		}
	}
}

// readBlock reads one 128-byte data block (the SOH byte has already been
// consumed) and verifies the block number pair and checksum.
func readBlock(ctx context.Context, port serial.Port, expected byte) ([]byte, error) {
	hdr := make([]byte, 2)
	if err := readFull(ctx, port, hdr); err != nil {
		return nil, err
	}
	blockNum, blockNumInv := hdr[0], hdr[1]
	if blockNum != expected || blockNumInv != ^expected {
		return nil, &errcode.E{C: errcode.InvalidHeader, Op: "bootload.readBlock", Msg: "bad block number"}
	}

	data := make([]byte, blockDataSize)
	if err := readFull(ctx, port, data); err != nil {
		return nil, err
	}

	sum, err := readByte(ctx, port)
	if err != nil {
		return nil, err
	}
	var want byte
	for _, b := range data {
		want += b
	}
	if sum != want {
		return nil, &errcode.E{C: errcode.ChecksumMismatch, Op: "bootload.readBlock"}
	}
	return data, nil
}

func readByte(ctx context.Context, port serial.Port) (byte, error) {
	var b [1]byte
	n, err := port.RecvSomeContext(ctx, b[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	return b[0], nil
}

func readFull(ctx context.Context, port serial.Port, buf []byte) error {
	for got := 0; got < len(buf); {
		n, err := port.RecvSomeContext(ctx, buf[got:])
		if err != nil {
			return err
		}
		got += n
	}
	return nil
}

func writeByte(port serial.Port, b byte) error {
	return port.WriteByte(b)
}
