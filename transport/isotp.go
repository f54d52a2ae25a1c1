package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecudump/canbus"
)

// ISO-TP protocol control information frame types (upper nibble of the
// first data byte).
const (
	pciSingleFrame     byte = 0x0
	pciFirstFrame      byte = 0x1
	pciConsecutiveFrame byte = 0x2
	pciFlowControl     byte = 0x3
)

const frameWaitTimeout = 10 * time.Second

var (
	errFlowControlTimeout = errors.New("transport: timeout waiting for flow control frame")
	errConsecutiveTimeout = errors.New("transport: timeout waiting for consecutive frame")
	errUnexpectedSequence = errors.New("transport: unexpected consecutive frame sequence number")
)

func sendISOTP(ctx context.Context, t Transport, id uint16, data []byte) error {
	if len(data) <= 7 {
		frame := make([]byte, 1+len(data))
		frame[0] = pciSingleFrame | byte(len(data)&0x0F)
		copy(frame[1:], data)
		return t.Send(ctx, id, frame, false)
	}
	return sendMultiFrame(ctx, t, id, data)
}

func sendMultiFrame(ctx context.Context, t Transport, id uint16, data []byte) error {
	dataLength := len(data)

	first := make([]byte, 8)
	first[0] = (pciFirstFrame << 4) | byte((dataLength>>8)&0x0F)
	first[1] = byte(dataLength & 0xFF)
	copy(first[2:], data[:6])
	if err := t.Send(ctx, id, first, false); err != nil {
		return err
	}

	separationTime, err := waitForFlowControl(ctx, t)
	if err != nil {
		return err
	}
	sleepForSeparationTime(separationTime)

	frameIndex := byte(1)
	bytesSent := 6
	for bytesSent < dataLength {
		chunk := dataLength - bytesSent
		if chunk > 7 {
			chunk = 7
		}
		frame := make([]byte, 1+chunk)
		frame[0] = (pciConsecutiveFrame << 4) | (frameIndex & 0x0F)
		copy(frame[1:], data[bytesSent:bytesSent+chunk])
		if err := t.Send(ctx, id, frame, false); err != nil {
			return err
		}
		bytesSent += chunk
		frameIndex = (frameIndex + 1) % 16
		sleepForSeparationTime(separationTime)
	}
	return nil
}

func waitForFlowControl(ctx context.Context, t Transport) (byte, error) {
	readCtx, cancel := context.WithTimeout(ctx, frameWaitTimeout)
	defer cancel()

	ch := t.Subscribe()
	defer t.Unsubscribe(ch)

	for {
		select {
		case frame := <-ch:
			if (frame.Data[0]&0xF0)>>4 != pciFlowControl {
				continue
			}
			return frame.Data[2], nil
		case <-readCtx.Done():
			return 0, errFlowControlTimeout
		}
	}
}

func sleepForSeparationTime(separationTime byte) {
	switch {
	case separationTime <= 0x7F:
		time.Sleep(time.Duration(separationTime) * time.Millisecond)
	case separationTime >= 0xF1 && separationTime <= 0xF9:
		microseconds := 100 * (int(separationTime) - 0xF0)
		time.Sleep(time.Duration(microseconds) * time.Microsecond)
	default:
		time.Sleep(10 * time.Millisecond)
	}
}

func recvISOTP(ctx context.Context, t Transport, id uint16, timeout time.Duration) ([]byte, error) {
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := t.Subscribe()
	defer t.Unsubscribe(ch)

	for {
		select {
		case frame := <-ch:
			if frame.ID != id {
				continue
			}
			pciType := (frame.Data[0] & 0xF0) >> 4
			switch pciType {
			case pciSingleFrame:
				length := frame.Data[0] & 0x0F
				return append([]byte{}, frame.Data[1:1+length]...), nil
			case pciFirstFrame:
				return recvMultiFrame(ctx, t, frame)
			default:
				continue
			}
		case <-readCtx.Done():
			return nil, nil // timeout surfaces as "no reply", not an error
		}
	}
}

func recvMultiFrame(ctx context.Context, t Transport, first canbus.Frame) ([]byte, error) {
	dataLength := (uint16(first.Data[0]&0x0F) << 8) | uint16(first.Data[1])
	data := make([]byte, dataLength)
	copy(data, first.Data[2:8])
	bytesReceived := 6
	frameIndex := byte(1)

	if err := sendFlowControl(ctx, t, first.ID-RequestResponseOffset); err != nil {
		return nil, fmt.Errorf("transport: sending flow control: %w", err)
	}

	ch := t.Subscribe()
	defer t.Unsubscribe(ch)

	for bytesReceived < int(dataLength) {
		readCtx, cancel := context.WithTimeout(ctx, frameWaitTimeout)
		select {
		case frame := <-ch:
			if frame.ID != first.ID {
				cancel()
				continue
			}
			if (frame.Data[0]&0xF0)>>4 != pciConsecutiveFrame {
				cancel()
				continue
			}
			seq := frame.Data[0] & 0x0F
			if seq != frameIndex {
				cancel()
				return nil, errUnexpectedSequence
			}
			chunk := int(dataLength) - bytesReceived
			if chunk > 7 {
				chunk = 7
			}
			copy(data[bytesReceived:], frame.Data[1:1+chunk])
			bytesReceived += chunk
			frameIndex = (frameIndex + 1) % 16
			cancel()
		case <-readCtx.Done():
			cancel()
			return nil, errConsecutiveTimeout
		}
	}
	return data, nil
}

func sendFlowControl(ctx context.Context, t Transport, id uint16) error {
	frame := []byte{
		(pciFlowControl << 4) | 0x00, // continue to send
		0x00,                         // block size: unlimited
		0x00,                         // STmin: no separation required
	}
	return t.Send(ctx, id, frame, false)
}
