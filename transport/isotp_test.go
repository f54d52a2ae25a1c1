package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecudump/canbus"
)

func TestSendISOTPSingleFrame(t *testing.T) {
	ft := newFakeTransport()
	err := sendISOTP(context.Background(), ft, 0x7E0, []byte{0x10, 0x01})
	require.NoError(t, err)

	sent := ft.sentFrames()
	require.Len(t, sent, 1)
	assert.Equal(t, pciSingleFrame, sent[0].Data[0]&0xF0)
	assert.Equal(t, byte(2), sent[0].Data[0]&0x0F)
	assert.Equal(t, []byte{0x10, 0x01}, sent[0].Payload()[1:])
}

func TestSendISOTPMultiFrame(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = func(id uint16, data []byte, deliver func(canbus.Frame)) {
		if (data[0]&0xF0)>>4 != pciFirstFrame {
			return
		}
		go func() {
			time.Sleep(5 * time.Millisecond)
			deliver(canbus.NewFrame(id+RequestResponseOffset, []byte{(pciFlowControl << 4), 0x00, 0x00}))
		}()
	}

	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}

	err := sendISOTP(context.Background(), ft, 0x7E0, payload)
	require.NoError(t, err)

	sent := ft.sentFrames()
	require.Len(t, sent, 3) // 1 first frame + 2 consecutive frames for 20 bytes (6 + 7 + 7)
	assert.Equal(t, pciFirstFrame<<4, sent[0].Data[0]&0xF0)

	var reassembled []byte
	reassembled = append(reassembled, sent[0].Payload()[2:]...)
	for _, frame := range sent[1:] {
		assert.Equal(t, pciConsecutiveFrame<<4, frame.Data[0]&0xF0)
		reassembled = append(reassembled, frame.Payload()[1:]...)
	}
	assert.Equal(t, payload, reassembled)
}

func TestRecvISOTPSingleFrame(t *testing.T) {
	ft := newFakeTransport()
	done := make(chan struct{})
	var got []byte
	var err error
	go func() {
		got, err = recvISOTP(context.Background(), ft, 0x7E8, time.Second)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	ft.deliver(canbus.NewFrame(0x7E8, []byte{pciSingleFrame | 0x02, 0x62, 0xF1}))
	<-done

	require.NoError(t, err)
	assert.Equal(t, []byte{0x62, 0xF1}, got)
}

func TestRecvISOTPTimeoutReturnsNilNotError(t *testing.T) {
	ft := newFakeTransport()
	got, err := recvISOTP(context.Background(), ft, 0x7E8, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSendAndRecvRoundTrip(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = func(id uint16, data []byte, deliver func(canbus.Frame)) {
		if (data[0]&0xF0)>>4 != pciSingleFrame {
			return
		}
		echo := append([]byte{data[0]}, data[1:]...)
		go func() {
			time.Sleep(5 * time.Millisecond)
			deliver(canbus.NewFrame(id+RequestResponseOffset, echo))
		}()
	}

	resp, err := SendAndRecv(context.Background(), ft, 0x7D8, 0x7E0, []byte{0x3E, 0x00}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x3E, 0x00}, resp)
}
