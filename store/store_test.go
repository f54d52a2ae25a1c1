package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecudump/discovery"
	"ecudump/memoryread"
	"ecudump/protocol"
)

func TestRecordAndListSessions(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ecu := discovery.ECU{ID: "UDS_0x7E0", Protocol: protocol.UDS, Address: 0x7E0, VIN: "TESTVIN0000000001"}
	progress := memoryread.Progress{Status: memoryread.StatusComplete, BytesRead: 4096}
	started := time.Unix(1000, 0)
	finished := time.Unix(1010, 0)

	id, err := s.RecordSession(ecu, 0, 4096, 256, progress, started, finished)
	require.NoError(t, err)
	assert.NotZero(t, id)

	sessions, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	got := sessions[0]
	assert.Equal(t, "UDS_0x7E0", got.ECUID)
	assert.Equal(t, "UDS", got.Protocol)
	assert.Equal(t, uint16(0x7E0), got.Address)
	assert.Equal(t, "TESTVIN0000000001", got.VIN)
	assert.Equal(t, "complete", got.Status)
	assert.Equal(t, uint32(4096), got.BytesRead)
}

func TestListSessionsMostRecentFirst(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ecu := discovery.ECU{ID: "UDS_0x7E0", Protocol: protocol.UDS, Address: 0x7E0}
	progress := memoryread.Progress{Status: memoryread.StatusComplete, BytesRead: 1}
	now := time.Unix(2000, 0)

	firstID, err := s.RecordSession(ecu, 0, 1, 1, progress, now, now)
	require.NoError(t, err)
	secondID, err := s.RecordSession(ecu, 0, 1, 1, progress, now, now)
	require.NoError(t, err)

	sessions, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, secondID, sessions[0].ID)
	assert.Equal(t, firstID, sessions[1].ID)
}

func TestListSessionsEmptyStoreReturnsNil(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	sessions, err := s.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
