package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.bug.st/serial/enumerator"
)

func TestLooksLikeAdapterMatchesKeyword(t *testing.T) {
	port := &enumerator.PortDetails{Product: "ELM327 USB Interface"}
	assert.True(t, looksLikeAdapter(port))
}

func TestLooksLikeAdapterMatchesKnownVendorID(t *testing.T) {
	port := &enumerator.PortDetails{Product: "Unknown Peripheral", VID: "0403"}
	assert.True(t, looksLikeAdapter(port))
}

func TestLooksLikeAdapterMatchesKnownVendorIDCaseInsensitive(t *testing.T) {
	port := &enumerator.PortDetails{Product: "Unlabeled Device", VID: "10C4"}
	assert.True(t, looksLikeAdapter(port))
}

func TestLooksLikeAdapterRejectsUnrelatedPort(t *testing.T) {
	port := &enumerator.PortDetails{Product: "Generic Mouse", VID: "046d"}
	assert.False(t, looksLikeAdapter(port))
}
