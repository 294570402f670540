package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScanBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, ScanBackoff(0))
	assert.Equal(t, 30*time.Second, ScanBackoff(1))
	assert.Equal(t, 120*time.Second, ScanBackoff(2))
	assert.Equal(t, 600*time.Second, ScanBackoff(3))
	// 超出档位后封顶
	assert.Equal(t, 600*time.Second, ScanBackoff(4))
	assert.Equal(t, 600*time.Second, ScanBackoff(100))
}
