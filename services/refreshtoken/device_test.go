package refreshtoken

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceFromRequest(t *testing.T) {
	t.Run("desktop browser", func(t *testing.T) {
		ua := "Mozilla/5.0 (X11; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0"

		info := DeviceFromRequest("device-1", ua, "203.0.113.7")

		assert.Equal(t, "device-1", info.DeviceID)
		assert.Equal(t, "203.0.113.7", info.IPAddress)
		assert.Contains(t, info.Browser, "Firefox")
		assert.Equal(t, "Linux", info.OS)
		assert.Equal(t, "Desktop", info.DeviceName)
	})

	t.Run("empty user agent", func(t *testing.T) {
		info := DeviceFromRequest("device-1", "", "203.0.113.7")

		assert.Equal(t, "device-1", info.DeviceID)
		assert.Empty(t, info.Browser)
		assert.Empty(t, info.OS)
		assert.Empty(t, info.DeviceName)
	})
}
