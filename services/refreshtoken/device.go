package refreshtoken

import (
	"github.com/mileusna/useragent"
)

// DeviceFromRequest builds a DeviceInfo from the request's user agent
// string and remote address. deviceID is the client-supplied identifier
// for the device, if any.
func DeviceFromRequest(deviceID, userAgentString, ip string) DeviceInfo {
	info := DeviceInfo{
		DeviceID:  deviceID,
		IPAddress: ip,
	}

	if userAgentString == "" {
		return info
	}

	ua := useragent.Parse(userAgentString)

	if ua.Name != "" {
		if ua.Version != "" {
			info.Browser = ua.Name + " " + ua.Version
		} else {
			info.Browser = ua.Name
		}
	}
	if ua.OS != "" {
		info.OS = ua.OS
	}

	switch {
	case ua.Mobile:
		info.DeviceName = "Mobile"
	case ua.Tablet:
		info.DeviceName = "Tablet"
	case ua.Bot:
		info.DeviceName = "Bot"
	default:
		info.DeviceName = "Desktop"
	}
	if ua.Device != "" {
		info.DeviceName = ua.Device
	}

	return info
}
