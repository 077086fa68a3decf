package widget

import "regexp"

type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceMobile  Device = "mobile"
)

var mobileUserAgent = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini`)

func DeviceFromUserAgent(userAgent string) Device {
	if mobileUserAgent.MatchString(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}
