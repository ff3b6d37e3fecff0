package freebox

import "fmt"

// API endpoint paths, relative to the discovered base (e.g. /api/v11).
// Trailing slashes matter: the router 404s on some paths without them.
const (
	epAuthorize  = "login/authorize/"
	epLogin      = "login/"
	epSession    = "login/session/"
	epLogout     = "login/logout/"
	epPerms      = "login/perms/"
	epSystem     = "system/"
	epReboot     = "system/reboot/"
	epConnection = "connection/"
	epWifiConfig = "wifi/config/"
	epWifiState  = "wifi/state/"
	epWifiAP     = "wifi/ap/"
	epRepeater   = "repeater/"
	epStorage    = "storage/disk/"
	epLanBrowser = "lan/browser/pub/"
	epCallLog    = "call/log/"
	epLCDConfig  = "lcd/config/"
)

func epAuthorizeTrack(trackID int) string {
	return fmt.Sprintf("%s%d", epAuthorize, trackID)
}

func epRepeaterByID(id int) string {
	return fmt.Sprintf("%s%d", epRepeater, id)
}

// epRepeaterReboot returns the repeater reboot path. Some repeater models
// only answer without the trailing slash, so both variants exist.
func epRepeaterReboot(id int, trailingSlash bool) string {
	if trailingSlash {
		return fmt.Sprintf("%s%d/reboot/", epRepeater, id)
	}
	return fmt.Sprintf("%s%d/reboot", epRepeater, id)
}
