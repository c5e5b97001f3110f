package ticker

import (
	"net/url"
	"strings"
)

// Regions lists the SAMS associations that run a live ticker.
var Regions = []string{
	"baden",
	"bvv",
	"dvv",
	"flvb",
	"hvbv",
	"hvv",
	"nwvv",
	"shvv",
	"ssvb",
	"svv",
	"tvv",
	"vbl",
	"vmv",
	"vlw",
	"vvb",
	"vvrp",
}

var regionLogos = map[string]string{
	"baden": "https://www.sbvv-online.de/cms/files/Baden_Dateien/layout/images/logos/logo_sbvv.png",
	"bvv":   "https://vvb.sams-server.de/cms/files/VVB_Dateien/layout_homepage/logo/vvb_logo.jpg",
	"dvv":   "https://www.volleyball-verband.de/?proxy=img/logo_dvv.png",
	"flvb":  "https://flvb.lu/images/logos/FLVB%20Logo%2060%20ans%20SVG.svg",
	"hvbv":  "https://www.hvbv.de/cms/files/hvbv/layout/images/logo.png",
	"hvv":   "https://www.hessen-volley.de/cms/files/hvv/layout/images/logo/hvv-logo-internet-w.svg",
	"nwvv":  "https://www.nwvv.de/cms/files/layout/images/nwvv_nvv-blau_transparent_426w.png",
	"shvv":  "https://www.shvv.de/cms/files/shvv/layout/logos/shvv_logo_400.png",
	"ssvb":  "https://www.ssvb.org/cms/files/SSVB_Dateien/layout/images/SSVB-Logo.png",
	"svv":   "https://www.volley-saar.de/cms/files/SVV_Dateien/layout_homepage/images/logo/SVV%20Logo.jpg",
	"tvv":   "https://www.tv-v.de/cms/files/TVV_Dateien/layout_homepage/images/logo/TVV_Logo.png",
	"vbl":   "https://www.volleyball-bundesliga.de/cms/files/layout/images/vbl_logo_ohne_text_320x320.png",
	"vmv":   "https://www.vmv24.de/srv/images/vmv-logo.gif",
	"vlw":   "https://www.vlw-online.de/cms/files/VLW_Dateien/layout_homepage/images/logo/VLW_Logo.png",
	"vvb":   "https://vvb.sams-server.de/cms/files/VVB_Dateien/layout_homepage/logo/vvb_logo.jpg",
	"vvrp":  "https://www.vvrp.de/cms/files/VVRP_Dateien/layout/logos/Logo_VVRP.svg",
}

// Genders accepted by ListLeagues, in configuration spelling.
var Genders = []string{"female", "male", "mixed"}

func IsKnownRegion(region string) bool {
	_, ok := regionLogos[strings.ToLower(region)]
	return ok
}

// RegionLogo returns the association logo for region, or "".
func RegionLogo(region string) string {
	return regionLogos[strings.ToLower(region)]
}

// StreamURL joins the websocket host and region, e.g.
// "wss://backend.sams-ticker.de/baden".
func StreamURL(host, region string) string {
	return joinRegion(host, region)
}

// OverviewURL joins the GET base and region, e.g.
// "https://backend.sams-ticker.de/live/tickers/baden".
func OverviewURL(base, region string) string {
	return joinRegion(base, region)
}

func joinRegion(base, region string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + url.PathEscape(strings.ToLower(strings.TrimSpace(region)))
}
