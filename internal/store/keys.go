package store

// Persisted keys of a kiosk profile. The names match the keys used by the
// original browser kiosk so that exported profiles stay readable.
const (
	KeyIdentity      = "cempaka_user_id"
	KeyInventory     = "machines_state"
	KeyActiveBooking = "activeBooking"
	KeyMachineIcons  = "machineIconsMap"
	KeyAppLogo       = "appLogo"
	KeyWasherImage   = "washerImg"
	KeyDryerImage    = "dryerImg"
	KeyGuideImage    = "guideImg"
)
