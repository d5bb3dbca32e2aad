package app

import (
	"github.com/relabs-tech/locator/internal/location"
)

// PermissionInfo is the answer of checkLocationPermission.
type PermissionInfo struct {
	Status                   string `json:"status"`
	HasAlwaysPermission      bool   `json:"hasAlwaysPermission"`
	HasWhenInUsePermission   bool   `json:"hasWhenInUsePermission"`
	HasPrecisePermission     bool   `json:"hasPrecisePermission"`
	HasApproximatePermission bool   `json:"hasApproximatePermission"`
	LocationServicesEnabled  bool   `json:"locationServicesEnabled"`
}

// PermissionRequestInfo is the answer of requestLocationPermission.
type PermissionRequestInfo struct {
	PermissionInfo
	CanRequestPermission bool   `json:"canRequestPermission"`
	Message              string `json:"message"`
}

func permissionInfo(g *location.PermissionGate) PermissionInfo {
	st := g.Status()
	auth := location.AuthorizationFor(st)
	return PermissionInfo{
		Status:                   st.String(),
		HasAlwaysPermission:      auth.Fine, // no always/when-in-use distinction here
		HasWhenInUsePermission:   auth.Coarse || auth.Fine,
		HasPrecisePermission:     auth.Fine,
		HasApproximatePermission: auth.Coarse,
		LocationServicesEnabled:  g.ServicesEnabled(),
	}
}

// requestPermission shows the prompt when the user has not answered yet and
// reports the state as it is now; the answer arrives later.
func requestPermission(g *location.PermissionGate, p location.Prompter) PermissionRequestInfo {
	info := PermissionRequestInfo{
		PermissionInfo:       permissionInfo(g),
		CanRequestPermission: g.Requestable(),
	}

	switch st := g.Status(); {
	case st == location.NotDetermined:
		p.RequestPermissionPrompt()
		info.Message = "Location permission requested"
	case st.Granted():
		info.Message = "Location permission already granted"
	default:
		info.Message = "Location permission denied. Please enable in Settings."
	}
	return info
}
