package remotedesktop

// DeviceType is a bit flag of input devices a session can control.
type DeviceType uint32

const (
	DeviceKeyboard    DeviceType = 1
	DevicePointer     DeviceType = 2
	DeviceTouchscreen DeviceType = 4

	// DeviceAll requests every device type the portal offers.
	DeviceAll = DeviceKeyboard | DevicePointer | DeviceTouchscreen
)

// Has reports whether the flag set includes d.
func (t DeviceType) Has(d DeviceType) bool {
	return t&d != 0
}

// KeyState is the state transition of a key or pointer button.
type KeyState uint32

const (
	KeyPressed  KeyState = 0
	KeyReleased KeyState = 1
)

// Axis names a scroll axis.
type Axis uint32

const (
	AxisVertical   Axis = 0
	AxisHorizontal Axis = 1
)

// PersistMode controls whether the user's device selection survives the
// session, letting a later session restore it without prompting.
type PersistMode uint32

const (
	// PersistModeNone grants the selection for this session only.
	PersistModeNone PersistMode = 0
	// PersistModeTransient keeps the grant while the application runs.
	PersistModeTransient PersistMode = 1
	// PersistModePermanent keeps the grant until explicitly revoked.
	PersistModePermanent PersistMode = 2
)

// SelectedDevices is the decoded outcome of starting a session.
type SelectedDevices struct {
	// Devices the user granted control over.
	Devices DeviceType
	// RestoreToken, when present, restores this selection in a future
	// session via SelectDevicesOptions.RestoreToken.
	RestoreToken string
}
