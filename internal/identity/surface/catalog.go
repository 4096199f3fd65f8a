package surface

// Field names exposed by the build surface.
const (
	FieldBrand        = "BRAND"
	FieldModel        = "MODEL"
	FieldDevice       = "DEVICE"
	FieldManufacturer = "MANUFACTURER"
	FieldProduct      = "PRODUCT"
	FieldID           = "ID"
	FieldFingerprint  = "FINGERPRINT"
	FieldBootloader   = "BOOTLOADER"
	FieldBoard        = "BOARD"
	FieldDisplay      = "DISPLAY"
	FieldSerial       = "SERIAL"
)

// Operation names exposed by the build and telephony surfaces.
const (
	OpGetSerial       = "getSerial"
	OpGetImei         = "getImei"
	OpGetDeviceID     = "getDeviceId"
	OpGetLine1Number  = "getLine1Number"
	OpGetSubscriberID = "getSubscriberId"
)

// UnknownValue is what a build field holds when the platform has no value.
const UnknownValue = "unknown"

var knownFields = []string{
	FieldBrand, FieldModel, FieldDevice, FieldManufacturer, FieldProduct, FieldID,
	FieldFingerprint, FieldBootloader, FieldBoard, FieldDisplay, FieldSerial,
}

// operationArities lists every overload each operation has. Operations not
// listed here only have the no-argument form.
var operationArities = map[string][]int{
	OpGetSerial:       {0},
	OpGetImei:         {0, 1},
	OpGetDeviceID:     {0, 1},
	OpGetLine1Number:  {0},
	OpGetSubscriberID: {0},
}

func aritiesOf(name string) []int {
	if a, ok := operationArities[name]; ok {
		return a
	}
	return []int{0}
}
