package gospot

import (
	"fmt"
	"strings"
)

// DeviceType is the connect device class advertised during pairing.
type DeviceType int

const (
	DeviceTypeUnknown     DeviceType = 0
	DeviceTypeComputer    DeviceType = 1
	DeviceTypeTablet      DeviceType = 2
	DeviceTypeSmartphone  DeviceType = 3
	DeviceTypeSpeaker     DeviceType = 4
	DeviceTypeTV          DeviceType = 5
	DeviceTypeAVR         DeviceType = 6
	DeviceTypeSTB         DeviceType = 7
	DeviceTypeAudioDongle DeviceType = 8
	DeviceTypeGameConsole DeviceType = 9
	DeviceTypeCastAudio   DeviceType = 10
	DeviceTypeCastVideo   DeviceType = 11
	DeviceTypeAutomobile  DeviceType = 12
	DeviceTypeSmartwatch  DeviceType = 13
	DeviceTypeChromebook  DeviceType = 14

	DeviceTypeUnknownSpotify DeviceType = 100
	DeviceTypeCarThing       DeviceType = 101
	DeviceTypeObserver       DeviceType = 102
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeUnknown:        "unknown",
	DeviceTypeComputer:       "computer",
	DeviceTypeTablet:         "tablet",
	DeviceTypeSmartphone:     "smartphone",
	DeviceTypeSpeaker:        "speaker",
	DeviceTypeTV:             "tv",
	DeviceTypeAVR:            "avr",
	DeviceTypeSTB:            "stb",
	DeviceTypeAudioDongle:    "audiodongle",
	DeviceTypeGameConsole:    "gameconsole",
	DeviceTypeCastAudio:      "castaudio",
	DeviceTypeCastVideo:      "castvideo",
	DeviceTypeAutomobile:     "automobile",
	DeviceTypeSmartwatch:     "smartwatch",
	DeviceTypeChromebook:     "chromebook",
	DeviceTypeUnknownSpotify: "unknownspotify",
	DeviceTypeCarThing:       "carthing",
	DeviceTypeObserver:       "observer",
}

func (t DeviceType) String() string {
	if name, ok := deviceTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseDeviceType maps a config or CLI string to a DeviceType.
func ParseDeviceType(s string) (DeviceType, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for t, name := range deviceTypeNames {
		if name == needle {
			return t, nil
		}
	}
	return DeviceTypeUnknown, WrapError(KindInit,
		fmt.Sprintf("unknown device type %q", s), nil)
}
