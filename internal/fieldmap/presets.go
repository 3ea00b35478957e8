package fieldmap

// Field names reported by the weather board.
const (
	FieldTemperature1 = "temperature1"
	FieldTemperature2 = "temperature2"
	FieldPressure     = "pressure"
	FieldAltitude     = "altitude"
	FieldHumidity     = "humidity"
	FieldUV           = "uv"
	FieldVisible      = "visible"
	FieldInfrared     = "ir"
)

// The two host drivers shipped for the board disagree on the code table.
// Neither is authoritative; both are registered and the choice is config.
const (
	PresetOdroidWeather = "odroid-weather"
	PresetSSHDrivers    = "ssh-drivers"

	DefaultPreset = PresetOdroidWeather
)

func init() {
	Register(MustNew(PresetOdroidWeather, map[byte]Field{
		'0': {FieldTemperature1, KindFloat},
		'1': {FieldPressure, KindFloat},
		'2': {FieldAltitude, KindFloat},
		'3': {FieldTemperature2, KindFloat},
		'4': {FieldHumidity, KindFloat},
		'5': {FieldUV, KindFloat},
		'6': {FieldVisible, KindInt},
		'7': {FieldInfrared, KindInt},
	}))
	Register(MustNew(PresetSSHDrivers, map[byte]Field{
		'5': {FieldTemperature1, KindFloat},
		'1': {FieldPressure, KindFloat},
		'0': {FieldAltitude, KindFloat},
		'7': {FieldTemperature2, KindFloat},
		'6': {FieldHumidity, KindFloat},
		'2': {FieldUV, KindFloat},
		'3': {FieldVisible, KindInt},
		'4': {FieldInfrared, KindInt},
	}))
}
