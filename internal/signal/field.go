package signal

// Field enumerates the closed set of ~20 telemetry fields. Order is
// the field-enumeration order used by the FieldStore layout and the
// JSON emission order; signals are polled in their configured order,
// not in this one.
type Field int

const (
	FieldUTC Field = iota
	FieldSOC
	FieldPower
	FieldSpeed
	FieldLat
	FieldLon
	FieldIsCharging
	FieldIsDCFC
	FieldIsParked
	FieldCapacity
	FieldKwhCharged
	FieldSOH
	FieldHeading
	FieldElevation
	FieldExtTemp
	FieldBattTemp
	FieldVoltage
	FieldCurrent
	FieldOdometer
	FieldEstBatteryRange

	FieldCount
)

// names holds the stable JSON key for each field, in field-enumeration
// order.
var names = [FieldCount]string{
	FieldUTC:             "utc",
	FieldSOC:             "soc",
	FieldPower:           "power",
	FieldSpeed:           "speed",
	FieldLat:             "lat",
	FieldLon:             "lon",
	FieldIsCharging:      "is_charging",
	FieldIsDCFC:          "is_dcfc",
	FieldIsParked:        "is_parked",
	FieldCapacity:        "capacity",
	FieldKwhCharged:      "kwh_charged",
	FieldSOH:             "soh",
	FieldHeading:         "heading",
	FieldElevation:       "elevation",
	FieldExtTemp:         "ext_temp",
	FieldBattTemp:        "batt_temp",
	FieldVoltage:         "voltage",
	FieldCurrent:         "current",
	FieldOdometer:        "odometer",
	FieldEstBatteryRange: "est_battery_range",
}

// integerFields marks the fields rendered without a decimal point.
var integerFields = map[Field]bool{
	FieldUTC:        true,
	FieldIsCharging: true,
	FieldIsDCFC:     true,
	FieldIsParked:   true,
}

// Name returns the field's stable JSON key.
func (f Field) Name() string {
	if f < 0 || f >= FieldCount {
		return "unknown"
	}
	return names[f]
}

// IsInteger reports whether f renders as a decimal integer in the
// JSON log rather than with three decimal digits.
func (f Field) IsInteger() bool {
	return integerFields[f]
}

// FieldFromName maps a JSON-key-style field name back to its Field,
// and reports whether the name was recognized. Used by the
// configuration loader when parsing OBD-ABRP-<field> keys.
func FieldFromName(name string) (Field, bool) {
	for f, n := range names {
		if n == name {
			return Field(f), true
		}
	}
	return FieldCount, false
}
