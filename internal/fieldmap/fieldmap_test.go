package fieldmap

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/d21d3q/goweatherboard/internal/testutil"
)

func TestPresetsDisagree(t *testing.T) {
	odroid, err := Lookup(PresetOdroidWeather)
	require.NoError(t, err)
	ssh, err := Lookup(PresetSSHDrivers)
	require.NoError(t, err)

	require.Equal(t, 8, odroid.Len())
	require.Equal(t, 8, ssh.Len())

	f, ok := odroid.Lookup('0')
	require.True(t, ok)
	require.Equal(t, Field{FieldTemperature1, KindFloat}, f)

	f, ok = ssh.Lookup('0')
	require.True(t, ok)
	require.Equal(t, Field{FieldAltitude, KindFloat}, f)

	f, _ = odroid.Lookup('6')
	require.Equal(t, KindInt, f.Kind)
	f, _ = ssh.Lookup('3')
	require.Equal(t, Field{FieldVisible, KindInt}, f)
}

func TestLookupUnknownPreset(t *testing.T) {
	_, err := Lookup("no-such-board")
	require.ErrorContains(t, err, "not registered")
	require.Contains(t, Names(), DefaultPreset)
}

func TestConvert(t *testing.T) {
	m, err := Lookup(PresetOdroidWeather)
	require.NoError(t, err)

	f, v, err := m.Convert('1', "1013.25")
	require.NoError(t, err)
	require.Equal(t, FieldPressure, f.Name)
	require.InDelta(t, 1013.25, v.Float, 1e-9)
	require.Equal(t, 1013.25, v.Any())

	f, v, err = m.Convert('7', " 253\r")
	require.NoError(t, err)
	require.Equal(t, FieldInfrared, f.Name)
	require.Equal(t, int64(253), v.Int)
	require.Equal(t, int64(253), v.Any())

	_, _, err = m.Convert('9', "1")
	require.ErrorIs(t, err, ErrUnmapped)
}

func TestConvertMalformed(t *testing.T) {
	m, err := Lookup(PresetOdroidWeather)
	require.NoError(t, err)
	cases := []struct {
		code byte
		text string
	}{
		{'0', ""},
		{'0', "   "},
		{'0', "12a.5"},
		{'0', "NaN"},
		{'0', "-Inf"},
		{'6', "12.5"},
		{'6', "0x10"},
		{'7', "99999999999999999999"},
	}
	for _, tc := range cases {
		_, v, err := m.Convert(tc.code, tc.text)
		require.ErrorIs(t, err, ErrMalformedPayload, "code %q text %q", tc.code, tc.text)
		require.Equal(t, Value{}, v, "no default value for %q", tc.text)
	}
}

func TestParseValueRoundTrip(t *testing.T) {
	for _, x := range []float64{0, -0.5, 24.31, 1013.25, -40.125, 1e-7, 123456.789, math.MaxFloat32} {
		v, err := ParseValue(KindFloat, strconv.FormatFloat(x, 'f', -1, 64))
		require.NoError(t, err)
		require.Equal(t, x, v.Float)

		v, err = ParseValue(KindFloat, strconv.FormatFloat(x, 'f', 2, 64))
		require.NoError(t, err)
		require.InDelta(t, x, v.Float, 0.005+1e-9)
	}
	for _, i := range []int64{0, 1, -1, 260, math.MaxInt32, math.MinInt64} {
		v, err := ParseValue(KindInt, strconv.FormatInt(i, 10))
		require.NoError(t, err)
		require.Equal(t, i, v.Int)
	}
}

func TestWithRebindsName(t *testing.T) {
	base, err := Lookup(PresetOdroidWeather)
	require.NoError(t, err)

	m, err := base.With('5', Field{FieldTemperature1, KindFloat})
	require.NoError(t, err)

	f, ok := m.Lookup('5')
	require.True(t, ok)
	require.Equal(t, FieldTemperature1, f.Name)
	_, ok = m.Lookup('0')
	require.False(t, ok, "old binding for the same name must go")
	require.Equal(t, 7, m.Len())

	// the preset itself is untouched
	f, _ = base.Lookup('0')
	require.Equal(t, FieldTemperature1, f.Name)

	_, err = base.With('9', Field{Name: "", Kind: KindFloat})
	require.Error(t, err)
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New("dup", map[byte]Field{
		'0': {"a", KindFloat},
		'1': {"a", KindInt},
	})
	require.ErrorContains(t, err, "bound to both")

	_, err = New("bad-kind", map[byte]Field{'0': {"a", 0}})
	require.ErrorContains(t, err, "unknown kind")
}

func TestLoad(t *testing.T) {
	m, err := Load(testutil.Path(t, "fieldmaps/altitude_first.yaml"))
	require.NoError(t, err)
	require.Equal(t, "altitude-first", m.Name())
	require.Equal(t, []byte{0x1F, '0', '1', '2', '3', '4', '5', '6', '7'}, m.Codes())

	f, ok := m.Lookup(0x1F)
	require.True(t, ok)
	require.Equal(t, Field{"board_status", KindInt}, f)

	_, err = Load(testutil.Path(t, "fieldmaps/duplicate_name.yaml"))
	require.ErrorContains(t, err, "bound to both")
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("name: empty\n"))
	require.ErrorContains(t, err, "no fields")

	_, err = Parse([]byte(`fields: {"01": {name: a, kind: float}}`))
	require.ErrorContains(t, err, "invalid code")

	_, err = Parse([]byte(`fields: {"0": {name: a, kind: decimal}}`))
	require.ErrorContains(t, err, "unknown field kind")
}

func TestMarshalRoundTrip(t *testing.T) {
	base, err := Lookup(PresetSSHDrivers)
	require.NoError(t, err)
	data, err := yaml.Marshal(base)
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, base.Name(), back.Name())
	for _, code := range base.Codes() {
		want, _ := base.Lookup(code)
		got, ok := back.Lookup(code)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestParseCode(t *testing.T) {
	c, err := ParseCode("7")
	require.NoError(t, err)
	require.Equal(t, byte('7'), c)

	c, err = ParseCode("0x1b")
	require.NoError(t, err)
	require.Equal(t, byte(0x1B), c)
	require.Equal(t, "0x1B", FormatCode(c))
	require.Equal(t, "w", FormatCode('w'))

	_, err = ParseCode("0xZZ")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnmapped))
}

func TestKindParsing(t *testing.T) {
	k, err := ParseKind(" Integer ")
	require.NoError(t, err)
	require.Equal(t, KindInt, k)
	require.Equal(t, "float", KindFloat.String())
	_, err = ParseKind("bool")
	require.Error(t, err)
}
