package options

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/d21d3q/goweatherboard/internal/fieldmap"
)

func TestLoggerFromContext(t *testing.T) {
	require.Equal(t, logrus.StandardLogger(), Logger(context.Background()).Logger)

	entry := logrus.New().WithField("device", "/dev/ttyUSB1")
	ctx := WithLogger(context.Background(), entry)
	require.Same(t, entry, Logger(ctx))

	require.Equal(t, ctx, WithLogger(ctx, nil))
}

func TestParseFieldOverrides(t *testing.T) {
	got, err := ParseFieldOverrides(" 0 = altitude:float, 5=temperature1,0x1F=status:int ,")
	require.NoError(t, err)
	require.Equal(t, []FieldOverride{
		{Code: '0', Field: fieldmap.Field{Name: "altitude", Kind: fieldmap.KindFloat}},
		{Code: '5', Field: fieldmap.Field{Name: "temperature1", Kind: fieldmap.KindFloat}},
		{Code: 0x1F, Field: fieldmap.Field{Name: "status", Kind: fieldmap.KindInt}},
	}, got)

	got, err = ParseFieldOverrides("   ")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestParseFieldOverridesErrors(t *testing.T) {
	for _, input := range []string{"0", "0=", "01=x", "0=:int", "0=x:bool"} {
		_, err := ParseFieldOverrides(input)
		require.Error(t, err, input)
	}
}

func TestApplyFieldOverrides(t *testing.T) {
	base, err := fieldmap.Lookup(fieldmap.PresetOdroidWeather)
	require.NoError(t, err)
	overrides, err := ParseFieldOverrides("0=altitude,2=temperature1")
	require.NoError(t, err)

	m, err := ApplyFieldOverrides(base, overrides)
	require.NoError(t, err)
	f, ok := m.Lookup('0')
	require.True(t, ok)
	require.Equal(t, fieldmap.FieldAltitude, f.Name)
	f, ok = m.Lookup('2')
	require.True(t, ok)
	require.Equal(t, fieldmap.FieldTemperature1, f.Name)
	require.Equal(t, 8, m.Len())
}
