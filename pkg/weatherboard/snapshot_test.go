package weatherboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshotKeepsLastGoodValue(t *testing.T) {
	s := NewSnapshot()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	n := s.Apply([]Reading{
		{Code: '0', Field: "temperature1", Kind: KindFloat, Float: 21.5},
		{Code: '6', Field: "visible", Kind: KindInt, Int: 260},
		{Code: '8', Raw: "1", Err: &FrameError{Code: '8', Raw: "1", Err: ErrUnmapped}},
	}, t0)
	require.Equal(t, 2, n)

	t1 := t0.Add(200 * time.Millisecond)
	n = s.Apply([]Reading{
		{Code: '0', Field: "temperature1", Kind: KindFloat, Raw: "2x", Err: &FrameError{Code: '0', Raw: "2x", Err: ErrMalformedPayload}},
		{Code: '6', Field: "visible", Kind: KindInt, Int: 261},
	}, t1)
	require.Equal(t, 1, n)

	temp, err := s.Float("temperature1")
	require.NoError(t, err)
	require.InDelta(t, 21.5, temp, 1e-9)
	at, ok := s.UpdatedAt("temperature1")
	require.True(t, ok)
	require.Equal(t, t0, at)

	vis, err := s.Int("visible")
	require.NoError(t, err)
	require.Equal(t, int64(261), vis)
	widened, err := s.Float("visible")
	require.NoError(t, err)
	require.Equal(t, 261.0, widened)

	_, err = s.Int("temperature1")
	require.ErrorContains(t, err, "not integer")
	_, err = s.Float("humidity")
	require.ErrorContains(t, err, "missing")

	require.Equal(t, []string{"temperature1", "visible"}, s.Fields())
	require.JSONEq(t, `{"temperature1":21.5,"visible":261}`, s.String())

	m := s.Map()
	m["visible"] = int64(0)
	v, _ := s.Raw("visible")
	require.Equal(t, int64(261), v, "Map returns a copy")
}
