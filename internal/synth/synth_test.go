package synth

import (
	"testing"
	"time"

	"example.com/coastwatch/internal/models"
	"github.com/stretchr/testify/require"
)

// fixedSource always returns the same draw
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

var epoch = time.UnixMilli(0).UTC()

func device(t models.DeviceType, serviceAgeDays int) models.DeviceConfig {
	return models.DeviceConfig{
		ID:              string(t) + "-01",
		Type:            t,
		IntervalSeconds: 5,
		Active:          true,
		LastService:     epoch.Add(-time.Duration(serviceAgeDays) * 24 * time.Hour),
	}
}

func TestQualityDecaysWithServiceAge(t *testing.T) {
	s := New(fixedSource(0.5))

	cases := map[int]models.Quality{
		40: models.QualityPoor,
		20: models.QualityFair,
		10: models.QualityGood,
		2:  models.QualityExcellent,
	}
	for days, want := range cases {
		r, err := s.Synthesize(device(models.DeviceTypeWave, days), epoch)
		require.NoError(t, err)
		require.Equal(t, want, r.Quality, "days=%d", days)
	}
}

func TestSeismicSpikeOverridesQuality(t *testing.T) {
	s := New(fixedSource(0.01))

	r, err := s.Synthesize(device(models.DeviceTypeSeismic, 40), epoch)
	require.NoError(t, err)
	require.Equal(t, models.QualityExcellent, r.Quality)

	data := r.Data.(models.SeismicData)
	require.True(t, data.Spike)
	require.GreaterOrEqual(t, data.Magnitude, 2.5)
	require.LessOrEqual(t, data.Magnitude, 4.5)
}

func TestSeismicWithoutSpikeKeepsServiceQuality(t *testing.T) {
	s := New(fixedSource(0.5))

	r, err := s.Synthesize(device(models.DeviceTypeSeismic, 40), epoch)
	require.NoError(t, err)
	require.Equal(t, models.QualityPoor, r.Quality)

	data := r.Data.(models.SeismicData)
	require.False(t, data.Spike)
	require.GreaterOrEqual(t, data.Magnitude, 0.0)
	require.LessOrEqual(t, data.Magnitude, 2.5)
}

func TestWaveFollowsBaseCurve(t *testing.T) {
	s := New(fixedSource(0.5))

	r, err := s.Synthesize(device(models.DeviceTypeWave, 0), epoch)
	require.NoError(t, err)

	wave := r.Data.(models.WaveData)
	require.InDelta(t, 2.5, wave.Height, 1e-9)
	require.InDelta(t, 9.0, wave.Period, 1e-9)
	require.InDelta(t, 180.0, wave.Direction, 1e-9)
	require.Positive(t, wave.Energy)
}

func TestWaveHeightFloor(t *testing.T) {
	s := New(fixedSource(0))
	// sin(t/60000) = -1 with maximal negative noise
	at := time.UnixMilli(int64(60000 * 3 * 3.14159265358979 / 2))

	r, err := s.Synthesize(device(models.DeviceTypeWave, 0), at)
	require.NoError(t, err)
	require.GreaterOrEqual(t, r.Data.(models.WaveData).Height, 0.2)
}

func TestTideAndWeatherAtEpoch(t *testing.T) {
	s := New(fixedSource(0.5))

	r, err := s.Synthesize(device(models.DeviceTypeTide, 0), epoch)
	require.NoError(t, err)
	tide := r.Data.(models.TideData)
	require.InDelta(t, 0, tide.Level, 1e-9)
	require.True(t, tide.Rising)

	r, err = s.Synthesize(device(models.DeviceTypeWeather, 0), epoch)
	require.NoError(t, err)
	weather := r.Data.(models.WeatherData)
	require.InDelta(t, 20, weather.Temperature, 1e-9)
	require.Zero(t, weather.Rainfall)
	require.Equal(t, "clear", weather.Condition)
}

func TestWeatherRainfallIsIntermittent(t *testing.T) {
	s := New(fixedSource(0.1))

	r, err := s.Synthesize(device(models.DeviceTypeWeather, 0), epoch)
	require.NoError(t, err)
	weather := r.Data.(models.WeatherData)
	require.Positive(t, weather.Rainfall)
	require.Equal(t, "rain", weather.Condition)
}

func TestEveryDeviceTypeProducesItsVariant(t *testing.T) {
	s := New(nil)
	for _, typ := range models.DeviceTypes {
		r, err := s.Synthesize(device(typ, 3), epoch)
		require.NoError(t, err)
		require.Equal(t, typ, r.Data.Kind())
		require.Equal(t, typ, r.DeviceType)
		require.Equal(t, epoch, r.Timestamp)
		for _, name := range models.FieldNames(typ) {
			_, ok := r.Field(name)
			require.True(t, ok, "%s missing field %s", typ, name)
		}
	}
}

func TestUnknownDeviceType(t *testing.T) {
	_, err := New(nil).Synthesize(models.DeviceConfig{ID: "x", Type: "buoy"}, epoch)
	require.Error(t, err)
}

func TestBatteryAndSignalFloors(t *testing.T) {
	require.Equal(t, 100.0, Battery(0))
	require.Equal(t, 75.0, Battery(10))
	require.Equal(t, 10.0, Battery(40))
	require.Equal(t, 10.0, Battery(400))

	r, err := New(fixedSource(0)).Synthesize(device(models.DeviceTypeTide, 400), epoch)
	require.NoError(t, err)
	require.Equal(t, 20.0, r.Signal)
	require.Equal(t, 10.0, r.Battery)
}
