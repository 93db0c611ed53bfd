package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-journey-sim/internal/models"
)

// MockVehicleCollection is a mock implementation of db.VehicleCollection
type MockVehicleCollection struct {
	mock.Mock
}

func (m *MockVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) error {
	args := m.Called(ctx, vehicle)
	return args.Error(0)
}

func (m *MockVehicleCollection) FindVehicles(ctx context.Context) ([]models.Vehicle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cars.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `[
		{"id": "1HGCM82633A004352", "country": "nl"},
		{"id": " WVWZZZ1JZXW000001 ", "country": "DE", "speedKph": 110}
	]`)

	vehicles, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Vehicle{
		{SerialNumber: "1HGCM82633A004352", OriginCountry: "NL"},
		{SerialNumber: "WVWZZZ1JZXW000001", OriginCountry: "DE", SpeedKph: 110},
	}, vehicles)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"missing serial", `[{"country": "NL"}]`, ErrMissingSerial},
		{"duplicate", `[{"id": "a"}, {"id": "a"}]`, ErrDuplicateSerial},
		{"bad json", `{"id":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, tt.content))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestFromCollection(t *testing.T) {
	coll := new(MockVehicleCollection)
	coll.On("FindVehicles", mock.Anything).Return([]models.Vehicle{{SerialNumber: "x", OriginCountry: "fi"}}, nil)

	vehicles, err := FromCollection(context.Background(), coll)
	require.NoError(t, err)
	assert.Equal(t, []models.Vehicle{{SerialNumber: "x", OriginCountry: "FI"}}, vehicles)

	failing := new(MockVehicleCollection)
	failing.On("FindVehicles", mock.Anything).Return(nil, errors.New("db error"))
	_, err = FromCollection(context.Background(), failing)
	assert.ErrorContains(t, err, "db error")
}
