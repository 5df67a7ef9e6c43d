package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() RescueRequest {
	return RescueRequest{
		Name:         "Sarah Johnson",
		Phone:        "+1 555 000 0000",
		Location:     "123 Oak Street, Downtown",
		VehicleModel: "Tesla Model 3",
		BatteryLevel: 5,
	}
}

func TestRescueRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RescueRequest)
		fields []string
	}{
		{"valid", func(*RescueRequest) {}, nil},
		{"optional fields empty", func(r *RescueRequest) { r.VehicleNumber = ""; r.AdditionalInfo = "" }, nil},
		{"battery zero", func(r *RescueRequest) { r.BatteryLevel = 0 }, nil},
		{"battery full", func(r *RescueRequest) { r.BatteryLevel = 100 }, nil},
		{"missing name", func(r *RescueRequest) { r.Name = "  " }, []string{"name"}},
		{"missing phone and location", func(r *RescueRequest) { r.Phone = ""; r.Location = "" }, []string{"phone", "location"}},
		{"missing model", func(r *RescueRequest) { r.VehicleModel = "" }, []string{"vehicle_model"}},
		{"battery negative", func(r *RescueRequest) { r.BatteryLevel = -1 }, []string{"battery_level"}},
		{"battery over", func(r *RescueRequest) { r.BatteryLevel = 101 }, []string{"battery_level"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := validRequest()
			tc.mutate(&r)
			err := r.Validate()
			if len(tc.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr, len(tc.fields))
			for _, f := range tc.fields {
				assert.Contains(t, verr, f)
			}
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := ValidationError{"phone": "is required", "name": "is required"}
	assert.Equal(t, "validation failed: name: is required; phone: is required", err.Error())
}

func TestCredentialsAndRegistration(t *testing.T) {
	assert.Error(t, Credentials{Email: "driver@example.com"}.Validate())
	assert.NoError(t, Credentials{Email: "driver@example.com", Password: "x"}.Validate())
	assert.Error(t, DriverRegistration{Name: "A", Email: "a@b.c", Phone: "1"}.Validate())
	assert.NoError(t, DriverRegistration{Name: "A", Email: "a@b.c", Phone: "1", City: "SF"}.Validate())
}

func TestRescueJobLabels(t *testing.T) {
	j := RescueJob{RequestedAgo: 12 * time.Minute, DistanceKm: 4.14}
	assert.Equal(t, "12 minutes ago", j.Timestamp())
	assert.Equal(t, "4.1 km", j.Distance())
	assert.Equal(t, "just now", RescueJob{}.Timestamp())
	assert.Equal(t, "1 minute ago", RescueJob{RequestedAgo: time.Minute}.Timestamp())
}
