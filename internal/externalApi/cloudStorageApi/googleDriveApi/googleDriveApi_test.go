package googleDriveApi_test

import (
	"context"
	"testing"
	"time"

	"github.com/KotFed0t/trading_simulator/config"
	"github.com/KotFed0t/trading_simulator/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpired(t *testing.T) {
	deadline := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		created string
		want    bool
		wantErr bool
	}{
		{name: "older", created: "2025-03-09T12:00:00Z", want: true},
		{name: "newer", created: "2025-03-10T12:00:01Z", want: false},
		{name: "equal", created: "2025-03-10T12:00:00Z", want: false},
		{name: "other zone", created: "2025-03-10T14:30:00+03:00", want: true},
		{name: "garbage", created: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := googleDriveApi.Expired(tt.created, deadline)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDownloadLink(t *testing.T) {
	assert.Equal(t, "https://drive.google.com/file/d/abc123/view", googleDriveApi.DownloadLink("abc123"))
}

func TestNewWithoutCredentials(t *testing.T) {
	assert.Nil(t, googleDriveApi.New(context.Background(), config.GoogleDrive{}))
}
