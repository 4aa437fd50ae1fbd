package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://budgets/2024/ledger.json", wantBucket: "budgets", wantObject: "2024/ledger.json"},
		{uri: "gs://budgets/ledger.json", wantBucket: "budgets", wantObject: "ledger.json"},
		{uri: "gs://budgets", wantErr: true},
		{uri: "gs://budgets/", wantErr: true},
		{uri: "/tmp/ledger.json", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	assert.Equal(t, "export.csv", ExtractFilenameFromGCSURI("gs://bucket/folder/export.csv"))
	assert.Equal(t, "bucket", ExtractFilenameFromGCSURI("gs://bucket"))
	assert.True(t, IsURI("gs://x/y"))
	assert.False(t, IsURI("x/y"))
}
