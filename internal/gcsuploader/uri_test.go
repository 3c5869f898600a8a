package gcsuploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/uploads/a.pdf", "bucket", "uploads/a.pdf", false},
		{"gs://bucket/a.pdf", "bucket", "a.pdf", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"s3://bucket/a.pdf", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestFileNameFromURI(t *testing.T) {
	assert.Equal(t, "file.pdf", FileNameFromURI("gs://bucket/folder/file.pdf"))
	assert.Equal(t, "bucket", FileNameFromURI("gs://bucket"))
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     string
	}{
		{"plain", "march.pdf", "uploads/invoice/id-march.pdf"},
		{"strips directories", "../../etc/passwd", "uploads/invoice/id-passwd"},
		{"windows path", `C:\docs\inv.pdf`, "uploads/invoice/id-inv.pdf"},
		{"empty", "", "uploads/invoice/id-upload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectName(domain.KindInvoice, "id", tt.fileName))
		})
	}
}
