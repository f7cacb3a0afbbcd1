package genai

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURI(t *testing.T) {
	uri := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello world"))

	attachment, err := ParseDataURI(uri)
	require.NoError(t, err)

	assert.Equal(t, "text/plain", attachment.MIMEType)
	assert.Equal(t, []byte("hello world"), attachment.Data)
	assert.True(t, attachment.IsText())
	assert.False(t, attachment.IsImage())
}

func TestParseDataURI_Image(t *testing.T) {
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47})

	attachment, err := ParseDataURI(uri)
	require.NoError(t, err)

	assert.True(t, attachment.IsImage())
	assert.Equal(t, uri, attachment.DataURI())
}

func TestParseDataURI_Errors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"missing scheme", "text/plain;base64,aGk="},
		{"missing marker", "data:text/plain,aGk="},
		{"missing mime type", "data:;base64,aGk="},
		{"bad base64", "data:text/plain;base64,!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDataURI(tt.uri)
			assert.ErrorIs(t, err, ErrInvalidDataURI)
		})
	}
}
