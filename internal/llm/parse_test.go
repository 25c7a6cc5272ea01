package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisResult(t *testing.T) {
	t.Run("markdown wrapped", func(t *testing.T) {
		text := "```json\n" + validReportJSON + "\n```"
		result, err := parseAnalysisResult(text)
		require.NoError(t, err)
		assert.Equal(t, RiskHigh, result.RiskLevel)
		assert.Equal(t, ActionBlur, result.ActionNeeded)
	})

	t.Run("empty lists are allowed", func(t *testing.T) {
		result, err := parseAnalysisResult(`{"riskLevel":"LOW","riskSpots":[],"scripts":[],"excuses":[],"summary":"冇嘢","actionNeeded":"NONE"}`)
		require.NoError(t, err)
		assert.Equal(t, RiskLow, result.RiskLevel)
		assert.Empty(t, result.RiskSpots)
		assert.NotNil(t, result.RiskSpots)
	})

	t.Run("enum values are normalized", func(t *testing.T) {
		result, err := parseAnalysisResult(`{"riskLevel":"critical","riskSpots":[],"scripts":[],"excuses":[],"summary":"","actionNeeded":"private"}`)
		require.NoError(t, err)
		assert.Equal(t, RiskCritical, result.RiskLevel)
		assert.Equal(t, ActionMovePrivate, result.ActionNeeded)
	})

	t.Run("null list counts as missing", func(t *testing.T) {
		_, err := parseAnalysisResult(`{"riskLevel":"LOW","riskSpots":null,"scripts":[],"excuses":[],"summary":"","actionNeeded":"NONE"}`)
		var formatErr *ResponseFormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, formatErr.Error(), "riskSpots")
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := parseAnalysisResult(`{"riskLevel":"LOW","riskSpots":[],"scripts":[],"excuses":[],"summary":"","actionNeeded":"DELETE"}`)
		assert.Equal(t, KindResponseFormat, ErrorKind(err))
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := parseAnalysisResult("")
		assert.Equal(t, KindResponseFormat, ErrorKind(err))
	})
}

func TestRiskLevel(t *testing.T) {
	assert.Less(t, RiskLow.Severity(), RiskMedium.Severity())
	assert.Less(t, RiskMedium.Severity(), RiskHigh.Severity())
	assert.Less(t, RiskHigh.Severity(), RiskCritical.Severity())
	assert.Equal(t, -1, RiskLevel("EXTREME").Severity())

	assert.False(t, RiskLow.IsThreat())
	assert.False(t, RiskMedium.IsThreat())
	assert.True(t, RiskHigh.IsThreat())
	assert.True(t, RiskCritical.IsThreat())
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "valid", key: "AIzaSyA-1234567890abcdef", wantErr: false},
		{name: "exactly minimum length", key: "0123456789", wantErr: false},
		{name: "empty", key: "", wantErr: true},
		{name: "placeholder", key: "undefined", wantErr: true},
		{name: "too short", key: "short", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey("GEMINI_API_KEY", tt.key)
			if tt.wantErr {
				var configErr *ConfigurationError
				assert.ErrorAs(t, err, &configErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, KindConfiguration, ErrorKind(&ConfigurationError{Setting: "X", Reason: "is not set"}))
	assert.Equal(t, KindRemote, ErrorKind(fmt.Errorf("wrapped: %w", &RemoteError{Provider: "gemini", Err: errors.New("boom")})))
	assert.Equal(t, KindResponseFormat, ErrorKind(&ResponseFormatError{Err: errors.New("bad")}))
	assert.Equal(t, KindInternal, ErrorKind(errors.New("other")))
}

func TestDecodeImage(t *testing.T) {
	data, mimeType, err := DecodeImage(EncodeDataURL([]byte("png-bytes"), "image/png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", mimeType)

	// Non-image MIME types fall back to JPEG when encoding.
	assert.Equal(t, "data:image/jpeg;base64,YQ==", EncodeDataURL([]byte("a"), "application/octet-stream"))

	_, _, err = DecodeImage("data:image/png;base64")
	assert.Error(t, err)

	_, _, err = DecodeImage("")
	assert.Error(t, err)
}
