package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocTypeResponseCleanJSON(t *testing.T) {
	parsed, err := parseDocTypeResponse(`{"doc_type": "arrival_notice", "confidence": 88, "reasoning": "mentions cargo arrival"}`)
	require.NoError(t, err)
	assert.Equal(t, "arrival_notice", parsed.DocType)
	assert.Equal(t, 88, parsed.Confidence)
	assert.Equal(t, "mentions cargo arrival", parsed.Reasoning)
}

func TestParseDocTypeResponseWrappedJSON(t *testing.T) {
	// Models sometimes wrap the JSON in prose or code fences.
	parsed, err := parseDocTypeResponse("Here is my answer:\n```json\n{\"doc_type\": \"invoice\", \"confidence\": 75}\n```\nLet me know if you need more.")
	require.NoError(t, err)
	assert.Equal(t, "invoice", parsed.DocType)
	assert.Equal(t, 75, parsed.Confidence)
}

func TestParseDocTypeResponseNoJSON(t *testing.T) {
	_, err := parseDocTypeResponse("I cannot classify this document.")
	assert.Error(t, err)
}

func TestDocTypeListCoversEnumeration(t *testing.T) {
	list := docTypeList()
	assert.Contains(t, list, "booking_confirmation")
	assert.Contains(t, list, "arrival_notice")
	assert.Contains(t, list, "general_correspondence")
}
