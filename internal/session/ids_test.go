package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionIDRoundTrip(t *testing.T) {
	id := NewSessionIDFromRandom()

	text := id.String()
	assert.Len(t, text, len(SessionTag)+1+22)

	parsed, err := ParseSessionID(text)
	assert.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestGenerationIDRoundTrip(t *testing.T) {
	id := NewGenerationIDFromRandom()

	parsed, err := ParseGenerationID(id.String())
	assert.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseSessionIDRejectsGenerationTag(t *testing.T) {
	genID := NewGenerationIDFromRandom()

	_, err := ParseSessionID(genID.String())
	assert.Error(t, err)
}

func TestParseIDRejectsMalformed(t *testing.T) {
	_, err := parseID("not-a-valid-id")
	assert.Error(t, err)

	_, err = parseID("ses_")
	assert.NoError(t, err) // empty unique part decodes to the nil uuid

	_, err = parseID("xyz_0000000000000000000000")
	assert.Error(t, err)
}

func TestSessionIDJSONRoundTrip(t *testing.T) {
	id := NewSessionIDFromRandom()

	data, err := json.Marshal(id)
	assert.NoError(t, err)

	var decoded SessionID
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestQualifiedGenerationIDString(t *testing.T) {
	sessionID := NewSessionIDFromRandom()
	generationID := NewGenerationIDFromRandom()

	q := MakeQualifiedGenerationID(sessionID, generationID)
	assert.Equal(t, sessionID.String()+"/"+generationID.String(), q.String())
}
