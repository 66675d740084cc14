package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	SessionTag    = "ses"
	GenerationTag = "gen"
)

type tagToIDConstructor func(uuid.UUID) ID

var idConstructorMap = map[string]tagToIDConstructor{
	SessionTag:    func(u uuid.UUID) ID { return NewSessionID(u) },
	GenerationTag: func(u uuid.UUID) ID { return NewGenerationID(u) },
}

func parseID(str string) (ID, error) {
	tag, u, err := parseIDParts(str)
	if err != nil {
		return nil, err
	}

	constructor := idConstructorMap[tag]
	if constructor == nil {
		return nil, errors.Errorf("no known session id for tag %s", tag)
	}
	return constructor(u), nil
}

func parseIDAs(str string, dst interface{}) error {
	id, err := parseID(str)
	if err != nil {
		return errors.Wrapf(err, "parse session id failed: %s", str)
	}
	return assignTo(id, dst)
}

// SessionID identifies one run of the pipeline, from source open to
// shutdown. Nothing outside this package creates one, so flow snapshots,
// gap records and metrics carry no SessionID.
type SessionID struct {
	baseID
}

func (SessionID) GetType() string { return SessionTag }

func (id SessionID) String() string { return encode(id) }

func NewSessionID(u uuid.UUID) SessionID { return SessionID{baseID(u)} }

// NewSessionIDFromRandom generates a fresh, random SessionID.
func NewSessionIDFromRandom() SessionID { return NewSessionID(uuid.New()) }

func (id SessionID) MarshalText() ([]byte, error) { return toText(id) }

func (id *SessionID) UnmarshalText(data []byte) error { return fromText(id, data) }

// ParseSessionID parses the textual form produced by SessionID.String.
func ParseSessionID(str string) (SessionID, error) {
	var id SessionID
	if err := parseIDAs(str, &id); err != nil {
		return SessionID{}, err
	}
	return id, nil
}

// GenerationID identifies one pass through a looped replay source within a
// session. The first generation of a session, and every generation of a
// live-capture or non-looped-replay session, starts with an empty flow map:
// a flow's first packet in a new generation is never treated as a gap
// relative to the previous generation's state for that flow.
type GenerationID struct {
	baseID
}

func (GenerationID) GetType() string { return GenerationTag }

func (id GenerationID) String() string { return encode(id) }

func NewGenerationID(u uuid.UUID) GenerationID { return GenerationID{baseID(u)} }

// NewGenerationIDFromRandom generates a fresh, random GenerationID.
func NewGenerationIDFromRandom() GenerationID { return NewGenerationID(uuid.New()) }

func (id GenerationID) MarshalText() ([]byte, error) { return toText(id) }

func (id *GenerationID) UnmarshalText(data []byte) error { return fromText(id, data) }

// ParseGenerationID parses the textual form produced by GenerationID.String.
func ParseGenerationID(str string) (GenerationID, error) {
	var id GenerationID
	if err := parseIDAs(str, &id); err != nil {
		return GenerationID{}, err
	}
	return id, nil
}

// QualifiedGenerationID pairs a GenerationID with the SessionID it belongs
// to, for use in persistence records and log fields where a generation
// number alone would be ambiguous across sessions.
type QualifiedGenerationID struct {
	SessionID    SessionID    `json:"session_id"`
	GenerationID GenerationID `json:"generation_id"`
}

func MakeQualifiedGenerationID(sessionID SessionID, generationID GenerationID) QualifiedGenerationID {
	return QualifiedGenerationID{SessionID: sessionID, GenerationID: generationID}
}

func (q QualifiedGenerationID) String() string {
	return fmt.Sprintf("%s/%s", q.SessionID, q.GenerationID)
}
