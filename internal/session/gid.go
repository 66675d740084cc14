// Package session provides typed, base62-encoded identifiers for capture
// and replay sessions. A SessionID names one run of the pipeline, from
// source open to shutdown; a GenerationID names one pass through a looped
// replay source within that session. Both round-trip through JSON and
// through database/sql, so they can be used as primary keys and foreign
// keys by a persistence adapter.
package session

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var baseBigInt = big.NewInt(62)

// ID is implemented by every typed identifier in this package.
type ID interface {
	GetType() string
	GetUUID() uuid.UUID
	String() string
}

// baseID implements the storage and comparison mechanics shared by every
// typed ID. Embed it to pick those up; GetType, String, MarshalText, and
// UnmarshalText must be defined on the embedding type since they need to
// know the type's tag.
type baseID uuid.UUID

func (bid baseID) GetUUID() uuid.UUID {
	return uuid.UUID(bid)
}

func (bid *baseID) Scan(src interface{}) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return errors.Wrap(err, "could not scan session id")
	}
	*bid = baseID(u)
	return nil
}

func (bid baseID) Value() (driver.Value, error) {
	return bid.GetUUID().Value()
}

func toText(id ID) ([]byte, error) {
	return []byte(encode(id)), nil
}

func fromText(dst interface{}, txt []byte) error {
	return parseIDAs(string(txt), dst)
}

// encode renders an ID as "<tag>_<base62 uuid>".
func encode(id ID) string {
	return fmt.Sprintf("%s_%s", id.GetType(), encodeUUID(id.GetUUID()))
}

func assignTo(src ID, dst interface{}) error {
	v := reflect.ValueOf(src)
	d := reflect.ValueOf(dst)
	if reflect.PtrTo(v.Type()) != d.Type() {
		return errors.Errorf("mismatched assignment types, cannot assign %v to %v", v.Type(), d.Type())
	}
	d.Elem().Set(v)
	return nil
}

func encodeUUID(u uuid.UUID) string {
	raw := [16]byte(u)
	n := new(big.Int).SetBytes(raw[:])

	dest := make([]byte, 0, 22)
	zero := big.NewInt(0)
	for n.Cmp(zero) > 0 {
		r := new(big.Int)
		r.Mod(n, baseBigInt)
		n.Div(n, baseBigInt)
		dest = append([]byte{alphabet[r.Int64()]}, dest...)
	}

	// Pad to 22 characters, the max length of a base62-encoded UUID.
	return fmt.Sprintf("%022s", string(dest))
}

func decodeUUID(s string) (uuid.UUID, error) {
	var n big.Int
	for _, c := range []byte(s) {
		idx := strings.IndexByte(alphabet, c)
		if idx < 0 {
			return uuid.Nil, errors.Errorf("unexpected character %c in base62 id", c)
		}
		n.Mul(&n, baseBigInt)
		n.Add(&n, big.NewInt(int64(idx)))
	}

	raw := n.Bytes()
	if len(raw) > 16 {
		return uuid.Nil, errors.New("cannot have more than 16 bytes of uuid")
	}
	if len(raw) < 16 {
		padded := make([]byte, 16)
		copy(padded[16-len(raw):], raw)
		raw = padded
	}

	return uuid.FromBytes(raw)
}

func parseIDParts(str string) (string, uuid.UUID, error) {
	parts := strings.SplitN(str, "_", 2)
	if len(parts) != 2 {
		return "", uuid.Nil, errors.New("invalid session id structure")
	}
	id, err := decodeUUID(parts[1])
	if err != nil {
		return "", uuid.Nil, errors.Wrap(err, "invalid unique part of session id")
	}
	return parts[0], id, nil
}
