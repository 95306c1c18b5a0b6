package gen

import (
	"fmt"

	"github.com/google/uuid"
)

type UUIDGenerator func() uuid.UUID

// UUID returns a generator backed by random (v4) UUIDs, so two files
// created in the same clock tick can never collide.
func UUID() UUIDGenerator {
	return func() uuid.UUID {
		return uuid.New()
	}
}

func (g UUIDGenerator) Next() uuid.UUID {
	if g == nil {
		return uuid.Nil
	}

	return g()
}

// TempName derives a scratch-file name from the next UUID.
func (g UUIDGenerator) TempName(prefix, ext string) string {
	return fmt.Sprintf("%s-%s%s", prefix, g.Next(), ext)
}
