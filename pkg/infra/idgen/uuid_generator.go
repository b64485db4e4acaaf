package idgen

import "github.com/google/uuid"

// UUIDGenerator issues random (v4) record ids.
type UUIDGenerator struct{}

func (g *UUIDGenerator) GenerateID() string {
	return uuid.NewString()
}
