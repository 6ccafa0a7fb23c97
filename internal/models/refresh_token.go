package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshToken is one row of the refresh-token ledger. Records are never
// deleted; a redeemed or revoked token keeps its row with the matching flag
// set so replay attempts stay observable.
type RefreshToken struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	JwtID      string             `bson:"jwtId" json:"jwtId"`
	Token      string             `bson:"token" json:"-"`
	IsUsed     bool               `bson:"isUsed" json:"isUsed"`
	IsRevoked  bool               `bson:"isRevoked" json:"isRevoked"`
	AddedDate  time.Time          `bson:"addedDate" json:"addedDate"`
	ExpiryDate time.Time          `bson:"expiryDate" json:"expiryDate"`
}
