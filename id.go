package payroute

import "github.com/xraph/payroute/id"

// ID is the primary identifier type for all payroute entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
