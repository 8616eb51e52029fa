package globals

import "context"

// JwtSecret signs and verifies tokens. Populated by config.Load once the
// environment (including .env) has been read; never resolved at init time.
var JwtSecret []byte

// Context keys
type ContextKey string

const UserIDKey ContextKey = "userId"
const UsernameKey ContextKey = "username"

var Ctx = context.Background()
