package types

// Identifier rules: alphanumeric plus hyphen. Both client ids (uuids)
// and session ids (derived from connection ids) satisfy them.

const maxIDLength = 64

func isValidID(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}

// IsValidClientID reports whether id is acceptable as a durable client id.
func IsValidClientID(id string) bool { return isValidID(id) }

// IsValidSessionID reports whether id is acceptable as a session id.
func IsValidSessionID(id string) bool { return isValidID(id) }

// IsValidDisplayName reports whether name is acceptable. Empty is allowed;
// display names are optional.
func IsValidDisplayName(name string) bool { return len(name) <= 100 }
