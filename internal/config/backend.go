package config

// ConfigBackend is the platform store for non-secret keys: the `defaults`
// domain on macOS, a JSON file elsewhere. Keys are the dotted names from the
// key table; values keep their type.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetBool(key string) (val bool, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetBool(key string, val bool) error
	Delete(key string) error
}

// secretStore holds tokens by account name: the macOS Keychain, or a
// private JSON file elsewhere.
type secretStore interface {
	Get(account string) (string, error)
	Set(account, value string) error
	// Location tells the user where account is looked up.
	Location(account string) string
}
