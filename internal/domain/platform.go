package domain

// PlatformName is the closed set of external game platforms the ingest
// pipeline knows how to talk to. chess.com is the only one wired today.
type PlatformName string

const (
	PlatformChessCom PlatformName = "chess.com"
)

func (p PlatformName) Valid() bool {
	switch p {
	case PlatformChessCom:
		return true
	default:
		return false
	}
}
