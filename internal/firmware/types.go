package firmware

import (
	"errors"
	"fmt"
	"strconv"
)

// DefaultURL is the ASUS support endpoint for the ROG STRIX B450-I GAMING.
const DefaultURL = "https://rog.asus.com/support/webapi/product/GetPDBIOS?website=us&model=ROG-STRIX-B450-I-GAMING&pdid=10277&cpu=&LevelTagId=5931"

var (
	ErrNetwork     = errors.New("firmware: network error")
	ErrParse       = errors.New("firmware: unexpected response body")
	ErrEmptyResult = errors.New("firmware: empty result")
	ErrFormat      = errors.New("firmware: invalid version format")
)

// Version is a vendor firmware release number.
type Version uint32

func (v Version) String() string { return strconv.FormatUint(uint64(v), 10) }

// ParseVersion parses a non-negative integer version string. Surrounding
// whitespace is rejected; callers reading user input trim first.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty version", ErrFormat)
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrFormat, s, err)
	}
	return Version(n), nil
}

// file holds the fields of the newest vendor file used for logging.
type file struct {
	Version     string
	Title       string
	ReleaseDate string
}
