package blockchain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// ErrMalformedAddress is returned for strings that are not raw
// workchain:hex account addresses.
var ErrMalformedAddress = errors.New("malformed address")

// rawAddressPattern is the syntactic shape of a workchain-prefixed
// address. Length of the hex part is checked by ParseAddress.
var rawAddressPattern = regexp.MustCompile(`^-?[0-9]+:[0-9a-fA-F]*$`)

// LooksLikeAddress reports whether s has the workchain:hex form, without
// checking the account id length.
func LooksLikeAddress(s string) bool {
	return rawAddressPattern.MatchString(s)
}

// ParseAddress validates a raw address and returns its canonical form
// (decimal workchain, lowercase 64 hex digits).
func ParseAddress(s string) (string, error) {
	if !LooksLikeAddress(s) {
		return "", fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}
	prefix, hex, _ := strings.Cut(s, ":")
	if len(hex) != 64 {
		return "", fmt.Errorf("%w: %q: account id must be 64 hex digits", ErrMalformedAddress, s)
	}
	workchain, err := strconv.ParseInt(prefix, 10, 32)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedAddress, s, err)
	}
	addr, err := address.ParseRawAddr(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedAddress, s, err)
	}
	return fmt.Sprintf("%d:%x", workchain, addr.Data()), nil
}

// IsAddress reports whether s is a valid raw address.
func IsAddress(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}
