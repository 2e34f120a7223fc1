package chain

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ValidateAddress checks a 0x-prefixed 20-byte hex address. Mixed-case
// addresses must additionally carry a valid EIP-55 checksum; all-lower or
// all-upper addresses are accepted without one.
func ValidateAddress(addr string) error {
	if !strings.HasPrefix(addr, "0x") {
		return fmt.Errorf("address %q missing 0x prefix", addr)
	}
	hexPart := addr[2:]
	if len(hexPart) != 40 {
		return fmt.Errorf("address %q is not 20 bytes", addr)
	}
	for _, r := range hexPart {
		if !isHexDigit(r) {
			return fmt.Errorf("address %q contains non-hex character %q", addr, r)
		}
	}

	lower := strings.ToLower(hexPart)
	if hexPart == lower || hexPart == strings.ToUpper(hexPart) {
		return nil
	}

	// Mixed case: verify the EIP-55 checksum.
	sum := sha3.NewLegacyKeccak256()
	sum.Write([]byte(lower))
	digest := sum.Sum(nil)
	for i, r := range hexPart {
		if r >= '0' && r <= '9' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		upper := nibble&0x0f >= 8
		if upper != (r >= 'A' && r <= 'F') {
			return fmt.Errorf("address %q fails checksum", addr)
		}
	}
	return nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
