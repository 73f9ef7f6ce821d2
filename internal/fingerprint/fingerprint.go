package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// fieldSep joins record fields before hashing. ASCII unit separator: it never
// appears in marketplace exports, so "ab"+"c" and "a"+"bc" hash differently.
const fieldSep = "\x1f"

// FileHash digests the raw uploaded bytes. It is independent of parsing:
// byte-identical uploads fingerprint identically even if the parser changes
// between versions.
func FileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RecordHash digests the business identity of one record. Only fields the
// user can reproduce by re-exporting the same report go in; surrogate ids and
// ingestion timestamps never do.
func RecordHash(ownerID, platform, externalID, descriptor string, quantity int, total float64) string {
	parts := []string{
		ownerID,
		platform,
		externalID,
		descriptor,
		strconv.Itoa(quantity),
		strconv.FormatFloat(total, 'f', 2, 64),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, fieldSep)))
	return hex.EncodeToString(sum[:])
}

// BankLineHash is RecordHash for statement lines, which have no platform or
// quantity: owner, account, date (day precision), description, reference and
// the signed amount.
func BankLineHash(ownerID, scopeKey, date, description, reference string, amount float64) string {
	parts := []string{
		ownerID,
		scopeKey,
		date,
		description,
		reference,
		strconv.FormatFloat(amount, 'f', 2, 64),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, fieldSep)))
	return hex.EncodeToString(sum[:])
}
